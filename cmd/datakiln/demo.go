// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/datakiln"
	"github.com/poiesic/datakiln/ai/mock"
	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/fetch"
	"github.com/poiesic/datakiln/ingest"
	"github.com/poiesic/datakiln/label"
)

// demoFetcher serves the demo's synthetic content without the network.
type demoFetcher struct {
	responses map[string][]byte
}

func (f *demoFetcher) Fetch(ctx context.Context, url string) (*fetch.Result, error) {
	data, ok := f.responses[url]
	if !ok {
		return nil, &fetch.FetchError{URL: url, StatusCode: 404, Err: fmt.Errorf("no demo content")}
	}
	return &fetch.Result{Data: data, ContentType: "application/octet-stream"}, nil
}

// demoCommand runs the whole pipeline in memory on two synthetic images,
// one of them ingested twice: ingest with dedup, feature extraction,
// label aggregation and capacity-one sharding.
func demoCommand(c *cli.Context) error {
	ctx := context.Background()

	p, err := datakiln.NewPipeline("",
		datakiln.WithInMemory(),
		datakiln.WithProvider(mock.NewProvider()))
	if err != nil {
		return fmt.Errorf("failed to open in-memory pipeline: %w", err)
	}
	defer p.Close()

	wide, err := renderDemoImage(96, 64, color.RGBA{R: 220, G: 180, B: 40, A: 255})
	if err != nil {
		return err
	}
	small, err := renderDemoImage(32, 32, color.RGBA{R: 20, G: 30, B: 60, A: 255})
	if err != nil {
		return err
	}

	fetcher := &demoFetcher{responses: map[string][]byte{
		"demo://images/wide.png":  wide,
		"demo://images/small.png": small,
		"demo://mirror/wide.png":  wide,
	}}

	report, err := p.Run(ctx, &datakiln.RunRequest{
		Sources: []ingest.Request{
			{URL: "demo://images/wide.png", Source: "demo"},
			{URL: "demo://images/small.png", Source: "demo"},
			{URL: "demo://mirror/wide.png", Source: "demo"},
		},
		Fetcher:          fetcher,
		Funcs:            demoLabelFuncs(),
		RunID:            "demo",
		MajorityFallback: true,
		ShardDir:         c.String("out"),
		Capacity:         1,
	})
	if err != nil {
		return fmt.Errorf("demo run failed: %w", err)
	}

	printRunReport(report)

	fmt.Fprintln(os.Stderr, "Labels:")
	for _, res := range report.Ingested.Results {
		if res.Err != nil || res.Existed {
			continue
		}
		aggLabel, err := p.LabelRepository().GetLabel(ctx, res.Asset.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "  %s (%s): p(positive)=%.4f from %d votes\n",
			res.Asset.ID, res.Request.URL, aggLabel.PPositive, aggLabel.VoteCount)
	}
	return nil
}

// demoLabelFuncs votes on image shape: both functions favor the wide
// image, so its aggregated label must outrank the small one.
func demoLabelFuncs() []label.Func {
	return []label.Func{
		{Name: "wide-image", Vote: func(e *label.Example) core.Vote {
			if e.Feature == nil || e.Feature.Modality != core.ModalityImage {
				return core.VoteAbstain
			}
			if e.Feature.Meta.Width > e.Feature.Meta.Height {
				return core.VotePositive
			}
			return core.VoteNegative
		}},
		{Name: "min-resolution", Vote: func(e *label.Example) core.Vote {
			if e.Feature == nil || e.Feature.Modality != core.ModalityImage {
				return core.VoteAbstain
			}
			if e.Feature.Meta.Width*e.Feature.Meta.Height >= 64*64 {
				return core.VotePositive
			}
			return core.VoteNegative
		}},
	}
}

// renderDemoImage encodes a solid-color PNG of the given size.
func renderDemoImage(width, height int, fill color.RGBA) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding demo image: %w", err)
	}
	return buf.Bytes(), nil
}
