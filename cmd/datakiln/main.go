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
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/datakiln"
	"github.com/poiesic/datakiln/ai"
	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/ingest"
	"github.com/poiesic/datakiln/label"
	"github.com/poiesic/datakiln/neardup"
	"github.com/poiesic/datakiln/reprocess"
	"github.com/poiesic/datakiln/shard"
)

func main() {
	app := &cli.App{
		Name:  "datakiln",
		Usage: "Multimodal training-dataset assembly pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Fetch and register source content as assets",
				Action: ingestCommand,
				Flags: append(dbFlags(),
					&cli.StringSliceFlag{
						Name:     "url",
						Aliases:  []string{"u"},
						Usage:    "Source URL to ingest (repeatable)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "license",
						Usage: "License tag recorded on each asset",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Provenance tag recorded on each asset",
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Worker pool size for batch ingestion (0 = auto)",
					},
				),
			},
			{
				Name:   "extract",
				Usage:  "Extract features from all ingested assets",
				Action: extractCommand,
				Flags:  append(dbFlags(), embeddingFlags()...),
			},
			{
				Name:   "label",
				Usage:  "Aggregate labeling-function votes over processed assets",
				Action: labelCommand,
				Flags:  append(dbFlags(), labelFlags()...),
			},
			{
				Name:   "shard",
				Usage:  "Pack labeled assets into fixed-capacity shard archives",
				Action: shardCommand,
				Flags:  append(dbFlags(), shardFlags()...),
			},
			{
				Name:   "run",
				Usage:  "Run ingest, extract, label and shard as one pass",
				Action: runCommand,
				Flags: append(append(append(dbFlags(),
					&cli.StringSliceFlag{
						Name:    "url",
						Aliases: []string{"u"},
						Usage:   "Source URL to ingest before processing (repeatable)",
					},
					&cli.StringFlag{
						Name:  "license",
						Usage: "License tag recorded on each ingested asset",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Provenance tag recorded on each ingested asset",
					}),
					append(embeddingFlags(), labelFlags()...)...),
					shardFlags()...),
			},
			{
				Name:   "neardup",
				Usage:  "Find near-duplicates of an asset by fingerprint and embedding",
				Action: neardupCommand,
				Flags: append(dbFlags(),
					&cli.StringFlag{
						Name:     "asset",
						Aliases:  []string{"a"},
						Usage:    "Asset ID to query",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "max-hits",
						Usage: "Maximum number of matches to report",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "max-hamming",
						Usage: "Maximum fingerprint Hamming distance to accept",
						Value: 8,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Minimum embedding cosine similarity to accept",
						Value: 0.92,
					},
				),
			},
			{
				Name:   "reprocess",
				Usage:  "Re-embed records stored without embeddings",
				Action: reprocessCommand,
				Flags: append(append(dbFlags(), embeddingFlags()...),
					&cli.StringSliceFlag{
						Name:  "reset",
						Usage: "Asset ID to reset for full re-extraction first (repeatable)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				),
			},
			{
				Name:   "stats",
				Usage:  "Show asset counts per lifecycle status",
				Action: statsCommand,
				Flags:  dbFlags(),
			},
			{
				Name:   "demo",
				Usage:  "Run the built-in end-to-end scenario in memory",
				Action: demoCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out",
						Usage: "Output directory for the demo shards",
						Value: "./demo-shards",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
	}
}

func embeddingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
	}
}

func labelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "positive-keyword",
			Usage: "Caption keyword voting positive (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "negative-keyword",
			Usage: "Caption keyword voting negative (repeatable)",
		},
		&cli.IntFlag{
			Name:  "min-words",
			Usage: "Minimum caption word count voting positive (0 disables)",
		},
		&cli.StringFlag{
			Name:  "run-id",
			Usage: "Aggregation run identifier (default: random UUID)",
		},
		&cli.Uint64Flag{
			Name:  "seed",
			Usage: "Seed for model initialization",
		},
		&cli.BoolFlag{
			Name:  "majority-fallback",
			Usage: "Fall back to majority voting on a degenerate model fit",
		},
	}
}

func shardFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "out",
			Aliases:  []string{"o"},
			Usage:    "Output directory for shard archives",
			Required: true,
		},
		&cli.IntFlag{
			Name:  "capacity",
			Usage: "Samples per shard",
			Value: 1000,
		},
	}
}

func openPipeline(c *cli.Context) (*datakiln.Pipeline, error) {
	// Commands without embedding flags keep the config defaults; the
	// provider makes no calls unless a stage needs embeddings.
	var aiOpts []ai.ConfigOption
	if host := c.String("embedding-host"); host != "" {
		aiOpts = append(aiOpts, ai.WithHost(host))
	}
	if model := c.String("embedding-model"); model != "" {
		aiOpts = append(aiOpts, ai.WithEmbeddingModel(model))
	}

	p, err := datakiln.NewPipeline(c.String("db"), datakiln.WithAIConfig(ai.NewConfig(aiOpts...)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pipeline: %w", err)
	}
	return p, nil
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	var opts []ingest.Option
	if size := c.Int("pool-size"); size > 0 {
		opts = append(opts, ingest.WithPoolSize(size))
	}
	ingestor, err := p.NewIngestor(nil, opts...)
	if err != nil {
		return fmt.Errorf("failed to create ingestor: %w", err)
	}
	defer ingestor.Release()

	urls := c.StringSlice("url")
	reqs := make([]ingest.Request, 0, len(urls))
	for _, url := range urls {
		reqs = append(reqs, ingest.Request{
			URL:     url,
			License: c.String("license"),
			Source:  c.String("source"),
		})
	}

	report := ingestor.IngestBatch(ctx, reqs)
	printIngestReport(report)
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d requests failed", report.Failed, report.Total)
	}
	return nil
}

func extractCommand(c *cli.Context) error {
	ctx := context.Background()

	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	runner, err := p.NewExtractionRunner()
	if err != nil {
		return fmt.Errorf("failed to create extraction runner: %w", err)
	}
	defer runner.Release()

	report, err := runner.ExtractPending(ctx)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Processed: %d\n", report.Processed)
	fmt.Fprintf(os.Stderr, "Failed: %d\n", report.Failed)
	fmt.Fprintf(os.Stderr, "Without embedding: %d\n", report.NoEmbedding)
	for _, failure := range report.Failures {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", failure.AssetID, failure.Err)
	}
	return nil
}

func labelCommand(c *cli.Context) error {
	ctx := context.Background()

	funcs, err := buildLabelFuncs(c)
	if err != nil {
		return err
	}

	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	report, err := p.Label(ctx, &datakiln.LabelRequest{
		Funcs:            funcs,
		RunID:            c.String("run-id"),
		Seed:             c.Uint64("seed"),
		MajorityFallback: c.Bool("majority-fallback"),
	})
	if err != nil {
		return fmt.Errorf("labeling failed: %w", err)
	}

	printLabelReport(report)
	return nil
}

func shardCommand(c *cli.Context) error {
	ctx := context.Background()

	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	manifest, err := p.ShardLabeled(ctx, c.String("out"), c.Int("capacity"))
	if err != nil {
		return fmt.Errorf("sharding failed: %w", err)
	}

	printManifest(manifest)
	return nil
}

func runCommand(c *cli.Context) error {
	ctx := context.Background()

	funcs, err := buildLabelFuncs(c)
	if err != nil {
		return err
	}

	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	var sources []ingest.Request
	for _, url := range c.StringSlice("url") {
		sources = append(sources, ingest.Request{
			URL:     url,
			License: c.String("license"),
			Source:  c.String("source"),
		})
	}

	report, err := p.Run(ctx, &datakiln.RunRequest{
		Sources:          sources,
		Funcs:            funcs,
		RunID:            c.String("run-id"),
		Seed:             c.Uint64("seed"),
		MajorityFallback: c.Bool("majority-fallback"),
		ShardDir:         c.String("out"),
		Capacity:         c.Int("capacity"),
	})
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	printRunReport(report)
	return nil
}

func neardupCommand(c *cli.Context) error {
	ctx := context.Background()

	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	detector, err := p.NewNearDupDetector(
		neardup.WithMaxHamming(c.Int("max-hamming")),
		neardup.WithMinSimilarity(float32(c.Float64("min-similarity"))),
	)
	if err != nil {
		return fmt.Errorf("failed to create detector: %w", err)
	}

	matches, err := detector.FindNearDuplicates(ctx, core.AssetID(c.String("asset")), c.Int("max-hits"))
	if err != nil {
		return fmt.Errorf("near-duplicate query failed: %w", err)
	}

	fmt.Print(neardup.FormatMatches(matches))
	return nil
}

func reprocessCommand(c *cli.Context) error {
	ctx := context.Background()

	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	if ids := c.StringSlice("reset"); len(ids) > 0 {
		assetIDs := make([]core.AssetID, 0, len(ids))
		for _, id := range ids {
			assetIDs = append(assetIDs, core.AssetID(id))
		}
		if err := reprocess.Reset(ctx, p.AssetRepository(), p.FeatureRepository(), assetIDs...); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Reset %d assets for re-extraction\n", len(assetIDs))
	}

	config := &reprocess.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reprocessor, err := p.NewReprocessor(config, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create reprocessor: %w", err)
	}

	updated, skipped, err := reprocessor.Run(ctx)
	if err != nil {
		return fmt.Errorf("reprocessing failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Updated: %d, skipped: %d\n", updated, skipped)
	return nil
}

func statsCommand(c *cli.Context) error {
	ctx := context.Background()

	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	counts, err := p.AssetRepository().CountAssetsByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to count assets: %w", err)
	}

	statuses := []core.Status{
		core.StatusIngested,
		core.StatusProcessing,
		core.StatusLabeled,
		core.StatusShipped,
		core.StatusFailed,
	}
	total := 0
	for _, status := range statuses {
		fmt.Printf("%-12s %d\n", status, counts[status])
		total += counts[status]
	}
	fmt.Printf("%-12s %d\n", "total", total)
	return nil
}

// buildLabelFuncs assembles rule-based labeling functions from the keyword
// and word-count flags.
func buildLabelFuncs(c *cli.Context) ([]label.Func, error) {
	var funcs []label.Func

	for _, kw := range c.StringSlice("positive-keyword") {
		keyword := strings.ToLower(kw)
		funcs = append(funcs, label.Func{
			Name: "keyword-positive:" + keyword,
			Vote: func(e *label.Example) core.Vote {
				if strings.Contains(strings.ToLower(e.Caption), keyword) {
					return core.VotePositive
				}
				return core.VoteAbstain
			},
		})
	}
	for _, kw := range c.StringSlice("negative-keyword") {
		keyword := strings.ToLower(kw)
		funcs = append(funcs, label.Func{
			Name: "keyword-negative:" + keyword,
			Vote: func(e *label.Example) core.Vote {
				if strings.Contains(strings.ToLower(e.Caption), keyword) {
					return core.VoteNegative
				}
				return core.VoteAbstain
			},
		})
	}
	if minWords := c.Int("min-words"); minWords > 0 {
		funcs = append(funcs, label.Func{
			Name: "min-words",
			Vote: func(e *label.Example) core.Vote {
				if e.Feature == nil || e.Feature.Modality != core.ModalityText {
					return core.VoteAbstain
				}
				if e.Feature.Meta.WordCount >= minWords {
					return core.VotePositive
				}
				return core.VoteNegative
			},
		})
	}

	if len(funcs) == 0 {
		return nil, fmt.Errorf("at least one labeling function flag is required " +
			"(--positive-keyword, --negative-keyword or --min-words)")
	}
	return funcs, nil
}

func printIngestReport(report *ingest.Report) {
	fmt.Fprintf(os.Stderr, "Requests: %d\n", report.Total)
	fmt.Fprintf(os.Stderr, "Ingested: %d\n", report.Succeeded)
	fmt.Fprintf(os.Stderr, "Duplicates: %d\n", report.Duplicates)
	fmt.Fprintf(os.Stderr, "Failed: %d\n", report.Failed)
	for _, res := range report.Results {
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", res.Request.URL, res.Err)
		}
	}
}

func printLabelReport(report *datakiln.LabelReport) {
	fmt.Fprintf(os.Stderr, "Run: %s\n", report.RunID)
	fmt.Fprintf(os.Stderr, "Labeled: %d\n", report.Labeled)
	if report.UsedMajority {
		fmt.Fprintln(os.Stderr, "Aggregation: majority vote (model fit degenerate)")
		return
	}
	if report.Model == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Prior: %.4f, iterations: %d, log-likelihood: %.4f\n",
		report.Model.Prior, report.Model.Iterations, report.Model.LogLikelihood)
	for _, fp := range report.Model.Funcs {
		if !fp.Effective {
			fmt.Fprintf(os.Stderr, "  %s: always abstains, excluded\n", fp.Name)
			continue
		}
		fmt.Fprintf(os.Stderr, "  %s: accuracy %.4f, vote rate %.4f\n",
			fp.Name, fp.Accuracy, fp.VoteRate)
	}
}

func printManifest(manifest *shard.Manifest) {
	fmt.Fprintf(os.Stderr, "Shards: %d\n", manifest.TotalShards)
	fmt.Fprintf(os.Stderr, "Samples: %d\n", manifest.TotalSamples)
	for _, info := range manifest.Shards {
		fmt.Fprintf(os.Stderr, "  %s: %d samples, %d bytes, %s\n",
			info.Name, info.Samples, info.Bytes, info.Checksum)
	}
	for _, rej := range manifest.Rejected {
		fmt.Fprintf(os.Stderr, "  rejected %s (%s): %s\n", rej.Key, rej.AssetID, rej.Reason)
	}
}

func printRunReport(report *datakiln.RunReport) {
	fmt.Fprintf(os.Stderr, "Run: %s\n", report.RunID)
	if report.Ingested != nil {
		printIngestReport(report.Ingested)
	}
	if report.Extracted != nil {
		fmt.Fprintf(os.Stderr, "Extracted: %d (failed %d, without embedding %d)\n",
			report.Extracted.Processed, report.Extracted.Failed, report.Extracted.NoEmbedding)
	}
	fmt.Fprintf(os.Stderr, "Labeled: %d\n", report.Labeled)
	if report.UsedMajority {
		fmt.Fprintln(os.Stderr, "Aggregation: majority vote (model fit degenerate)")
	}
	if report.Manifest != nil {
		printManifest(report.Manifest)
	}
	fmt.Fprintf(os.Stderr, "Elapsed: %s\n", report.Elapsed)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
