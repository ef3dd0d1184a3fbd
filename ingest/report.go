package ingest

import (
	"sync"

	"github.com/poiesic/datakiln/core"
)

// ItemResult is the outcome of one request within a batch.
type ItemResult struct {
	Request Request
	Asset   *core.Asset
	Existed bool
	Err     error
}

// Report summarizes a batch ingestion. Every request appears exactly once
// in Results; nothing is silently dropped.
type Report struct {
	Total      int
	Succeeded  int
	Duplicates int
	Failed     int
	Results    []ItemResult

	mu sync.Mutex
}

func newReport(n int) *Report {
	return &Report{
		Total:   n,
		Results: make([]ItemResult, n),
	}
}

func (r *Report) record(idx int, req Request, asset *core.Asset, existed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Results[idx] = ItemResult{Request: req, Asset: asset, Existed: existed, Err: err}
	switch {
	case err != nil:
		r.Failed++
	case existed:
		r.Duplicates++
	default:
		r.Succeeded++
	}
}

// Assets returns the assets of all non-failed results, duplicates included,
// in request order.
func (r *Report) Assets() []*core.Asset {
	assets := make([]*core.Asset, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Err == nil && res.Asset != nil {
			assets = append(assets, res.Asset)
		}
	}
	return assets
}

// Errors returns the failed results in request order.
func (r *Report) Errors() []ItemResult {
	var failed []ItemResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}
