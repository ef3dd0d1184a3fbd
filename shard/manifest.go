package shard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/poiesic/datakiln/core"
)

// IndexFileName is the manifest written alongside the shard archives.
const IndexFileName = "index.json"

// ShardInfo describes one sealed shard.
type ShardInfo struct {
	Name     string `json:"name"`
	Seq      int    `json:"seq"`
	Samples  int    `json:"samples"`
	Bytes    int64  `json:"bytes"`
	Checksum string `json:"checksum"`
}

// Rejection records a sample that was skipped instead of packed.
type Rejection struct {
	Key     string       `json:"key"`
	AssetID core.AssetID `json:"asset_id,omitempty"`
	Reason  string       `json:"reason"`
}

// Manifest is the index for one sharding run. It is the read contract
// for downstream data loaders: every sealed shard appears exactly once
// and every skipped sample appears in Rejected.
type Manifest struct {
	Shards       []ShardInfo `json:"shards"`
	TotalShards  int         `json:"total_shards"`
	TotalSamples int         `json:"total_samples"`
	Capacity     int         `json:"capacity"`
	CreatedAt    time.Time   `json:"created_at"`
	Rejected     []Rejection `json:"rejected,omitempty"`
}

// write persists the manifest as index.json in dir.
func (m *Manifest) write(dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(dir, IndexFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the index.json previously written to dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFileName))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}
