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

package shard

import (
	"archive/tar"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-crypt/x/blake2b"

	"github.com/poiesic/datakiln/core"
)

// Stream is a lazy, possibly unbounded sequence of samples.
type Stream = iter.Seq[*core.Sample]

// Writer packs samples into tar shards under a single output directory.
// It buffers at most one open shard and seals it exactly at capacity.
// Writer is not safe for concurrent use; shard numbering within one
// directory is strictly sequential.
type Writer struct {
	dir      string
	capacity int
	logger   *slog.Logger

	seq     int // sequence number of the shard being built
	nextKey int // auto-assigned keys count accepted samples
	closed  bool

	cur *openShard

	shards    []ShardInfo
	rejected  []Rejection
	total     int
	createdAt time.Time
}

// member identifies a sample already written into the open shard, kept
// so an archive-level failure can move the whole shard to Rejected.
type member struct {
	key     string
	assetID core.AssetID
}

type openShard struct {
	name    string
	path    string
	file    *os.File
	digest  hash.Hash
	counter *countingWriter
	tw      *tar.Writer
	members []member
}

// Option configures a Writer.
type Option func(*Writer) error

// WithLogger sets the logger used for seal and rejection events.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		w.logger = logger
		return nil
	}
}

// New creates a Writer that seals shards of exactly capacity samples
// into dir, creating the directory if needed.
func New(dir string, capacity int, opts ...Option) (*Writer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating shard directory: %w", err)
	}

	w := &Writer{
		dir:       dir,
		capacity:  capacity,
		logger:    slog.Default().With("component", "shard"),
		createdAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Add packs one sample into the open shard, sealing it when capacity is
// reached. A sample that cannot be packed is recorded in the manifest's
// rejected list and reported as a *WriteError; the Writer stays usable.
func (w *Writer) Add(sample *core.Sample) error {
	if w.closed {
		return ErrWriterClosed
	}

	key := sample.Key
	if key == "" {
		key = fmt.Sprintf("%08d", w.nextKey)
	}

	if len(sample.Data) == 0 {
		return w.reject(key, sample.AssetID, errors.New("empty payload"))
	}
	if sample.Label == nil {
		return w.reject(key, sample.AssetID, errors.New("missing aggregated label"))
	}

	if w.cur == nil {
		if err := w.openShard(); err != nil {
			return w.reject(key, sample.AssetID, err)
		}
	}

	if err := w.packSample(key, sample); err != nil {
		// A failed tar write leaves the archive truncated mid-member.
		// The whole open shard is unusable, not just this sample.
		w.abortShard(err)
		return w.reject(key, sample.AssetID, err)
	}

	w.cur.members = append(w.cur.members, member{key: key, assetID: sample.AssetID})
	w.nextKey++

	if len(w.cur.members) == w.capacity {
		if err := w.seal(); err != nil {
			return err
		}
	}
	return nil
}

// Close seals any partially filled shard, writes index.json and returns
// the manifest. The manifest is returned even when sealing fails, so
// callers can still account for the samples that were packed.
func (w *Writer) Close() (*Manifest, error) {
	if w.closed {
		return w.manifest(), ErrWriterClosed
	}
	w.closed = true

	var sealErr error
	if w.cur != nil {
		if len(w.cur.members) > 0 {
			sealErr = w.seal()
		} else {
			w.abortShard(nil)
		}
	}

	m := w.manifest()
	if err := m.write(w.dir); err != nil {
		return m, err
	}
	return m, sealErr
}

// sampleDoc is the .json member written next to each payload.
type sampleDoc struct {
	AssetID core.AssetID          `json:"asset_id"`
	Caption string                `json:"caption,omitempty"`
	Meta    core.FeatureMeta      `json:"meta"`
	Label   *core.AggregatedLabel `json:"label"`
}

func (w *Writer) packSample(key string, sample *core.Sample) error {
	ext := sample.Format
	if ext == "" {
		ext = "bin"
	}
	payloadName := key + "." + ext
	// The txt and json suffixes belong to the caption and metadata
	// members; text payloads keep their extension behind a data marker.
	if ext == "txt" || ext == "json" {
		payloadName = key + ".data." + ext
	}
	if err := w.writeMember(payloadName, sample.Data); err != nil {
		return err
	}
	if err := w.writeMember(key+".txt", []byte(sample.Caption)); err != nil {
		return err
	}

	doc, err := json.Marshal(sampleDoc{
		AssetID: sample.AssetID,
		Caption: sample.Caption,
		Meta:    sample.Meta,
		Label:   sample.Label,
	})
	if err != nil {
		return fmt.Errorf("encoding sample document: %w", err)
	}
	return w.writeMember(key+".json", doc)
}

func (w *Writer) writeMember(name string, data []byte) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: time.Unix(0, 0).UTC(),
	}
	if err := w.cur.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing member header %q: %w", name, err)
	}
	if _, err := w.cur.tw.Write(data); err != nil {
		return fmt.Errorf("writing member %q: %w", name, err)
	}
	return nil
}

func (w *Writer) openShard() error {
	name := fmt.Sprintf("shard-%06d.tar", w.seq)
	path := filepath.Join(w.dir, name)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating shard %s: %w", name, err)
	}

	digest, err := blake2b.New(32, nil)
	if err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("initializing shard digest: %w", err)
	}

	counter := &countingWriter{w: io.MultiWriter(file, digest)}
	w.cur = &openShard{
		name:    name,
		path:    path,
		file:    file,
		digest:  digest,
		counter: counter,
		tw:      tar.NewWriter(counter),
	}
	return nil
}

// seal finishes the open shard and records it in the manifest.
func (w *Writer) seal() error {
	cur := w.cur
	w.cur = nil

	if err := cur.tw.Close(); err != nil {
		cur.file.Close()
		w.rejectShardMembers(cur, err)
		os.Remove(cur.path)
		return fmt.Errorf("sealing shard %s: %w", cur.name, err)
	}
	if err := cur.file.Close(); err != nil {
		w.rejectShardMembers(cur, err)
		os.Remove(cur.path)
		return fmt.Errorf("closing shard %s: %w", cur.name, err)
	}

	info := ShardInfo{
		Name:     cur.name,
		Seq:      w.seq,
		Samples:  len(cur.members),
		Bytes:    cur.counter.n,
		Checksum: hex.EncodeToString(cur.digest.Sum(nil)),
	}
	w.shards = append(w.shards, info)
	w.total += info.Samples
	w.seq++

	w.logger.Info("sealed shard",
		"shard", info.Name,
		"samples", info.Samples,
		"bytes", info.Bytes)
	return nil
}

// abortShard drops the open shard, moving any samples already written
// into it to the rejected list. The sequence number is reused so shard
// numbering stays dense.
func (w *Writer) abortShard(cause error) {
	cur := w.cur
	w.cur = nil
	if cur == nil {
		return
	}

	cur.tw.Close()
	cur.file.Close()
	os.Remove(cur.path)

	if cause != nil {
		w.rejectShardMembers(cur, cause)
		w.logger.Warn("abandoned shard",
			"shard", cur.name,
			"samples_lost", len(cur.members),
			"error", cause)
	}
}

func (w *Writer) rejectShardMembers(cur *openShard, cause error) {
	for _, m := range cur.members {
		w.rejected = append(w.rejected, Rejection{
			Key:     m.key,
			AssetID: m.assetID,
			Reason:  fmt.Sprintf("shard %s abandoned: %v", cur.name, cause),
		})
	}
}

func (w *Writer) reject(key string, assetID core.AssetID, cause error) error {
	w.rejected = append(w.rejected, Rejection{
		Key:     key,
		AssetID: assetID,
		Reason:  cause.Error(),
	})
	w.logger.Warn("rejected sample", "key", key, "asset_id", assetID, "error", cause)
	return &WriteError{Key: key, Err: cause}
}

func (w *Writer) manifest() *Manifest {
	return &Manifest{
		Shards:       w.shards,
		TotalShards:  len(w.shards),
		TotalSamples: w.total,
		Capacity:     w.capacity,
		CreatedAt:    w.createdAt,
		Rejected:     w.rejected,
	}
}

// Write drains stream into capacity-sized shards under dir and returns
// the run manifest. Per-sample failures are recorded in the manifest and
// do not stop the run; cancellation seals what has been written so far.
func Write(ctx context.Context, dir string, capacity int, stream Stream, opts ...Option) (*Manifest, error) {
	w, err := New(dir, capacity, opts...)
	if err != nil {
		return nil, err
	}

	for sample := range stream {
		if err := ctx.Err(); err != nil {
			m, closeErr := w.Close()
			if closeErr != nil {
				return m, closeErr
			}
			return m, err
		}
		// Add records per-sample and per-shard failures in the manifest
		// and leaves the writer usable, so the run keeps going.
		if err := w.Add(sample); errors.Is(err, ErrWriterClosed) {
			m, _ := w.Close()
			return m, err
		}
	}
	return w.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
