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


package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-maintained MUS serializers for records persisted in the KV backend.
// Field order is part of the stored format: append new fields at the end,
// never reorder or remove.

// AssetIDMUS serializes AssetID values.
var AssetIDMUS = assetIDMUS{}

// AssetMUS serializes Asset values.
var AssetMUS = assetMUS{}

// FeatureRecordMUS serializes FeatureRecord values.
var FeatureRecordMUS = featureRecordMUS{}

// AggregatedLabelMUS serializes AggregatedLabel values.
var AggregatedLabelMUS = aggregatedLabelMUS{}

type assetIDMUS struct{}

func (assetIDMUS) Size(id AssetID) int {
	return ord.String.Size(string(id))
}

func (assetIDMUS) Marshal(id AssetID, bs []byte) int {
	return ord.String.Marshal(string(id), bs)
}

func (assetIDMUS) Unmarshal(bs []byte) (AssetID, int, error) {
	s, n, err := ord.String.Unmarshal(bs)
	return AssetID(s), n, err
}

type assetMUS struct{}

func (assetMUS) Size(a Asset) (size int) {
	size += ord.String.Size(string(a.ID))
	size += ord.String.Size(a.SourceURL)
	size += ord.String.Size(a.Checksum)
	size += ord.String.Size(a.StorageKey)
	size += ord.String.Size(a.License)
	size += ord.String.Size(a.Source)
	size += varint.Int.Size(int(a.Status))
	size += varint.Int64.Size(a.CreatedAt.UnixMicro())
	size += varint.Int64.Size(a.UpdatedAt.UnixMicro())
	return size
}

func (assetMUS) Marshal(a Asset, bs []byte) (n int) {
	n += ord.String.Marshal(string(a.ID), bs[n:])
	n += ord.String.Marshal(a.SourceURL, bs[n:])
	n += ord.String.Marshal(a.Checksum, bs[n:])
	n += ord.String.Marshal(a.StorageKey, bs[n:])
	n += ord.String.Marshal(a.License, bs[n:])
	n += ord.String.Marshal(a.Source, bs[n:])
	n += varint.Int.Marshal(int(a.Status), bs[n:])
	n += varint.Int64.Marshal(a.CreatedAt.UnixMicro(), bs[n:])
	n += varint.Int64.Marshal(a.UpdatedAt.UnixMicro(), bs[n:])
	return n
}

func (assetMUS) Unmarshal(bs []byte) (a Asset, n int, err error) {
	var (
		n1 int
		s  string
		i  int
		ts int64
	)
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return a, n + n1, err
	}
	n += n1
	a.ID = AssetID(s)

	if a.SourceURL, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return a, n + n1, err
	}
	n += n1

	if a.Checksum, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return a, n + n1, err
	}
	n += n1

	if a.StorageKey, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return a, n + n1, err
	}
	n += n1

	if a.License, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return a, n + n1, err
	}
	n += n1

	if a.Source, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return a, n + n1, err
	}
	n += n1

	if i, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return a, n + n1, err
	}
	n += n1
	a.Status = Status(i)

	if ts, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return a, n + n1, err
	}
	n += n1
	a.CreatedAt = time.UnixMicro(ts).UTC()

	if ts, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return a, n + n1, err
	}
	n += n1
	a.UpdatedAt = time.UnixMicro(ts).UTC()

	return a, n, nil
}

type featureRecordMUS struct{}

func (featureRecordMUS) Size(r FeatureRecord) (size int) {
	size += ord.String.Size(string(r.AssetID))
	size += ord.String.Size(string(r.Modality))
	size += varint.Uint64.Size(r.Fingerprint)
	size += ord.Bool.Size(r.HasFingerprint)
	size += varint.Int.Size(len(r.Embedding))
	size += len(r.Embedding) * raw.Float32.Size(0)
	size += ord.Bool.Size(r.HasEmbedding)
	size += varint.Int64.Size(r.Meta.ByteSize)
	size += varint.Int.Size(r.Meta.Width)
	size += varint.Int.Size(r.Meta.Height)
	size += ord.String.Size(r.Meta.Format)
	size += varint.Int.Size(r.Meta.WordCount)
	size += ord.String.Size(r.Meta.Lang)
	size += varint.Int.Size(r.Meta.SampleRate)
	size += varint.Int64.Size(r.Meta.DurationMS)
	size += varint.Int64.Size(r.CreatedAt.UnixMicro())
	return size
}

func (featureRecordMUS) Marshal(r FeatureRecord, bs []byte) (n int) {
	n += ord.String.Marshal(string(r.AssetID), bs[n:])
	n += ord.String.Marshal(string(r.Modality), bs[n:])
	n += varint.Uint64.Marshal(r.Fingerprint, bs[n:])
	n += ord.Bool.Marshal(r.HasFingerprint, bs[n:])
	n += varint.Int.Marshal(len(r.Embedding), bs[n:])
	for _, v := range r.Embedding {
		n += raw.Float32.Marshal(v, bs[n:])
	}
	n += ord.Bool.Marshal(r.HasEmbedding, bs[n:])
	n += varint.Int64.Marshal(r.Meta.ByteSize, bs[n:])
	n += varint.Int.Marshal(r.Meta.Width, bs[n:])
	n += varint.Int.Marshal(r.Meta.Height, bs[n:])
	n += ord.String.Marshal(r.Meta.Format, bs[n:])
	n += varint.Int.Marshal(r.Meta.WordCount, bs[n:])
	n += ord.String.Marshal(r.Meta.Lang, bs[n:])
	n += varint.Int.Marshal(r.Meta.SampleRate, bs[n:])
	n += varint.Int64.Marshal(r.Meta.DurationMS, bs[n:])
	n += varint.Int64.Marshal(r.CreatedAt.UnixMicro(), bs[n:])
	return n
}

func (featureRecordMUS) Unmarshal(bs []byte) (r FeatureRecord, n int, err error) {
	var (
		n1     int
		s      string
		length int
		ts     int64
	)
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	r.AssetID = AssetID(s)

	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	r.Modality = Modality(s)

	if r.Fingerprint, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1

	if r.HasFingerprint, n1, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1

	if length, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	if length > 0 {
		r.Embedding = make([]float32, length)
		for i := 0; i < length; i++ {
			if r.Embedding[i], n1, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
				return r, n + n1, err
			}
			n += n1
		}
	}

	if r.HasEmbedding, n1, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1

	if r.Meta.ByteSize, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1

	if r.Meta.Width, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1

	if r.Meta.Height, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1

	if r.Meta.Format, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1

	if r.Meta.WordCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1

	if r.Meta.Lang, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1

	if r.Meta.SampleRate, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1

	if r.Meta.DurationMS, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1

	if ts, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	r.CreatedAt = time.UnixMicro(ts).UTC()

	return r, n, nil
}

type aggregatedLabelMUS struct{}

func (aggregatedLabelMUS) Size(l AggregatedLabel) (size int) {
	size += ord.String.Size(string(l.AssetID))
	size += raw.Float64.Size(l.PPositive)
	size += varint.Int.Size(l.VoteCount)
	size += ord.String.Size(l.RunID)
	size += varint.Int64.Size(l.CreatedAt.UnixMicro())
	return size
}

func (aggregatedLabelMUS) Marshal(l AggregatedLabel, bs []byte) (n int) {
	n += ord.String.Marshal(string(l.AssetID), bs[n:])
	n += raw.Float64.Marshal(l.PPositive, bs[n:])
	n += varint.Int.Marshal(l.VoteCount, bs[n:])
	n += ord.String.Marshal(l.RunID, bs[n:])
	n += varint.Int64.Marshal(l.CreatedAt.UnixMicro(), bs[n:])
	return n
}

func (aggregatedLabelMUS) Unmarshal(bs []byte) (l AggregatedLabel, n int, err error) {
	var (
		n1 int
		s  string
		ts int64
	)
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return l, n + n1, err
	}
	n += n1
	l.AssetID = AssetID(s)

	if l.PPositive, n1, err = raw.Float64.Unmarshal(bs[n:]); err != nil {
		return l, n + n1, err
	}
	n += n1

	if l.VoteCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return l, n + n1, err
	}
	n += n1

	if l.RunID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return l, n + n1, err
	}
	n += n1

	if ts, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return l, n + n1, err
	}
	n += n1
	l.CreatedAt = time.UnixMicro(ts).UTC()

	return l, n, nil
}
