package core

import (
	"testing"
	"time"
)

func TestAssetMUS_RoundTrip(t *testing.T) {
	asset := Asset{
		ID:         NewAssetID(),
		SourceURL:  "https://example.com/data/dog.png",
		Checksum:   Checksum([]byte("dog bytes")),
		StorageKey: "raw/aabbccdd00112233_1755900000",
		License:    "cc0",
		Source:     "openimages",
		Status:     StatusProcessing,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}

	buf := make([]byte, AssetMUS.Size(asset))
	n := AssetMUS.Marshal(asset, buf)
	if n != len(buf) {
		t.Fatalf("Marshal wrote %d bytes, Size predicted %d", n, len(buf))
	}

	got, n, err := AssetMUS.Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if n != len(buf) {
		t.Errorf("Unmarshal consumed %d bytes, want %d", n, len(buf))
	}
	if got != asset {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, asset)
	}
}

func TestAssetMUS_Truncated(t *testing.T) {
	asset := Asset{
		ID:         "id",
		SourceURL:  "https://example.com/x",
		Checksum:   "abc",
		StorageKey: "raw/abc_1",
		Status:     StatusIngested,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	buf := make([]byte, AssetMUS.Size(asset))
	AssetMUS.Marshal(asset, buf)

	if _, _, err := AssetMUS.Unmarshal(buf[:len(buf)/2]); err == nil {
		t.Error("Unmarshal(truncated) expected error, got nil")
	}
}

func TestFeatureRecordMUS_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		record FeatureRecord
	}{
		{
			name: "image with embedding",
			record: FeatureRecord{
				AssetID:        "asset-1",
				Modality:       ModalityImage,
				Fingerprint:    0x8f3a5c7e90112233,
				HasFingerprint: true,
				Embedding:      []float32{0.1, -0.4, 0.88, 0},
				HasEmbedding:   true,
				Meta:           FeatureMeta{ByteSize: 2048, Width: 64, Height: 48, Format: "jpeg"},
				CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
			},
		},
		{
			name: "text without embedding",
			record: FeatureRecord{
				AssetID:      "asset-2",
				Modality:     ModalityText,
				HasEmbedding: false,
				Meta:         FeatureMeta{ByteSize: 77, WordCount: 12, Lang: "en"},
				CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
			},
		},
		{
			name: "audio",
			record: FeatureRecord{
				AssetID:   "asset-3",
				Modality:  ModalityAudio,
				Meta:      FeatureMeta{ByteSize: 44100, Format: "wav", SampleRate: 22050, DurationMS: 1000},
				CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, FeatureRecordMUS.Size(tt.record))
			n := FeatureRecordMUS.Marshal(tt.record, buf)
			if n != len(buf) {
				t.Fatalf("Marshal wrote %d bytes, Size predicted %d", n, len(buf))
			}

			got, _, err := FeatureRecordMUS.Unmarshal(buf)
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}

			if got.AssetID != tt.record.AssetID ||
				got.Modality != tt.record.Modality ||
				got.Fingerprint != tt.record.Fingerprint ||
				got.HasFingerprint != tt.record.HasFingerprint ||
				got.HasEmbedding != tt.record.HasEmbedding ||
				got.Meta != tt.record.Meta ||
				!got.CreatedAt.Equal(tt.record.CreatedAt) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, tt.record)
			}
			if len(got.Embedding) != len(tt.record.Embedding) {
				t.Fatalf("embedding length = %d, want %d", len(got.Embedding), len(tt.record.Embedding))
			}
			for i := range got.Embedding {
				if got.Embedding[i] != tt.record.Embedding[i] {
					t.Errorf("embedding[%d] = %v, want %v", i, got.Embedding[i], tt.record.Embedding[i])
				}
			}
		})
	}
}

func TestAggregatedLabelMUS_RoundTrip(t *testing.T) {
	label := AggregatedLabel{
		AssetID:   "asset-9",
		PPositive: 0.8319,
		VoteCount: 4,
		RunID:     "run-20260823-1",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	buf := make([]byte, AggregatedLabelMUS.Size(label))
	AggregatedLabelMUS.Marshal(label, buf)

	got, _, err := AggregatedLabelMUS.Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got != label {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, label)
	}
}
