package core

import (
	"errors"
	"testing"
	"time"
)

func validAsset() *Asset {
	return &Asset{
		ID:         NewAssetID(),
		SourceURL:  "https://example.com/cat.jpg",
		Checksum:   Checksum([]byte("cat bytes")),
		StorageKey: "raw/0011223344556677_1700000000",
		License:    "cc-by-4.0",
		Source:     "crawl",
		Status:     StatusIngested,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestValidateAsset(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Asset)
		wantErr error
	}{
		{
			name:    "valid asset",
			mutate:  func(a *Asset) {},
			wantErr: nil,
		},
		{
			name:    "empty license and source are fine",
			mutate:  func(a *Asset) { a.License = ""; a.Source = "" },
			wantErr: nil,
		},
		{
			name:    "missing id",
			mutate:  func(a *Asset) { a.ID = "" },
			wantErr: ErrEmptyAssetID,
		},
		{
			name:    "missing source url",
			mutate:  func(a *Asset) { a.SourceURL = "" },
			wantErr: ErrEmptySourceURL,
		},
		{
			name:    "missing checksum",
			mutate:  func(a *Asset) { a.Checksum = "" },
			wantErr: ErrEmptyChecksum,
		},
		{
			name:    "missing storage key",
			mutate:  func(a *Asset) { a.StorageKey = "" },
			wantErr: ErrEmptyStorageKey,
		},
		{
			name:    "unknown status",
			mutate:  func(a *Asset) { a.Status = Status(99) },
			wantErr: ErrInvalidStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset := validAsset()
			tt.mutate(asset)

			err := ValidateAsset(asset)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateAsset() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateAsset() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidAsset) {
				t.Errorf("ValidateAsset() error = %v, should wrap ErrInvalidAsset", err)
			}
		})
	}

	if err := ValidateAsset(nil); !errors.Is(err, ErrInvalidAsset) {
		t.Errorf("ValidateAsset(nil) error = %v, want ErrInvalidAsset", err)
	}
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr error
	}{
		{"ingested to processing", StatusIngested, StatusProcessing, nil},
		{"processing to labeled", StatusProcessing, StatusLabeled, nil},
		{"labeled to shipped", StatusLabeled, StatusShipped, nil},
		{"skip ahead ingested to labeled", StatusIngested, StatusLabeled, nil},
		{"ingested to failed", StatusIngested, StatusFailed, nil},
		{"processing to failed", StatusProcessing, StatusFailed, nil},
		{"no self transition", StatusProcessing, StatusProcessing, ErrInvalidTransition},
		{"no regression", StatusLabeled, StatusProcessing, ErrInvalidTransition},
		{"no regression from shipped", StatusShipped, StatusIngested, ErrInvalidTransition},
		{"labeled cannot fail", StatusLabeled, StatusFailed, ErrInvalidTransition},
		{"shipped cannot fail", StatusShipped, StatusFailed, ErrInvalidTransition},
		{"failed is terminal", StatusFailed, StatusProcessing, ErrInvalidTransition},
		{"unknown from", Status(0), StatusIngested, ErrInvalidStatus},
		{"unknown to", StatusIngested, Status(9), ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateTransition(%s, %s) error = %v, want nil", tt.from, tt.to, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTransition(%s, %s) error = %v, want %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFeatureRecord(t *testing.T) {
	valid := func() *FeatureRecord {
		return &FeatureRecord{
			AssetID:        NewAssetID(),
			Modality:       ModalityImage,
			Fingerprint:    0xdeadbeef,
			HasFingerprint: true,
			Embedding:      []float32{0.6, 0.8},
			HasEmbedding:   true,
			Meta:           FeatureMeta{ByteSize: 128, Width: 2, Height: 2, Format: "png"},
			CreatedAt:      time.Now().UTC(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*FeatureRecord)
		wantErr error
	}{
		{
			name:    "valid record",
			mutate:  func(r *FeatureRecord) {},
			wantErr: nil,
		},
		{
			name: "no embedding marker",
			mutate: func(r *FeatureRecord) {
				r.Embedding = nil
				r.HasEmbedding = false
			},
			wantErr: nil,
		},
		{
			name: "text record without fingerprint",
			mutate: func(r *FeatureRecord) {
				r.Modality = ModalityText
				r.Fingerprint = 0
				r.HasFingerprint = false
			},
			wantErr: nil,
		},
		{
			name:    "missing asset id",
			mutate:  func(r *FeatureRecord) { r.AssetID = "" },
			wantErr: ErrEmptyAssetID,
		},
		{
			name:    "unknown modality",
			mutate:  func(r *FeatureRecord) { r.Modality = "video" },
			wantErr: ErrInvalidModality,
		},
		{
			name:    "marker without embedding",
			mutate:  func(r *FeatureRecord) { r.Embedding = nil },
			wantErr: ErrInvalidFeatureRecord,
		},
		{
			name:    "embedding without marker",
			mutate:  func(r *FeatureRecord) { r.HasEmbedding = false },
			wantErr: ErrInvalidFeatureRecord,
		},
		{
			name: "fingerprint without marker",
			mutate: func(r *FeatureRecord) {
				r.HasFingerprint = false
			},
			wantErr: ErrInvalidFeatureRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := valid()
			tt.mutate(record)

			err := ValidateFeatureRecord(record)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateFeatureRecord() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateFeatureRecord() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateLabel(t *testing.T) {
	tests := []struct {
		name    string
		label   *AggregatedLabel
		wantErr error
	}{
		{
			name:    "valid label",
			label:   &AggregatedLabel{AssetID: "a", PPositive: 0.75, VoteCount: 3},
			wantErr: nil,
		},
		{
			name:    "boundary zero",
			label:   &AggregatedLabel{AssetID: "a", PPositive: 0},
			wantErr: nil,
		},
		{
			name:    "boundary one",
			label:   &AggregatedLabel{AssetID: "a", PPositive: 1},
			wantErr: nil,
		},
		{
			name:    "nil label",
			label:   nil,
			wantErr: ErrInvalidLabel,
		},
		{
			name:    "missing asset id",
			label:   &AggregatedLabel{PPositive: 0.5},
			wantErr: ErrEmptyAssetID,
		},
		{
			name:    "probability above one",
			label:   &AggregatedLabel{AssetID: "a", PPositive: 1.5},
			wantErr: ErrInvalidProbability,
		},
		{
			name:    "negative probability",
			label:   &AggregatedLabel{AssetID: "a", PPositive: -0.1},
			wantErr: ErrInvalidProbability,
		},
		{
			name:    "negative vote count",
			label:   &AggregatedLabel{AssetID: "a", PPositive: 0.5, VoteCount: -1},
			wantErr: ErrInvalidLabel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLabel(tt.label)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateLabel() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateLabel() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateVote(t *testing.T) {
	for _, v := range []Vote{VoteAbstain, VoteNegative, VotePositive} {
		if err := ValidateVote(v); err != nil {
			t.Errorf("ValidateVote(%d) error = %v, want nil", v, err)
		}
	}
	if err := ValidateVote(Vote(2)); !errors.Is(err, ErrInvalidVote) {
		t.Errorf("ValidateVote(2) error = %v, want ErrInvalidVote", err)
	}
}
