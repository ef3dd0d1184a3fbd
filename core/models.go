package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// AssetID is a unique identifier for an ingested asset.
// It is assigned exactly once, at first ingest, and never reused.
type AssetID string

// NewAssetID generates a new random AssetID.
func NewAssetID() AssetID {
	return AssetID(uuid.NewString())
}

// Checksum computes the hex-encoded BLAKE2b-256 digest of raw asset bytes.
// Identical bytes always produce identical checksums; the checksum is the
// key for exact-duplicate detection during ingestion.
func Checksum(data []byte) string {
	h, _ := blake2b.New(32, nil) // 32 bytes = 256 bits
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Status tracks an asset's position in the pipeline lifecycle.
// Transitions move strictly forward; see ValidateTransition.
type Status int

const (
	// StatusIngested means raw bytes are stored and metadata is committed.
	StatusIngested Status = iota + 1
	// StatusProcessing means a feature record has been extracted.
	StatusProcessing
	// StatusLabeled means an aggregated label has been computed.
	StatusLabeled
	// StatusShipped means the asset has been packed into a shard.
	StatusShipped
	// StatusFailed means feature extraction rejected the asset.
	StatusFailed
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusIngested:
		return "ingested"
	case StatusProcessing:
		return "processing"
	case StatusLabeled:
		return "labeled"
	case StatusShipped:
		return "shipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Modality identifies the kind of content an asset holds.
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityText  Modality = "text"
	ModalityAudio Modality = "audio"
)

// Vote is a single labeling function's opinion on a single asset.
type Vote int8

const (
	// VoteAbstain means the labeling function offers no opinion.
	VoteAbstain Vote = -1
	// VoteNegative votes for the negative class.
	VoteNegative Vote = 0
	// VotePositive votes for the positive class.
	VotePositive Vote = 1
)

// Asset is the metadata row for one ingested piece of content.
// The raw bytes live in the blob store under StorageKey; the checksum
// maps one-to-one to the asset identifier.
type Asset struct {
	ID         AssetID
	SourceURL  string
	Checksum   string
	StorageKey string
	License    string
	Source     string // provenance tag, e.g. "laion", "crawl-2026-08"
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FeatureMeta holds structural metadata extracted alongside the embedding.
// Fields that do not apply to the record's modality stay at their zero value.
type FeatureMeta struct {
	ByteSize   int64
	Width      int    // images
	Height     int    // images
	Format     string // images: "jpeg", "png", "gif"; audio: "wav"
	WordCount  int    // text
	Lang       string // text
	SampleRate int    // audio, Hz
	DurationMS int64  // audio
}

// FeatureRecord is the one-to-one feature row for an asset.
// It is created once by the extractor and immutable afterwards, except
// that a missing embedding may be filled in by a reprocessing run.
type FeatureRecord struct {
	AssetID        AssetID
	Modality       Modality
	Fingerprint    uint64 // 64-bit perceptual hash, images only
	HasFingerprint bool
	Embedding      []float32 // unit-normalized when present
	HasEmbedding   bool      // false marks "no embedding", not an error
	Meta           FeatureMeta
	CreatedAt      time.Time
}

// AggregatedLabel is the posterior probability of the positive class for
// one asset, computed by a label aggregation run over many noisy votes.
type AggregatedLabel struct {
	AssetID   AssetID
	PPositive float64 // within [0, 1]
	VoteCount int     // non-abstaining votes that informed the posterior
	RunID     string
	CreatedAt time.Time
}

// Sample is one labeled training example bound for a shard.
// Key is the sample's archive key; the shard writer assigns one if empty.
type Sample struct {
	Key     string
	AssetID AssetID
	Data    []byte
	Format  string // payload member extension, e.g. "jpg", "txt", "wav"
	Caption string
	Meta    FeatureMeta
	Label   *AggregatedLabel
}
