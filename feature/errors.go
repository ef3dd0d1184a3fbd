package feature

import (
	"errors"
	"fmt"

	"github.com/poiesic/datakiln/core"
)

var (
	// ErrAssetRepositoryRequired is returned when an asset repository is not provided.
	ErrAssetRepositoryRequired = errors.New("asset repository required")

	// ErrFeatureRepositoryRequired is returned when a feature repository is not provided.
	ErrFeatureRepositoryRequired = errors.New("feature repository required")

	// ErrBlobStoreRequired is returned when a blob store is not provided.
	ErrBlobStoreRequired = errors.New("blob store required")

	// ErrUnknownModality indicates content whose modality could not be
	// determined from its bytes.
	ErrUnknownModality = errors.New("unknown content modality")
)

// ExtractionError reports a per-asset extraction failure. The batch runner
// marks the asset failed and continues; the error never aborts a run.
type ExtractionError struct {
	AssetID  core.AssetID
	Modality core.Modality
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Modality != "" {
		return fmt.Sprintf("extract asset %s (%s): %v", e.AssetID, e.Modality, e.Err)
	}
	return fmt.Sprintf("extract asset %s: %v", e.AssetID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func extractionErr(id core.AssetID, modality core.Modality, err error) *ExtractionError {
	return &ExtractionError{AssetID: id, Modality: modality, Err: err}
}
