package ingest

import "errors"

var (
	// ErrAssetRepositoryRequired is returned when an asset repository is not provided.
	ErrAssetRepositoryRequired = errors.New("asset repository required")

	// ErrBlobStoreRequired is returned when a blob store is not provided.
	ErrBlobStoreRequired = errors.New("blob store required")

	// ErrFetcherRequired is returned when a fetcher is not provided.
	ErrFetcherRequired = errors.New("fetcher required")

	// ErrEmptyURL is returned for a request without a source locator.
	ErrEmptyURL = errors.New("source url required")

	// ErrWinnerNotVisible is returned when an ingestion lost the checksum
	// race but the winning asset never became readable. This indicates a
	// storage-level problem, not a normal race outcome.
	ErrWinnerNotVisible = errors.New("checksum race winner not visible after retries")
)
