package neardup

import "errors"

var (
	// ErrFeatureRepositoryRequired is returned when a feature repository is not provided.
	ErrFeatureRepositoryRequired = errors.New("feature repository required")

	// ErrNoSignal is returned when the queried asset has neither a
	// fingerprint nor an embedding to compare with.
	ErrNoSignal = errors.New("asset has no fingerprint and no embedding")
)
