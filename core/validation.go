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
	"fmt"
	"math"
)

// statusRank orders the forward lifecycle chain. StatusFailed sits outside
// the chain and is reachable only through the failure rule in
// ValidateTransition.
func statusRank(s Status) int {
	switch s {
	case StatusIngested:
		return 1
	case StatusProcessing:
		return 2
	case StatusLabeled:
		return 3
	case StatusShipped:
		return 4
	default:
		return 0
	}
}

// ValidateAsset validates an Asset according to domain rules.
//
// Validation rules:
//   - ID, SourceURL, Checksum and StorageKey must not be empty
//   - Status must be a known value
//
// NOT validated (populated by downstream stages):
//   - License and Source (optional provenance tags)
func ValidateAsset(asset *Asset) error {
	if asset == nil {
		return fmt.Errorf("%w: asset is nil", ErrInvalidAsset)
	}

	if asset.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidAsset, ErrEmptyAssetID)
	}

	if asset.SourceURL == "" {
		return fmt.Errorf("%w: %w", ErrInvalidAsset, ErrEmptySourceURL)
	}

	if asset.Checksum == "" {
		return fmt.Errorf("%w: %w", ErrInvalidAsset, ErrEmptyChecksum)
	}

	if asset.StorageKey == "" {
		return fmt.Errorf("%w: %w", ErrInvalidAsset, ErrEmptyStorageKey)
	}

	if err := ValidateStatus(asset.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAsset, err)
	}

	return nil
}

// ValidateStatus validates that a Status has a known value.
func ValidateStatus(status Status) error {
	switch status {
	case StatusIngested, StatusProcessing, StatusLabeled, StatusShipped, StatusFailed:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidStatus, status)
	}
}

// ValidateTransition checks that a status change moves the lifecycle
// strictly forward. Allowed moves:
//
//	ingested -> processing -> labeled -> shipped
//	ingested | processing -> failed
//
// Any regression, including re-entering the same status, is rejected.
// Explicit reprocessing requests bypass this check through the dedicated
// repository reset operation.
func ValidateTransition(from, to Status) error {
	if err := ValidateStatus(from); err != nil {
		return err
	}
	if err := ValidateStatus(to); err != nil {
		return err
	}

	if to == StatusFailed {
		if from == StatusIngested || from == StatusProcessing {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	fromRank, toRank := statusRank(from), statusRank(to)
	if fromRank == 0 || toRank <= fromRank {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	return nil
}

// ValidateModality validates that a Modality has a known value.
func ValidateModality(m Modality) error {
	switch m {
	case ModalityImage, ModalityText, ModalityAudio:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidModality, string(m))
	}
}

// ValidateFeatureRecord validates a FeatureRecord according to domain rules.
//
// Validation rules:
//   - AssetID must not be empty
//   - Modality must be valid
//   - HasEmbedding must agree with the Embedding slice
//   - HasFingerprint=false requires a zero fingerprint
func ValidateFeatureRecord(record *FeatureRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidFeatureRecord)
	}

	if record.AssetID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFeatureRecord, ErrEmptyAssetID)
	}

	if err := ValidateModality(record.Modality); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFeatureRecord, err)
	}

	if record.HasEmbedding && len(record.Embedding) == 0 {
		return fmt.Errorf("%w: HasEmbedding set with empty embedding", ErrInvalidFeatureRecord)
	}
	if !record.HasEmbedding && len(record.Embedding) != 0 {
		return fmt.Errorf("%w: embedding present without HasEmbedding", ErrInvalidFeatureRecord)
	}

	if !record.HasFingerprint && record.Fingerprint != 0 {
		return fmt.Errorf("%w: fingerprint present without HasFingerprint", ErrInvalidFeatureRecord)
	}

	return nil
}

// ValidateVote validates that a Vote has a known value.
func ValidateVote(v Vote) error {
	switch v {
	case VoteAbstain, VoteNegative, VotePositive:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidVote, v)
	}
}

// ValidateLabel validates an AggregatedLabel according to domain rules.
func ValidateLabel(label *AggregatedLabel) error {
	if label == nil {
		return fmt.Errorf("%w: label is nil", ErrInvalidLabel)
	}

	if label.AssetID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidLabel, ErrEmptyAssetID)
	}

	if math.IsNaN(label.PPositive) || label.PPositive < 0 || label.PPositive > 1 {
		return fmt.Errorf("%w: %w: %v", ErrInvalidLabel, ErrInvalidProbability, label.PPositive)
	}

	if label.VoteCount < 0 {
		return fmt.Errorf("%w: negative vote count %d", ErrInvalidLabel, label.VoteCount)
	}

	return nil
}
