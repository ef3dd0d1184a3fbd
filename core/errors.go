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

import "errors"

// Domain validation errors
var (
	// ErrInvalidAsset indicates an Asset failed validation.
	ErrInvalidAsset = errors.New("invalid asset")

	// ErrInvalidFeatureRecord indicates a FeatureRecord failed validation.
	ErrInvalidFeatureRecord = errors.New("invalid feature record")

	// ErrInvalidLabel indicates an AggregatedLabel failed validation.
	ErrInvalidLabel = errors.New("invalid aggregated label")

	// ErrEmptyAssetID indicates the asset identifier is empty.
	ErrEmptyAssetID = errors.New("asset id cannot be empty")

	// ErrEmptySourceURL indicates the source locator is empty.
	ErrEmptySourceURL = errors.New("source url cannot be empty")

	// ErrEmptyChecksum indicates the checksum field is empty.
	ErrEmptyChecksum = errors.New("checksum cannot be empty")

	// ErrEmptyStorageKey indicates the blob storage key is empty.
	ErrEmptyStorageKey = errors.New("storage key cannot be empty")

	// ErrInvalidStatus indicates an unknown Status value.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidTransition indicates a status change that would move the
	// lifecycle backwards or sideways.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidModality indicates an unknown Modality value.
	ErrInvalidModality = errors.New("invalid modality")

	// ErrInvalidVote indicates a vote value outside {abstain, negative, positive}.
	ErrInvalidVote = errors.New("invalid vote")

	// ErrInvalidProbability indicates a probability outside [0, 1].
	ErrInvalidProbability = errors.New("probability must be within [0, 1]")
)
