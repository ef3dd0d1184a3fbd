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


package storage

import (
	"github.com/poiesic/datakiln/core"
)

// MarshalAssetID serializes an AssetID to bytes.
func MarshalAssetID(id core.AssetID) []byte {
	buf := make([]byte, core.AssetIDMUS.Size(id))
	core.AssetIDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalAssetID deserializes an AssetID from bytes.
func UnmarshalAssetID(data []byte) (core.AssetID, error) {
	id, _, err := core.AssetIDMUS.Unmarshal(data)
	return id, err
}

// MarshalAsset serializes an Asset to bytes.
func MarshalAsset(asset *core.Asset) []byte {
	buf := make([]byte, core.AssetMUS.Size(*asset))
	core.AssetMUS.Marshal(*asset, buf)
	return buf
}

// UnmarshalAsset deserializes an Asset from bytes.
func UnmarshalAsset(data []byte) (*core.Asset, error) {
	asset, _, err := core.AssetMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// MarshalFeatureRecord serializes a FeatureRecord to bytes.
func MarshalFeatureRecord(record *core.FeatureRecord) []byte {
	buf := make([]byte, core.FeatureRecordMUS.Size(*record))
	core.FeatureRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalFeatureRecord deserializes a FeatureRecord from bytes.
func UnmarshalFeatureRecord(data []byte) (*core.FeatureRecord, error) {
	record, _, err := core.FeatureRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarshalAggregatedLabel serializes an AggregatedLabel to bytes.
func MarshalAggregatedLabel(label *core.AggregatedLabel) []byte {
	buf := make([]byte, core.AggregatedLabelMUS.Size(*label))
	core.AggregatedLabelMUS.Marshal(*label, buf)
	return buf
}

// UnmarshalAggregatedLabel deserializes an AggregatedLabel from bytes.
func UnmarshalAggregatedLabel(data []byte) (*core.AggregatedLabel, error) {
	label, _, err := core.AggregatedLabelMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &label, nil
}
