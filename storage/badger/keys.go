package badger

import (
	"fmt"

	"github.com/poiesic/datakiln/core"
)

// Key prefixes for different data types
const (
	assetRecordPrefix   = "astrec"
	assetChecksumPrefix = "astcks"
	featureRecordPrefix = "fearec"
	labelRecordPrefix   = "labrec"
	labelRunPrefix      = "labrun"
)

// makeAssetKey generates a key for an asset record by ID.
func makeAssetKey(id core.AssetID) []byte {
	return []byte(fmt.Sprintf("%s:%s", assetRecordPrefix, id))
}

// makeChecksumKey generates a key for the checksum uniqueness index.
// The value stored under this key is the owning asset's ID.
func makeChecksumKey(checksum string) []byte {
	return []byte(fmt.Sprintf("%s:%s", assetChecksumPrefix, checksum))
}

// makeFeatureKey generates a key for a feature record by asset ID.
func makeFeatureKey(id core.AssetID) []byte {
	return []byte(fmt.Sprintf("%s:%s", featureRecordPrefix, id))
}

// makeLabelKey generates a key for an aggregated label by asset ID.
func makeLabelKey(id core.AssetID) []byte {
	return []byte(fmt.Sprintf("%s:%s", labelRecordPrefix, id))
}

// makeLabelRunKey generates a composite key for the run index.
// Format: prefix:runID:assetID
func makeLabelRunKey(runID string, id core.AssetID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", labelRunPrefix, runID, id))
}

// makePartialLabelRunKey generates a partial key for run scans.
// Format: prefix:runID:
func makePartialLabelRunKey(runID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", labelRunPrefix, runID))
}
