// Package storage persists and restores engine snapshots: both vector
// indices and the product catalog, versioned together by a manifest.
package storage

import (
	"errors"
	"time"
)

// ErrCorrupt is returned when a snapshot is present but unreadable or
// internally inconsistent (e.g. metadata count differs from index size).
// A corrupt snapshot is never partially loaded.
var ErrCorrupt = errors.New("snapshot corrupt")

// manifestFile is the name of the snapshot manifest inside the snapshot
// directory. The manifest is written last: a snapshot exists exactly when a
// readable manifest references intact artifacts.
const manifestFile = "MANIFEST.json"

// Manifest describes one committed snapshot. The artifact files it names are
// immutable once the manifest referencing them is in place; a new save writes
// fresh artifact names and swaps the manifest.
type Manifest struct {
	Version         int       `json:"version"`
	SnapshotID      string    `json:"snapshot_id"`
	CreatedAt       time.Time `json:"created_at"`
	Count           int       `json:"count"`
	ImageDimensions int       `json:"image_dimensions"`
	TextDimensions  int       `json:"text_dimensions"`
	ImageIndexFile  string    `json:"image_index_file"`
	TextIndexFile   string    `json:"text_index_file"`
	ProductsFile    string    `json:"products_file"`
}

// manifestVersion is the current snapshot format version.
const manifestVersion = 1
