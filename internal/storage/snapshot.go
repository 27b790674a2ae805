package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/mekiki/internal/catalog"
	"github.com/hyperjump/mekiki/internal/index"
	"github.com/hyperjump/mekiki/internal/vector"
)

// Save writes a snapshot of the manager's state into dir. Artifacts are
// written first under names unique to this snapshot; the manifest is renamed
// into place last, so a crash at any point leaves the previous manifest
// pointing at its own intact artifacts. Obsolete artifact files from earlier
// snapshots are removed best-effort after the commit.
func Save(ctx context.Context, m *index.Manager, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	return m.Freeze(ctx, func(imageIndex, textIndex vector.Index, products *catalog.Store) error {
		id := uuid.New().String()
		manifest := &Manifest{
			Version:         manifestVersion,
			SnapshotID:      id,
			CreatedAt:       time.Now().UTC(),
			Count:           products.Count(),
			ImageDimensions: imageIndex.Dimensions(),
			TextDimensions:  textIndex.Dimensions(),
			ImageIndexFile:  "image-" + id + ".vec",
			TextIndexFile:   "text-" + id + ".vec",
			ProductsFile:    "products-" + id + ".db",
		}

		if err := imageIndex.Save(filepath.Join(dir, manifest.ImageIndexFile)); err != nil {
			return fmt.Errorf("save image index: %w", err)
		}
		if err := textIndex.Save(filepath.Join(dir, manifest.TextIndexFile)); err != nil {
			return fmt.Errorf("save text index: %w", err)
		}
		if err := WriteProducts(filepath.Join(dir, manifest.ProductsFile), products.All()); err != nil {
			return fmt.Errorf("save products: %w", err)
		}
		if err := writeManifest(filepath.Join(dir, manifestFile), manifest); err != nil {
			return err
		}
		cleanupObsolete(dir, manifest)
		return nil
	})
}

func writeManifest(path string, manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit manifest: %w", err)
	}
	return nil
}

// cleanupObsolete removes artifact files in dir not referenced by the current
// manifest. Failures are ignored; stale files only cost disk space.
func cleanupObsolete(dir string, manifest *Manifest) {
	keep := map[string]bool{
		manifestFile:            true,
		manifest.ImageIndexFile: true,
		manifest.TextIndexFile:  true,
		manifest.ProductsFile:   true,
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if keep[name] || entry.IsDir() {
			continue
		}
		if strings.HasPrefix(name, "image-") || strings.HasPrefix(name, "text-") || strings.HasPrefix(name, "products-") {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}

// Load restores the manager's state from the snapshot in dir. A missing
// manifest means a fresh deployment: the manager is left in its empty initial
// state and Load returns (false, nil). A manifest that is unreadable, that
// references missing artifacts, or whose counts disagree with the loaded data
// yields ErrCorrupt. A load that fails partway can leave one index populated,
// but never a silently usable engine: every manager operation fails its
// consistency check until a later Load succeeds, and callers treat a Load
// error at startup as fatal.
func Load(ctx context.Context, m *index.Manager, dir string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: read manifest: %v", ErrCorrupt, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return false, fmt.Errorf("%w: parse manifest: %v", ErrCorrupt, err)
	}
	if manifest.Version != manifestVersion {
		return false, fmt.Errorf("%w: unsupported snapshot version %d", ErrCorrupt, manifest.Version)
	}

	err = m.Freeze(ctx, func(imageIndex, textIndex vector.Index, products *catalog.Store) error {
		if err := loadIndex(imageIndex, filepath.Join(dir, manifest.ImageIndexFile), manifest.Count, "image"); err != nil {
			return err
		}
		if err := loadIndex(textIndex, filepath.Join(dir, manifest.TextIndexFile), manifest.Count, "text"); err != nil {
			return err
		}
		records, err := ReadProducts(filepath.Join(dir, manifest.ProductsFile))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if len(records) != manifest.Count {
			return fmt.Errorf("%w: metadata count %d != manifest count %d", ErrCorrupt, len(records), manifest.Count)
		}
		products.Replace(records)
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func loadIndex(idx vector.Index, path string, wantCount int, modality string) error {
	// The index treats a missing file as a fresh start, but an artifact named
	// by a manifest must exist; check explicitly.
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s index artifact missing: %v", ErrCorrupt, modality, err)
	}
	if err := idx.Load(path); err != nil {
		return fmt.Errorf("%w: load %s index: %v", ErrCorrupt, modality, err)
	}
	if idx.Size() != wantCount {
		return fmt.Errorf("%w: %s index size %d != manifest count %d", ErrCorrupt, modality, idx.Size(), wantCount)
	}
	return nil
}
