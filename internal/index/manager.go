// Package index coordinates the image index, the text index, and the product
// catalog as one consistent unit sharing dense slot ids.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/mekiki/internal/catalog"
	"github.com/hyperjump/mekiki/internal/models"
	"github.com/hyperjump/mekiki/internal/vector"
)

// ErrConsistency indicates the image index, text index, and catalog have
// diverged. This is a coordination bug, not bad input: the operation aborts
// and no auto-repair is attempted.
var ErrConsistency = errors.New("index consistency violation")

// Manager owns both vector indices and the product catalog. Every product
// occupies the same slot in all three, and all mutation goes through the
// exclusive write lock so the slots can never diverge.
type Manager struct {
	imageIndex vector.Index
	textIndex  vector.Index
	products   *catalog.Store
	lock       *rwLock
}

// NewManager creates a manager over the given stores. The stores must be
// empty or mutually consistent (equal sizes); they are owned by the manager
// from here on.
func NewManager(imageIndex, textIndex vector.Index, products *catalog.Store) (*Manager, error) {
	m := &Manager{
		imageIndex: imageIndex,
		textIndex:  textIndex,
		products:   products,
		lock:       newRWLock(),
	}
	if err := m.checkConsistency(); err != nil {
		return nil, err
	}
	return m, nil
}

// checkConsistency fails fast when the three stores disagree on size.
func (m *Manager) checkConsistency() error {
	img, txt, meta := m.imageIndex.Size(), m.textIndex.Size(), m.products.Count()
	if img != txt || img != meta {
		return fmt.Errorf("%w: image=%d text=%d metadata=%d", ErrConsistency, img, txt, meta)
	}
	return nil
}

// AddProduct inserts record with its image and text vectors under one slot.
// Both vectors are dimension-checked before any store is touched, so a
// rejected insert leaves all three stores unchanged. A failure between the
// individual inserts would break the shared-slot invariant and is surfaced
// as ErrConsistency; the engine should be considered unusable at that point.
func (m *Manager) AddProduct(ctx context.Context, record *models.Product, imageVec, textVec []float32) (int, error) {
	if record == nil {
		return 0, fmt.Errorf("nil product record")
	}
	if err := m.lock.lock(ctx); err != nil {
		return 0, err
	}
	defer m.lock.unlock()

	if err := m.checkConsistency(); err != nil {
		return 0, err
	}
	if err := validateDimension(m.imageIndex, imageVec, "image"); err != nil {
		return 0, err
	}
	if err := validateDimension(m.textIndex, textVec, "text"); err != nil {
		return 0, err
	}

	slot := m.products.Count()
	imgSlot, err := m.imageIndex.Add(ctx, imageVec)
	if err != nil {
		// Validation should have caught everything; the stores are still intact.
		return 0, fmt.Errorf("image index insert: %w", err)
	}
	txtSlot, err := m.textIndex.Add(ctx, textVec)
	if err != nil {
		return 0, fmt.Errorf("%w: image index advanced but text insert failed: %v", ErrConsistency, err)
	}
	if err := m.products.Put(slot, record); err != nil {
		return 0, fmt.Errorf("%w: indices advanced but metadata insert failed: %v", ErrConsistency, err)
	}
	if imgSlot != slot || txtSlot != slot {
		return 0, fmt.Errorf("%w: slot skew image=%d text=%d metadata=%d", ErrConsistency, imgSlot, txtSlot, slot)
	}
	return slot, nil
}

// validateDimension rejects vec before any mutation when it cannot be
// accepted by idx. An index with no fixed dimension accepts any non-empty vec.
func validateDimension(idx vector.Index, vec []float32, modality string) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty %s vector", vector.ErrDimensionMismatch, modality)
	}
	if d := idx.Dimensions(); d != 0 && len(vec) != d {
		return fmt.Errorf("%w: %s vector has %d, index expects %d", vector.ErrDimensionMismatch, modality, len(vec), d)
	}
	return nil
}

// SearchImage runs a raw top-k query against the image index.
func (m *Manager) SearchImage(ctx context.Context, query []float32, k int) ([]vector.Result, error) {
	return m.searchIndex(ctx, m.imageIndex, query, k)
}

// SearchText runs a raw top-k query against the text index.
func (m *Manager) SearchText(ctx context.Context, query []float32, k int) ([]vector.Result, error) {
	return m.searchIndex(ctx, m.textIndex, query, k)
}

func (m *Manager) searchIndex(ctx context.Context, idx vector.Index, query []float32, k int) ([]vector.Result, error) {
	if err := m.lock.rlock(ctx); err != nil {
		return nil, err
	}
	defer m.lock.runlock()
	if err := m.checkConsistency(); err != nil {
		return nil, err
	}
	return idx.Search(ctx, query, k)
}

// GetProduct returns the product record at slot.
func (m *Manager) GetProduct(ctx context.Context, slot int) (*models.Product, error) {
	if err := m.lock.rlock(ctx); err != nil {
		return nil, err
	}
	defer m.lock.runlock()
	return m.products.Get(slot)
}

// Size returns the number of indexed products.
func (m *Manager) Size() int {
	return m.products.Count()
}

// ImageCount returns the image index size.
func (m *Manager) ImageCount() int { return m.imageIndex.Size() }

// TextCount returns the text index size.
func (m *Manager) TextCount() int { return m.textIndex.Size() }

// Products returns the catalog store for read-side metadata resolution that
// already runs inside a Freeze or search critical section.
func (m *Manager) Products() *catalog.Store { return m.products }

// Freeze runs fn with the exclusive write lock held, giving it a quiesced view
// of all three stores. Snapshot save and load run through Freeze so that no
// add or search interleaves with serialization.
func (m *Manager) Freeze(ctx context.Context, fn func(imageIndex, textIndex vector.Index, products *catalog.Store) error) error {
	if err := m.lock.lock(ctx); err != nil {
		return err
	}
	defer m.lock.unlock()
	if err := fn(m.imageIndex, m.textIndex, m.products); err != nil {
		return err
	}
	return m.checkConsistency()
}
