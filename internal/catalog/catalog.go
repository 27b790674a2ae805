// Package catalog stores product records keyed by slot. Slots are dense and
// append-only: the slot of each inserted record must equal the current count.
package catalog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hyperjump/mekiki/internal/models"
)

// ErrSlotOutOfOrder is returned when a Put would leave a gap or overwrite an
// existing slot. It indicates a coordination bug in the caller, not bad input.
var ErrSlotOutOfOrder = errors.New("slot out of order")

// ErrNotFound is returned when no record exists for a slot.
var ErrNotFound = errors.New("product not found")

// Store is an in-memory append-only slot -> product map with O(1) lookup.
type Store struct {
	products []*models.Product
	mu       sync.RWMutex
}

// NewStore creates an empty product store.
func NewStore() *Store {
	return &Store{products: make([]*models.Product, 0)}
}

// Put inserts record at slot. slot must equal Count(); records are never
// mutated in place.
func (s *Store) Put(slot int, record *models.Product) error {
	if record == nil {
		return fmt.Errorf("nil product record")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot != len(s.products) {
		return fmt.Errorf("%w: got %d, expected %d", ErrSlotOutOfOrder, slot, len(s.products))
	}
	s.products = append(s.products, record)
	return nil
}

// Get returns the record at slot.
func (s *Store) Get(slot int) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if slot < 0 || slot >= len(s.products) {
		return nil, fmt.Errorf("%w: slot %d", ErrNotFound, slot)
	}
	return s.products[slot], nil
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// All returns the records in slot order. The returned slice is a copy; the
// records themselves are shared and must not be mutated.
func (s *Store) All() []*models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Replace swaps the store contents with records in slot order. Used by
// snapshot load; not part of the serving write path.
func (s *Store) Replace(records []*models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = make([]*models.Product, len(records))
	copy(s.products, records)
}
