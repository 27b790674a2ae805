package catalog

import (
	"errors"
	"testing"

	"github.com/hyperjump/mekiki/internal/models"
)

func product(id string) *models.Product {
	return &models.Product{ProductID: id, Title: "t-" + id}
}

func TestStore_PutGet(t *testing.T) {
	s := NewStore()
	if err := s.Put(0, product("a")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(1, product("b")); err != nil {
		t.Fatal(err)
	}
	if s.Count() != 2 {
		t.Errorf("Count = %d, want 2", s.Count())
	}
	got, err := s.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if got.ProductID != "b" {
		t.Errorf("Get(1).ProductID = %s, want b", got.ProductID)
	}
}

func TestStore_PutOutOfOrder(t *testing.T) {
	s := NewStore()
	if err := s.Put(1, product("a")); !errors.Is(err, ErrSlotOutOfOrder) {
		t.Errorf("gap insert: expected ErrSlotOutOfOrder, got %v", err)
	}
	_ = s.Put(0, product("a"))
	if err := s.Put(0, product("b")); !errors.Is(err, ErrSlotOutOfOrder) {
		t.Errorf("overwrite: expected ErrSlotOutOfOrder, got %v", err)
	}
	if s.Count() != 1 {
		t.Errorf("failed puts must not mutate: Count = %d, want 1", s.Count())
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := NewStore()
	if _, err := s.Get(0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	_ = s.Put(0, product("a"))
	if _, err := s.Get(-1); !errors.Is(err, ErrNotFound) {
		t.Errorf("negative slot: expected ErrNotFound, got %v", err)
	}
}

func TestStore_AllAndReplace(t *testing.T) {
	s := NewStore()
	_ = s.Put(0, product("a"))
	_ = s.Put(1, product("b"))
	all := s.All()
	if len(all) != 2 || all[0].ProductID != "a" {
		t.Fatalf("All() = %v", all)
	}

	s.Replace([]*models.Product{product("x")})
	if s.Count() != 1 {
		t.Errorf("Count after Replace = %d, want 1", s.Count())
	}
	got, _ := s.Get(0)
	if got.ProductID != "x" {
		t.Errorf("Get(0).ProductID = %s, want x", got.ProductID)
	}
}
