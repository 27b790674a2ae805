package vector

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestFlatIndex_AddSearch(t *testing.T) {
	idx, err := NewFlatIndex(0)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	for i, v := range vecs {
		slot, err := idx.Add(ctx, v)
		if err != nil {
			t.Fatal(err)
		}
		if slot != i {
			t.Errorf("slot = %d, want %d", slot, i)
		}
	}
	if idx.Size() != 3 {
		t.Errorf("Size = %d, want 3", idx.Size())
	}
	if idx.Dimensions() != 3 {
		t.Errorf("Dimensions = %d, want 3", idx.Dimensions())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Slot != 0 {
		t.Errorf("top result slot = %d, want 0", results[0].Slot)
	}
	if math.Abs(results[0].Score-1.0) > 1e-6 {
		t.Errorf("top result score = %f, want 1.0", results[0].Score)
	}
}

func TestFlatIndex_DimensionFixedAtFirstAdd(t *testing.T) {
	idx, _ := NewFlatIndex(0)
	ctx := context.Background()
	if _, err := idx.Add(ctx, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	_, err := idx.Add(ctx, []float32{1, 0, 0})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("failed add must not mutate: size = %d, want 1", idx.Size())
	}
}

func TestFlatIndex_EmptySearch(t *testing.T) {
	idx, _ := NewFlatIndex(4)
	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("empty index should return empty results, got %d", len(results))
	}
}

func TestFlatIndex_TieBreakBySlot(t *testing.T) {
	idx, _ := NewFlatIndex(0)
	ctx := context.Background()
	// Slots 0 and 1 score identically against the query.
	_, _ = idx.Add(ctx, []float32{1, 0})
	_, _ = idx.Add(ctx, []float32{1, 0})
	_, _ = idx.Add(ctx, []float32{0, 1})

	results, err := idx.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Slot != 0 || results[1].Slot != 1 {
		t.Errorf("tied scores must order by ascending slot, got %d then %d", results[0].Slot, results[1].Slot)
	}
	if results[2].Slot != 2 {
		t.Errorf("lowest score last, got slot %d", results[2].Slot)
	}
}

func TestFlatIndex_KLargerThanSize(t *testing.T) {
	idx, _ := NewFlatIndex(0)
	ctx := context.Background()
	_, _ = idx.Add(ctx, []float32{1, 0})
	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestFlatIndex_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.vec")
	ctx := context.Background()

	idx, _ := NewFlatIndex(0)
	_, _ = idx.Add(ctx, []float32{0.6, 0.8})
	_, _ = idx.Add(ctx, []float32{0, 1})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewFlatIndex(0)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 || loaded.Dimensions() != 2 {
		t.Fatalf("loaded size=%d dims=%d, want 2/2", loaded.Size(), loaded.Dimensions())
	}

	want, _ := idx.Search(ctx, []float32{0.6, 0.8}, 2)
	got, err := loaded.Search(ctx, []float32{0.6, 0.8}, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("result %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFlatIndex_LoadMissingFile(t *testing.T) {
	idx, _ := NewFlatIndex(0)
	if err := idx.Load(filepath.Join(t.TempDir(), "absent.vec")); err != nil {
		t.Errorf("missing file should not be an error, got %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("index should stay empty, size = %d", idx.Size())
	}
}

func TestFlatIndex_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.vec")
	if err := os.WriteFile(path, []byte("not a snapshot"), 0644); err != nil {
		t.Fatal(err)
	}
	idx, _ := NewFlatIndex(0)
	if err := idx.Load(path); err == nil {
		t.Error("expected error for corrupt snapshot")
	}
}

func TestFlatIndex_LoadRejectsLyingHeader(t *testing.T) {
	writeHeader := func(t *testing.T, dim, n uint32) string {
		t.Helper()
		buf := make([]byte, 12)
		binary.LittleEndian.PutUint32(buf[0:], snapshotMagic)
		binary.LittleEndian.PutUint32(buf[4:], dim)
		binary.LittleEndian.PutUint32(buf[8:], n)
		path := filepath.Join(t.TempDir(), "lying.vec")
		if err := os.WriteFile(path, buf, 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	t.Run("absurd dimension", func(t *testing.T) {
		path := writeHeader(t, 0xFFFFFFFF, 1)
		idx, _ := NewFlatIndex(0)
		if err := idx.Load(path); err == nil {
			t.Error("expected error for absurd dimension")
		}
		if idx.Size() != 0 {
			t.Errorf("index should stay empty, size = %d", idx.Size())
		}
	})

	t.Run("count exceeds payload", func(t *testing.T) {
		path := writeHeader(t, 4, 1000)
		idx, _ := NewFlatIndex(0)
		if err := idx.Load(path); err == nil {
			t.Error("expected error for truncated payload")
		}
		if idx.Size() != 0 {
			t.Errorf("index should stay empty, size = %d", idx.Size())
		}
	})
}

func TestCosineSimilarity(t *testing.T) {
	if s := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(s-1) > 1e-9 {
		t.Errorf("identical unit vectors: %f, want 1", s)
	}
	if s := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); s != 0 {
		t.Errorf("orthogonal vectors: %f, want 0", s)
	}
	if s := CosineSimilarity([]float32{1, 0}, []float32{0, 1, 0}); s != 0 {
		t.Errorf("length mismatch: %f, want 0", s)
	}
}
