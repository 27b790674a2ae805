// Package vector provides an exact brute-force index suitable for catalogs up
// to the low millions of vectors.
package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// snapshotMagic identifies a flat index snapshot file.
const snapshotMagic uint32 = 0x4d454b49

// maxSnapshotDimensions bounds the dimension field of a snapshot header so a
// corrupt file cannot demand an absurd allocation before the first read fails.
const maxSnapshotDimensions = 1 << 16

// FlatIndex is an append-only in-memory vector index using brute-force inner
// product search. The dimension is fixed by the first inserted vector (or at
// construction when a positive dimension is given); later vectors must match.
type FlatIndex struct {
	dimensions int // 0 until the first vector fixes it
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewFlatIndex creates a flat index. dimensions may be 0, in which case the
// first Add fixes the dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions < 0 {
		return nil, fmt.Errorf("dimensions must be non-negative, got %d", dimensions)
	}
	return &FlatIndex{
		dimensions: dimensions,
		vectors:    make([][]float32, 0),
	}, nil
}

// Add appends a vector and returns its slot.
func (f *FlatIndex) Add(ctx context.Context, vec []float32) (int, error) {
	if len(vec) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dimensions == 0 {
		f.dimensions = len(vec)
	} else if len(vec) != f.dimensions {
		return 0, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), f.dimensions)
	}
	stored := make([]float32, f.dimensions)
	copy(stored, vec)
	slot := len(f.vectors)
	f.vectors = append(f.vectors, stored)
	return slot, nil
}

// Search returns the top-k slots by inner product. Results are sorted
// descending by score with ties broken by ascending slot so that identical
// queries against identical data always produce identical output.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || len(f.vectors) == 0 {
		return []Result{}, nil
	}
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d, index expects %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	results := make([]Result, len(f.vectors))
	for slot, vec := range f.vectors {
		var dot float64
		for j := 0; j < f.dimensions; j++ {
			dot += float64(query[j] * vec[j])
		}
		results[slot] = Result{Slot: slot, Score: dot}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Slot < results[j].Slot
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Size returns the number of stored vectors.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dimensions returns the fixed dimension, or 0 if no vector has been added yet.
func (f *FlatIndex) Dimensions() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dimensions
}

// Save writes the index to path atomically: the file is written to a temporary
// name in the same directory and renamed into place, so a crash mid-write never
// leaves a half-written snapshot under path. Format (little-endian): magic (4),
// dimension (4), count (4), then count * dimension float32.
func (f *FlatIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := f.writeTo(out); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit index file: %w", err)
	}
	return nil
}

func (f *FlatIndex) writeTo(w io.Writer) error {
	for _, v := range []uint32{snapshotMagic, uint32(f.dimensions), uint32(len(f.vectors))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write index header: %w", err)
		}
	}
	for _, vec := range f.vectors {
		if _, err := w.Write(float32SliceToBytes(vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path, replacing the in-memory contents. A missing
// file leaves the index unchanged and returns nil (fresh start). A present but
// unreadable or truncated file is an error. If the index already has a fixed
// dimension the file's dimension must match.
func (f *FlatIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	in, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer in.Close()

	var magic, dim, n uint32
	for _, p := range []*uint32{&magic, &dim, &n} {
		if err := binary.Read(in, binary.LittleEndian, p); err != nil {
			return fmt.Errorf("read index header: %w", err)
		}
	}
	if magic != snapshotMagic {
		return fmt.Errorf("not an index snapshot: bad magic %#x", magic)
	}
	if n > 0 && dim == 0 {
		return fmt.Errorf("index snapshot has %d vectors but zero dimension", n)
	}
	if dim > maxSnapshotDimensions {
		return fmt.Errorf("index snapshot dimension %d exceeds limit %d", dim, maxSnapshotDimensions)
	}
	// The header is untrusted until the payload backs it up; check the file is
	// big enough before allocating for n vectors.
	fi, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat index file: %w", err)
	}
	need := int64(12) + int64(n)*int64(dim)*4
	if fi.Size() < need {
		return fmt.Errorf("index snapshot truncated: %d vectors of dimension %d need %d bytes, file has %d", n, dim, need, fi.Size())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dimensions != 0 && dim != 0 && int(dim) != f.dimensions {
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, dim, f.dimensions)
	}
	vectors := make([][]float32, 0, n)
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(in, buf); err != nil {
			return fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	if dim != 0 {
		f.dimensions = int(dim)
	}
	f.vectors = vectors
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
