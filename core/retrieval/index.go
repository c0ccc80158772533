package retrieval

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/siherrmann/vidrag/helper"
)

const (
	indexMagic   uint32 = 0x56494458 // "VIDX"
	indexVersion uint32 = 1
)

// Hit is one scored position in the index.
type Hit struct {
	Offset int
	Score  float64
}

// FlatIndex is an append-only, offset-addressed vector store held fully in
// memory. Vectors are L2-normalized on append, so inner product equals
// cosine similarity. Offsets are stable for the lifetime of the index;
// deletion happens outside the index by dropping the metadata row that
// owns an offset.
type FlatIndex struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dim int) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, helper.NewError("index dimension validation", fmt.Errorf("dimension must be positive, got %v", dim))
	}
	return &FlatIndex{dim: dim}, nil
}

// Dim returns the vector dimension of the index.
func (x *FlatIndex) Dim() int {
	return x.dim
}

// Len returns the number of vectors in the index, including tombstoned ones.
func (x *FlatIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Append normalizes the vector and adds it to the index, returning its
// offset. Zero vectors are rejected because they cannot be normalized.
func (x *FlatIndex) Append(vector []float32) (int, error) {
	if len(vector) != x.dim {
		return 0, helper.NewError("vector validation", fmt.Errorf("expected dimension %v, got %v", x.dim, len(vector)))
	}

	normalized, err := normalize(vector)
	if err != nil {
		return 0, helper.NewError("vector normalization", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.vectors = append(x.vectors, normalized)
	return len(x.vectors) - 1, nil
}

// Search returns the k most similar offsets for the query vector, best
// first. The query is normalized, so scores are cosine similarities in
// [-1, 1]. Fewer than k hits are returned when the index is smaller.
func (x *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != x.dim {
		return nil, helper.NewError("query validation", fmt.Errorf("expected dimension %v, got %v", x.dim, len(query)))
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	normalized, err := normalize(query)
	if err != nil {
		return nil, helper.NewError("query normalization", err)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	hits := make([]Hit, 0, len(x.vectors))
	for offset, vector := range x.vectors {
		var dot float64
		for i, v := range vector {
			dot += float64(v) * float64(normalized[i])
		}
		hits = append(hits, Hit{Offset: offset, Score: dot})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Replace atomically swaps the index contents with the given vectors.
// Used by compaction after rebuilding from live metadata rows. The vectors
// must already be normalized.
func (x *FlatIndex) Replace(vectors [][]float32) error {
	for i, vector := range vectors {
		if len(vector) != x.dim {
			return helper.NewError("vector validation", fmt.Errorf("vector %v has dimension %v, expected %v", i, len(vector), x.dim))
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.vectors = vectors
	return nil
}

// Vector returns a copy of the vector at the given offset.
func (x *FlatIndex) Vector(offset int) ([]float32, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if offset < 0 || offset >= len(x.vectors) {
		return nil, helper.NewError("offset validation", fmt.Errorf("offset %v out of range [0, %v)", offset, len(x.vectors)))
	}

	vector := make([]float32, x.dim)
	copy(vector, x.vectors[offset])
	return vector, nil
}

// Save writes the index to path atomically (write to temp file, rename).
func (x *FlatIndex) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), "index-*.tmp")
	if err != nil {
		return helper.NewError("create temp index file", err)
	}
	defer os.Remove(tmp.Name())

	if err := x.write(tmp); err != nil {
		tmp.Close()
		return helper.NewError("write index", err)
	}
	if err := tmp.Close(); err != nil {
		return helper.NewError("close index file", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return helper.NewError("rename index file", err)
	}
	return nil
}

// LoadFlatIndex reads an index file written by Save. A missing file yields
// an empty index of the given dimension.
func LoadFlatIndex(path string, dim int) (*FlatIndex, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return NewFlatIndex(dim)
	} else if err != nil {
		return nil, helper.NewError("open index file", err)
	}
	defer file.Close()

	index, err := read(file, dim)
	if err != nil {
		return nil, helper.NewError("read index", err)
	}
	return index, nil
}

func (x *FlatIndex) write(w io.Writer) error {
	header := []uint32{indexMagic, indexVersion, uint32(x.dim), uint32(len(x.vectors))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	for _, vector := range x.vectors {
		if err := binary.Write(w, binary.LittleEndian, vector); err != nil {
			return err
		}
	}
	return nil
}

func read(r io.Reader, dim int) (*FlatIndex, error) {
	var magic, version, fileDim, count uint32
	for _, v := range []*uint32{&magic, &version, &fileDim, &count} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
	}

	if magic != indexMagic {
		return nil, fmt.Errorf("not an index file (magic %#x)", magic)
	}
	if version != indexVersion {
		return nil, fmt.Errorf("unsupported index version %v", version)
	}
	if int(fileDim) != dim {
		return nil, fmt.Errorf("index dimension %v does not match configured dimension %v", fileDim, dim)
	}

	index, err := NewFlatIndex(dim)
	if err != nil {
		return nil, err
	}

	index.vectors = make([][]float32, count)
	for i := range index.vectors {
		vector := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vector); err != nil {
			return nil, fmt.Errorf("reading vector %v: %w", i, err)
		}
		index.vectors[i] = vector
	}

	return index, nil
}

func normalize(vector []float32) ([]float32, error) {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return nil, fmt.Errorf("cannot normalize zero vector")
	}

	norm := math.Sqrt(sum)
	normalized := make([]float32, len(vector))
	for i, v := range vector {
		normalized[i] = float32(float64(v) / norm)
	}
	return normalized, nil
}
