package memory

import (
	"errors"
	"fmt"
	"sort"

	"multimodal-rag/internal/domain"
)

// Index is an immutable in-memory vector index searched by brute-force squared Euclidean distance.
type Index struct {
	dimension int
	vectors   [][]float32
	meta      []domain.Metadata
}

// New builds an index over vectors, with meta[i] describing vectors[i].
// The slices are copied so later mutation by the caller cannot affect the index.
func New(vectors [][]float32, meta []domain.Metadata) (*Index, error) {
	if len(vectors) != len(meta) {
		return nil, fmt.Errorf("vectors and metadata length mismatch: %d != %d", len(vectors), len(meta))
	}
	if len(vectors) == 0 {
		return nil, errors.New("cannot build an empty index")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.New("invalid dimension")
	}
	stored := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d: %w", i, &domain.DimensionMismatchError{Want: dim, Got: len(v)})
		}
		stored[i] = append([]float32(nil), v...)
	}
	return &Index{
		dimension: dim,
		vectors:   stored,
		meta:      append([]domain.Metadata(nil), meta...),
	}, nil
}

// Build adapts New to the vectorstore.Builder signature.
func Build(vectors [][]float32, meta []domain.Metadata) (domain.Retriever, error) {
	return New(vectors, meta)
}

// Len returns the number of stored vectors.
func (x *Index) Len() int { return len(x.vectors) }

// Dimension returns the dimensionality fixed at construction.
func (x *Index) Dimension() int { return x.dimension }

// Metadata returns the metadata stored for ordinal i.
func (x *Index) Metadata(i int) domain.Metadata { return x.meta[i] }

// Search returns up to topK ordinals ordered nearest first. Equal distances keep insertion order.
func (x *Index) Search(query []float32, topK int) ([]int, error) {
	if len(query) != x.dimension {
		return nil, &domain.DimensionMismatchError{Want: x.dimension, Got: len(query)}
	}
	if topK <= 0 {
		return []int{}, nil
	}
	dists := make([]float64, len(x.vectors))
	for i, v := range x.vectors {
		dists[i] = squaredL2(v, query)
	}
	idxs := argsortAsc(dists)
	if topK > len(idxs) {
		topK = len(idxs)
	}
	return idxs[:topK], nil
}

func squaredL2(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func argsortAsc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(i, j int) bool { return vals[idxs[i]] < vals[idxs[j]] })
	return idxs
}
