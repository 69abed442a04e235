package memory

import (
	"errors"
	"reflect"
	"testing"

	"multimodal-rag/internal/domain"
)

func textMeta(n int) []domain.Metadata {
	m := make([]domain.Metadata, n)
	for i := range m {
		m[i] = domain.Metadata{Type: domain.ChunkTypeText}
	}
	return m
}

func fiveVectors() [][]float32 {
	return [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{0.5, 0.5, 0},
		{0.2, 0.7, 0.1},
	}
}

func mustIndex(t *testing.T, vectors [][]float32) *Index {
	t.Helper()
	idx, err := New(vectors, textMeta(len(vectors)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return idx
}

func TestSearch_IdenticalVectorRanksFirst(t *testing.T) {
	vectors := fiveVectors()
	idx := mustIndex(t, vectors)

	for want, q := range vectors {
		got, err := idx.Search(q, 3)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if got[0] != want {
			t.Errorf("query equal to vector %d: top result %d", want, got[0])
		}
	}
}

func TestSearch_Ordering(t *testing.T) {
	idx := mustIndex(t, fiveVectors())

	got, err := idx.Search([]float32{0.9, 0.1, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []int{0, 3, 4, 1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Search order = %v, want %v", got, want)
	}
}

func TestSearch_Deterministic(t *testing.T) {
	idx := mustIndex(t, fiveVectors())
	q := []float32{0.3, 0.3, 0.3}

	first, err := idx.Search(q, 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := idx.Search(q, 4)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d: %v != %v", i, again, first)
		}
	}
}

func TestSearch_TopKLargerThanIndex(t *testing.T) {
	idx := mustIndex(t, fiveVectors())

	got, err := idx.Search([]float32{0, 0, 0}, 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected all 5 ordinals, got %d", len(got))
	}
	seen := map[int]bool{}
	for _, o := range got {
		if seen[o] {
			t.Errorf("duplicate ordinal %d", o)
		}
		seen[o] = true
	}
}

func TestSearch_NonPositiveTopK(t *testing.T) {
	idx := mustIndex(t, fiveVectors())
	got, err := idx.Search([]float32{0, 0, 0}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results for topK=0, got %v", got)
	}
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	idx := mustIndex(t, [][]float32{{1, 0}, {0, 1}, {1, 0}, {0, 1}})

	got, err := idx.Search([]float32{0, 0}, 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		t.Errorf("tie order = %v, want [0 1 2 3]", got)
	}

	got, _ = idx.Search([]float32{0, 1}, 2)
	if !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("tie order = %v, want [1 3]", got)
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	idx := mustIndex(t, fiveVectors())

	_, err := idx.Search([]float32{1, 0}, 3)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	var dm *domain.DimensionMismatchError
	if !errors.As(err, &dm) || dm.Want != 3 || dm.Got != 2 {
		t.Errorf("unexpected error detail: %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New([][]float32{{1, 2}}, textMeta(2)); err == nil {
		t.Error("expected error for length mismatch")
	}
	if _, err := New(nil, nil); err == nil {
		t.Error("expected error for empty index")
	}
	if _, err := New([][]float32{{}}, textMeta(1)); err == nil {
		t.Error("expected error for zero dimension")
	}
	_, err := New([][]float32{{1, 2}, {1, 2, 3}}, textMeta(2))
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for ragged vectors, got %v", err)
	}
}

func TestNew_CopiesInput(t *testing.T) {
	vectors := [][]float32{{1, 0}, {0, 1}}
	idx := mustIndex(t, vectors)
	vectors[0][0] = -100

	got, _ := idx.Search([]float32{1, 0}, 1)
	if got[0] != 0 {
		t.Errorf("index was affected by caller mutation: top=%d", got[0])
	}
	if idx.Len() != 2 || idx.Dimension() != 2 {
		t.Errorf("Len/Dimension = %d/%d", idx.Len(), idx.Dimension())
	}
	if idx.Metadata(1).Type != domain.ChunkTypeText {
		t.Errorf("unexpected metadata %+v", idx.Metadata(1))
	}
}
