package vectorstore

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/hupe1980/vecgo/distance"
)

// ErrNonFiniteValue is returned when a vector contains NaN or an infinity.
var ErrNonFiniteValue = errors.New("vector contains non-finite value")

// MemoryStore is an append-only, in-memory Store answering exact k-NN
// queries by brute-force squared L2 distance. Vectors are kept in a single
// row-major slab so that index i occupies data[i*dim : (i+1)*dim].
//
// It is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	dim  int
	n    int
	data []float32
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store for vectors of length dim.
func NewMemoryStore(dim int) (*MemoryStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dim)
	}
	return &MemoryStore{dim: dim}, nil
}

// Dim returns the fixed vector dimension.
func (s *MemoryStore) Dim() int {
	return s.dim
}

// Len returns the number of stored vectors.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.n
}

// Add validates the whole batch before appending anything.
func (s *MemoryStore) Add(vectors [][]float32) (Range, error) {
	for i, v := range vectors {
		if len(v) != s.dim {
			return Range{}, &ErrDimensionMismatch{Expected: s.dim, Actual: len(v), Position: i}
		}
		for _, x := range v {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return Range{}, fmt.Errorf("vector at position %d: %w", i, ErrNonFiniteValue)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.n
	for _, v := range vectors {
		s.data = append(s.data, v...)
	}
	s.n += len(vectors)

	return Range{Start: start, End: s.n}, nil
}

// NearestNeighbors scans every stored vector and keeps the k best in a
// bounded max-heap. Ordering is (distance, index) ascending.
func (s *MemoryStore) NearestNeighbors(query []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(query) != s.dim {
		return nil, &ErrDimensionMismatch{Expected: s.dim, Actual: len(query), Position: -1}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.n == 0 {
		return []Neighbor{}, nil
	}
	if k > s.n {
		k = s.n
	}

	h := make(worstFirstHeap, 0, k)
	for i := 0; i < s.n; i++ {
		d := distance.SquaredL2(query, s.row(i))
		cand := Neighbor{Index: i, Distance: d}
		if len(h) < k {
			heap.Push(&h, cand)
			continue
		}
		if closer(cand, h[0]) {
			h[0] = cand
			heap.Fix(&h, 0)
		}
	}

	out := make([]Neighbor, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Neighbor)
	}
	return out, nil
}

// Vector returns a copy of the vector at index i.
func (s *MemoryStore) Vector(i int) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= s.n {
		return nil, fmt.Errorf("index %d: %w", i, ErrIndexOutOfRange)
	}
	out := make([]float32, s.dim)
	copy(out, s.row(i))
	return out, nil
}

// Vectors returns copies of the vectors in r.
func (s *MemoryStore) Vectors(r Range) ([][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r.Start < 0 || r.Start > r.End || r.End > s.n {
		return nil, fmt.Errorf("range [%d, %d): %w", r.Start, r.End, ErrIndexOutOfRange)
	}
	out := make([][]float32, 0, r.Len())
	for i := r.Start; i < r.End; i++ {
		v := make([]float32, s.dim)
		copy(v, s.row(i))
		out = append(out, v)
	}
	return out, nil
}

// Reset drops every stored vector.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	s.n = 0
}

// row must be called with s.mu held.
func (s *MemoryStore) row(i int) []float32 {
	off := i * s.dim
	return s.data[off : off+s.dim : off+s.dim]
}

// closer reports whether a ranks before b.
func closer(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Index < b.Index
}

// worstFirstHeap keeps the worst retained neighbor at the root.
type worstFirstHeap []Neighbor

func (h worstFirstHeap) Len() int           { return len(h) }
func (h worstFirstHeap) Less(i, j int) bool { return closer(h[j], h[i]) }
func (h worstFirstHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirstHeap) Push(x any)        { *h = append(*h, x.(Neighbor)) }
func (h *worstFirstHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
