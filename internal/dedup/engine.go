// Package dedup answers near-duplicate queries over the embedding corpus.
//
// The Engine owns the coordination between the vector store and the request
// registry: ingesting a batch (append + register) and resetting are exclusive,
// duplicate queries run under a shared lock so they always observe a corpus
// and registry that agree with each other.
//
// Per vector, only the k nearest neighbors are examined. With self-exclusion
// this means at most k-1 duplicates of any single vector can be reported; a
// vector with more near-copies in the corpus needs a larger k.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"imagededup/internal/contextutil"
	"imagededup/internal/naming"
	"imagededup/internal/registry"
	"imagededup/internal/vectorstore"
)

// ErrInvalidThreshold is returned for negative or NaN thresholds.
var ErrInvalidThreshold = errors.New("threshold must be a non-negative number")

// Query holds the per-call search parameters.
type Query struct {
	// Threshold is an inclusive bound on squared L2 distance.
	Threshold float64
	// K is the number of neighbors examined per vector, self included.
	K int
}

// Result is the outcome of a duplicate query.
type Result struct {
	// Indices are the offending corpus indices in ascending order.
	Indices []int
	// Names are the external names of Indices, in the same order.
	Names []string
	// NoneFound is set when no duplicate passed the threshold.
	NoneFound bool
}

// Stats summarizes the corpus.
type Stats struct {
	Vectors   int
	Requests  int
	Dimension int
}

// Engine composes a vector store and a request registry.
type Engine struct {
	mu       sync.RWMutex
	store    vectorstore.Store
	registry *registry.Registry
}

// NewEngine creates an Engine over store and reg. Both must be empty or
// consistent with each other.
func NewEngine(store vectorstore.Store, reg *registry.Registry) *Engine {
	return &Engine{
		store:    store,
		registry: reg,
	}
}

// Commit appends vectors and records their range under token as one atomic
// step. A duplicate token is rejected before the store is touched, so a
// failed Commit never leaves vectors behind.
func (e *Engine) Commit(ctx context.Context, token string, vectors [][]float32) (vectorstore.Range, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if token == "" {
		return vectorstore.Range{}, registry.ErrInvalidToken
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.registry.Has(token) {
		return vectorstore.Range{}, fmt.Errorf("%s: %w", token, registry.ErrDuplicateToken)
	}

	r, err := e.store.Add(vectors)
	if err != nil {
		logger.WarnContext(ctx, "rejected batch", "request_id", token, "count", len(vectors), "error", err)
		return vectorstore.Range{}, fmt.Errorf("failed to add vectors: %w", err)
	}

	// Cannot fail: token is non-empty, unregistered, and r came from the store.
	if err := e.registry.Register(token, r); err != nil {
		return vectorstore.Range{}, fmt.Errorf("failed to register request: %w", err)
	}

	logger.InfoContext(ctx, "committed batch",
		"request_id", token,
		"start", r.Start,
		"end", r.End,
		"total_vectors", e.store.Len(),
	)
	return r, nil
}

// Lookup returns the range recorded for token.
func (e *Engine) Lookup(token string) (vectorstore.Range, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.Lookup(token)
}

// FindDuplicates reports which corpus entries lie within q.Threshold of any
// vector ingested under token. A vector never matches its own index, but
// identical vectors at different indices do match each other.
func (e *Engine) FindDuplicates(ctx context.Context, token string, q Query) (Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if q.K <= 0 {
		return Result{}, vectorstore.ErrInvalidK
	}
	if q.Threshold < 0 || math.IsNaN(q.Threshold) {
		return Result{}, ErrInvalidThreshold
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	r, err := e.registry.Lookup(token)
	if err != nil {
		return Result{}, err
	}

	vectors, err := e.store.Vectors(r)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load request vectors: %w", err)
	}

	hits := make(map[int]struct{})
	for offset, vec := range vectors {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		self := r.Start + offset
		neighbors, err := e.store.NearestNeighbors(vec, q.K)
		if err != nil {
			return Result{}, fmt.Errorf("nearest neighbor search for index %d: %w", self, err)
		}
		for _, n := range neighbors {
			if n.Index == self {
				continue
			}
			if float64(n.Distance) <= q.Threshold {
				hits[n.Index] = struct{}{}
			}
		}
	}

	if len(hits) == 0 {
		logger.DebugContext(ctx, "no duplicates found", "request_id", token, "vectors", len(vectors), "k", q.K, "threshold", q.Threshold)
		return Result{Indices: []int{}, Names: []string{}, NoneFound: true}, nil
	}

	indices := make([]int, 0, len(hits))
	for idx := range hits {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	names := make([]string, len(indices))
	for i, idx := range indices {
		names[i] = naming.Name(idx)
	}

	logger.InfoContext(ctx, "duplicates found", "request_id", token, "vectors", len(vectors), "duplicates", len(indices))
	return Result{Indices: indices, Names: names}, nil
}

// Reset clears the store and the registry together.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vectors, requests := e.store.Len(), e.registry.Len()
	e.store.Reset()
	e.registry.Clear()

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "corpus reset", "vectors_dropped", vectors, "requests_dropped", requests)
}

// Stats returns a consistent snapshot of corpus counters.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Vectors:   e.store.Len(),
		Requests:  e.registry.Len(),
		Dimension: e.store.Dim(),
	}
}

// Dim returns the corpus vector dimension.
func (e *Engine) Dim() int {
	return e.store.Dim()
}
