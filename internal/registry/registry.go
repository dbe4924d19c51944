// Package registry maps request tokens to the contiguous corpus range each
// ingested batch occupies.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"imagededup/internal/vectorstore"
)

var (
	// ErrDuplicateToken is returned when a token is registered twice.
	ErrDuplicateToken = errors.New("duplicate request token")
	// ErrRequestNotFound is returned when a token has no record.
	ErrRequestNotFound = errors.New("request not found")
	// ErrInvalidToken is returned for an empty token.
	ErrInvalidToken = errors.New("invalid request token")
)

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	records map[string]vectorstore.Range
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		records: make(map[string]vectorstore.Range),
	}
}

// Register records r under token.
func (g *Registry) Register(token string, r vectorstore.Range) error {
	if token == "" {
		return ErrInvalidToken
	}
	if r.Start < 0 || r.End < r.Start {
		return fmt.Errorf("invalid range [%d, %d)", r.Start, r.End)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.records[token]; exists {
		return fmt.Errorf("%s: %w", token, ErrDuplicateToken)
	}
	g.records[token] = r
	return nil
}

// Lookup returns the range registered under token.
func (g *Registry) Lookup(token string) (vectorstore.Range, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.records[token]
	if !ok {
		return vectorstore.Range{}, fmt.Errorf("%s: %w", token, ErrRequestNotFound)
	}
	return r, nil
}

// Has reports whether token is registered.
func (g *Registry) Has(token string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.records[token]
	return ok
}

// Len returns the number of registered tokens.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.records)
}

// Clear drops every record.
func (g *Registry) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = make(map[string]vectorstore.Range)
}
