package vectorstore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
	// ErrIndexOutOfRange is returned when an index or range is outside the corpus.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// ErrDimensionMismatch indicates a vector whose length differs from the
// store dimension. Position is the offending vector's offset within the
// batch passed to Add, or -1 for a query vector.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	Position int
}

func (e *ErrDimensionMismatch) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch at position %d: expected %d, got %d", e.Position, e.Expected, e.Actual)
}
