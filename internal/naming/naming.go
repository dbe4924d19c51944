// Package naming derives the external image names reported to callers.
// Names are a pure function of corpus index: index i is "image_<i+1>".
package naming

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Prefix is prepended to every external name.
const Prefix = "image_"

// ErrInvalidName is returned by Index for strings that are not external names.
var ErrInvalidName = errors.New("invalid image name")

// Name returns the external name of corpus index i.
func Name(i int) string {
	return Prefix + strconv.Itoa(i+1)
}

// Names returns the names for indices in [start, end).
func Names(start, end int) []string {
	if end <= start {
		return []string{}
	}
	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, Name(i))
	}
	return out
}

// Index is the inverse of Name.
func Index(name string) (int, error) {
	num, ok := strings.CutPrefix(name, Prefix)
	if !ok || num == "" || num[0] == '+' || num[0] == '-' {
		return 0, fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 || strconv.Itoa(n) != num {
		return 0, fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return n - 1, nil
}
