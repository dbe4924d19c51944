package vectorstore

// Range is a half-open interval [Start, End) of corpus indices.
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether index i falls inside the range.
func (r Range) Contains(i int) bool {
	return i >= r.Start && i < r.End
}

// Neighbor is a single nearest-neighbor hit.
type Neighbor struct {
	Index    int
	Distance float32 // squared L2
}

// Store defines the interface for the append-only embedding corpus.
// Implementations must be safe for concurrent use.
type Store interface {
	// Add appends vectors in order and returns the indices they were assigned.
	// Either every vector is committed or none is.
	Add(vectors [][]float32) (Range, error)

	// NearestNeighbors returns the k closest vectors to query, ascending by
	// distance with ties broken by ascending index.
	NearestNeighbors(query []float32, k int) ([]Neighbor, error)

	// Vector returns a copy of the vector stored at index i.
	Vector(i int) ([]float32, error)

	// Vectors returns copies of the vectors stored in r.
	Vectors(r Range) ([][]float32, error)

	// Len returns the number of stored vectors.
	Len() int

	// Dim returns the fixed vector dimension.
	Dim() int

	// Reset clears the corpus. Numbering restarts at 0.
	Reset()
}
