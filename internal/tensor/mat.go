package tensor

import (
	"math/rand"
	"unsafe"
)

// Float is the set of element types a Mat can hold.
type Float interface {
	~float32 | ~float64
}

// Mat represents a dense row‑major matrix.
//
// R and C represent the number of rows and columns respectively.  Stride is the
// number of elements between the starts of two consecutive rows (for row‑major
// matrices this is equal to C).  Data holds the flattened matrix values.
//
// Mat does not perform any memory safety beyond the checks performed by Go's
// slice types; out‑of‑range indices will panic.
type Mat[T Float] struct {
	R, C   int
	Stride int
	Data   []T
}

// NewMat allocates a new matrix with the given number of rows and columns.
// The underlying slice is zero initialised.  The stride is set to the
// number of columns.
func NewMat[T Float](r, c int) Mat[T] {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return Mat[T]{
		R:      r,
		C:      c,
		Stride: c,
		Data:   make([]T, r*c),
	}
}

// NewMatFromData creates a matrix from existing data.
func NewMatFromData[T Float](r, c int, data []T) (Mat[T], error) {
	if r < 0 || c < 0 {
		return Mat[T]{}, errNegativeDim
	}
	want := r * c
	if r != 0 && want/r != c {
		return Mat[T]{}, errMatTooLarge
	}
	if len(data) != want {
		return Mat[T]{}, errDataSizeMismatch
	}
	return Mat[T]{
		R:      r,
		C:      c,
		Stride: c,
		Data:   data,
	}, nil
}

// Identity returns an n×n identity matrix.
func Identity[T Float](n int) Mat[T] {
	m := NewMat[T](n, n)
	for i := 0; i < n; i++ {
		m.Data[i*m.Stride+i] = 1
	}
	return m
}

// Full returns an r×c matrix with every element set to v.
func Full[T Float](r, c int, v T) Mat[T] {
	m := NewMat[T](r, c)
	for i := range m.Data {
		m.Data[i] = v
	}
	return m
}

// Empty reports whether the matrix has no elements.
func (m *Mat[T]) Empty() bool {
	return m.R == 0 || m.C == 0
}

// At returns the element at row i, column j.
func (m *Mat[T]) At(i, j int) T {
	return m.Data[i*m.Stride+j]
}

// Set stores v at row i, column j.
func (m *Mat[T]) Set(i, j int, v T) {
	m.Data[i*m.Stride+j] = v
}

// Row returns a view of the i‑th row of the matrix as a slice.  The slice
// has length equal to the number of columns.  Modifications to the returned
// slice update the underlying matrix values.
func (m *Mat[T]) Row(i int) []T {
	if i < 0 || i >= m.R {
		panic("row index out of range")
	}
	start := i * m.Stride
	return m.Data[start : start+m.C]
}

// Clone returns a deep copy with a packed stride.
func (m *Mat[T]) Clone() Mat[T] {
	out := NewMat[T](m.R, m.C)
	for i := 0; i < m.R; i++ {
		copy(out.Row(i), m.Row(i))
	}
	return out
}

// ElemSize returns the size in bytes of one element of T.
func ElemSize[T Float]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// FillRand fills the matrix with reproducible pseudo‑random values drawn
// uniformly from [0, 1). The seed controls the random sequence; multiple calls
// with the same seed produce identical matrices.
func FillRand[T Float](m *Mat[T], seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < m.R; i++ {
		row := m.Row(i)
		for j := range row {
			row[j] = T(rng.Float64())
		}
	}
}

var (
	errNegativeDim      = fmtError("negative dimension for matrix")
	errMatTooLarge      = fmtError("matrix too large")
	errDataSizeMismatch = fmtError("data length mismatch")
)

type fmtError string

func (e fmtError) Error() string { return string(e) }
