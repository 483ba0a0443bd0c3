package tensor

import (
	"errors"
	"fmt"
	"math"
)

// ErrNumericMismatch is returned by Verify when a result element falls
// outside tolerance.
var ErrNumericMismatch = errors.New("numeric mismatch")

// Tolerance bounds the accepted difference between a result and the
// reference. Rel applies when the reference is non-zero, Abs otherwise.
type Tolerance struct {
	Rel float64
	Abs float64
}

// DefaultTolerance matches the serial check of the host harness.
var DefaultTolerance = Tolerance{Rel: 1e-12, Abs: 1e-12}

// MismatchError identifies the first element outside tolerance.
type MismatchError struct {
	Row, Col  int
	Got, Want float64
	Err       float64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("numeric mismatch at (%d,%d): got %g want %g (err %g)", e.Row, e.Col, e.Got, e.Want, e.Err)
}

func (e *MismatchError) Unwrap() error {
	return ErrNumericMismatch
}

// MulNaive computes C = A·B with the serial triple loop. The sum for each
// element starts at zero and accumulates in increasing k, in T. Each product
// is rounded to T before the add so the result does not depend on FMA fusion.
func MulNaive[T Float](C, A, B *Mat[T]) {
	if A.C != B.R || C.R != A.R || C.C != B.C {
		panic("mul: dimension mismatch")
	}
	for i := 0; i < A.R; i++ {
		aRow := A.Row(i)
		cRow := C.Row(i)
		for j := 0; j < B.C; j++ {
			var sum T
			for kk := 0; kk < A.C; kk++ {
				sum += T(aRow[kk] * B.Data[kk*B.Stride+j])
			}
			cRow[j] = sum
		}
	}
}

// Reference returns a freshly allocated A·B computed by MulNaive.
func Reference[T Float](A, B *Mat[T]) Mat[T] {
	C := NewMat[T](A.R, B.C)
	MulNaive(&C, A, B)
	return C
}

// Verify compares got against want element by element and returns a
// *MismatchError for the first element outside tol.
func Verify[T Float](got, want *Mat[T], tol Tolerance) error {
	if got.R != want.R || got.C != want.C {
		return fmt.Errorf("%w: shape %dx%d, want %dx%d", ErrNumericMismatch, got.R, got.C, want.R, want.C)
	}
	for i := 0; i < want.R; i++ {
		gRow := got.Row(i)
		wRow := want.Row(i)
		for j := range wRow {
			g := float64(gRow[j])
			w := float64(wRow[j])
			diff := math.Abs(w - g)
			if math.IsNaN(diff) {
				return &MismatchError{Row: i, Col: j, Got: g, Want: w, Err: diff}
			}
			if w == 0 {
				if diff > tol.Abs {
					return &MismatchError{Row: i, Col: j, Got: g, Want: w, Err: diff}
				}
				continue
			}
			if rel := diff / math.Abs(w); rel > tol.Rel {
				return &MismatchError{Row: i, Col: j, Got: g, Want: w, Err: rel}
			}
		}
	}
	return nil
}

// MaxAbsDiff returns the largest absolute element difference.
func MaxAbsDiff[T Float](a, b []T) float64 {
	var maxAbs float64
	for i := range a {
		d := math.Abs(float64(a[i] - b[i]))
		if d > maxAbs {
			maxAbs = d
		}
	}
	return maxAbs
}
