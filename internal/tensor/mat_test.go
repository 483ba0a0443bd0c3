package tensor

import (
	"errors"
	"testing"
)

func TestNewMatFromData(t *testing.T) {
	t.Parallel()

	m, err := NewMatFromData(2, 3, []float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.At(1, 2); got != 6 {
		t.Fatalf("At(1,2): got %v want 6", got)
	}
	if _, err := NewMatFromData(2, 3, []float64{1}); err == nil {
		t.Fatal("expected size mismatch error")
	}
	if _, err := NewMatFromData(-1, 3, []float64{}); err == nil {
		t.Fatal("expected negative dimension error")
	}
}

func TestIdentityAndFull(t *testing.T) {
	t.Parallel()

	id := Identity[float64](3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if id.At(i, j) != want {
				t.Fatalf("identity(%d,%d) = %v", i, j, id.At(i, j))
			}
		}
	}

	f := Full[float32](2, 2, 1.5)
	for _, v := range f.Data {
		if v != 1.5 {
			t.Fatalf("full: got %v", v)
		}
	}
}

func TestFillRandReproducible(t *testing.T) {
	t.Parallel()

	a := NewMat[float64](8, 8)
	b := NewMat[float64](8, 8)
	FillRand(&a, 7)
	FillRand(&b, 7)
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("element %d differs: %v vs %v", i, a.Data[i], b.Data[i])
		}
		if a.Data[i] < 0 || a.Data[i] >= 1 {
			t.Fatalf("element %d out of [0,1): %v", i, a.Data[i])
		}
	}
}

func TestMulNaiveSmall(t *testing.T) {
	t.Parallel()

	A, _ := NewMatFromData(2, 2, []float64{1, 2, 3, 4})
	B, _ := NewMatFromData(2, 2, []float64{5, 6, 7, 8})
	C := Reference(&A, &B)

	want := []float64{19, 22, 43, 50}
	for i, w := range want {
		if C.Data[i] != w {
			t.Fatalf("C[%d]: got %v want %v", i, C.Data[i], w)
		}
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	want, _ := NewMatFromData(1, 3, []float64{1, 0, 100})

	tests := []struct {
		name string
		got  []float64
		ok   bool
	}{
		{"exact", []float64{1, 0, 100}, true},
		{"relative within", []float64{1 + 1e-14, 0, 100}, true},
		{"relative outside", []float64{1 + 1e-9, 0, 100}, false},
		{"zero reference absolute", []float64{1, 1e-13, 100}, true},
		{"zero reference outside", []float64{1, 1e-6, 100}, false},
	}

	for _, tc := range tests {
		got, _ := NewMatFromData(1, 3, tc.got)
		err := Verify(&got, &want, DefaultTolerance)
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok {
			if !errors.Is(err, ErrNumericMismatch) {
				t.Errorf("%s: expected ErrNumericMismatch, got %v", tc.name, err)
			}
			var mm *MismatchError
			if !errors.As(err, &mm) {
				t.Errorf("%s: expected *MismatchError, got %T", tc.name, err)
			}
		}
	}
}

func TestVerifyShape(t *testing.T) {
	t.Parallel()

	a := NewMat[float64](2, 2)
	b := NewMat[float64](2, 3)
	if err := Verify(&a, &b, DefaultTolerance); !errors.Is(err, ErrNumericMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}
