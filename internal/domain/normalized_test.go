package domain

import (
	"errors"
	"math"
	"testing"
)

// ─── Constructors ───────────────────────────────────────────────────────────

func TestNewNormalized_Valid(t *testing.T) {
	for _, v := range []float64{0, 0.25, 0.5, 1e-18, 1 - 1e-12, 1} {
		n, err := NewNormalized(v)
		if err != nil {
			t.Fatalf("NewNormalized(%g) returned error: %v", v, err)
		}
		if n.Float64() != v {
			t.Errorf("NewNormalized(%g).Float64() = %g", v, n.Float64())
		}
	}
}

func TestNewNormalized_Rejected(t *testing.T) {
	for _, v := range []float64{
		math.NaN(),
		-0.001,
		1.001,
		math.Inf(1),
		math.Inf(-1),
	} {
		if _, err := NewNormalized(v); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("NewNormalized(%v) error = %v, want ErrOutOfRange", v, err)
		}
	}
}

func TestNewNormalized_NegativeZero(t *testing.T) {
	// -0.0 is not < 0, so it is accepted; it compares equal to zero.
	n, err := NewNormalized(math.Copysign(0, -1))
	if err != nil {
		t.Fatalf("NewNormalized(-0.0) returned error: %v", err)
	}
	if !n.IsZero() {
		t.Error("NewNormalized(-0.0) should be zero")
	}
}

func TestClampNormalized(t *testing.T) {
	tests := []struct {
		value, min, max float64
		want            float64
	}{
		{-5, 0, 1, 0},
		{5, 0, 1, 1},
		{0.5, 0, 1, 0.5},
		{1e-20, 1e-3, 1, 1e-3},
		{0.99, 1e-3, 0.5, 0.5},
	}
	for _, tt := range tests {
		n, err := ClampNormalized(tt.value, tt.min, tt.max)
		if err != nil {
			t.Fatalf("ClampNormalized(%g, %g, %g) returned error: %v", tt.value, tt.min, tt.max, err)
		}
		if n.Float64() != tt.want {
			t.Errorf("ClampNormalized(%g, %g, %g) = %g, want %g", tt.value, tt.min, tt.max, n.Float64(), tt.want)
		}
	}
}

func TestClampNormalized_NaN(t *testing.T) {
	if _, err := ClampNormalized(math.NaN(), 0, 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("ClampNormalized(NaN) error = %v, want ErrOutOfRange", err)
	}
}

func TestMustNormalized_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustNormalized(2) should panic")
		}
	}()
	MustNormalized(2)
}

// ─── Arithmetic ─────────────────────────────────────────────────────────────

func TestMul(t *testing.T) {
	a := MustNormalized(0.5)
	b := MustNormalized(0.25)
	if got := a.Mul(b).Float64(); got != 0.125 {
		t.Errorf("0.5 × 0.25 = %g, want 0.125", got)
	}
	if got := a.Mul(NormalizedZero).Float64(); got != 0 {
		t.Errorf("0.5 × 0 = %g, want 0", got)
	}
	if got := a.Mul(NormalizedOne).Float64(); got != 0.5 {
		t.Errorf("0.5 × 1 = %g, want 0.5", got)
	}
}

func TestProductNormalized(t *testing.T) {
	if got := ProductNormalized().Float64(); got != 1 {
		t.Errorf("empty product = %g, want 1", got)
	}
	got := ProductNormalized(
		MustNormalized(0.5),
		MustNormalized(0.5),
		MustNormalized(0.5),
	).Float64()
	if got != 0.125 {
		t.Errorf("0.5³ = %g, want 0.125", got)
	}
}

func TestLess(t *testing.T) {
	if !NormalizedZero.Less(NormalizedOne) {
		t.Error("0 < 1 should hold")
	}
	if NormalizedOne.Less(NormalizedZero) {
		t.Error("1 < 0 should not hold")
	}
	if NormalizedOne.Less(NormalizedOne) {
		t.Error("1 < 1 should not hold")
	}
}

// ─── Range invariant ────────────────────────────────────────────────────────

func TestRangeClosedUnderOperations(t *testing.T) {
	values := []Normalized{
		NormalizedZero,
		MustNormalized(1e-18),
		MustNormalized(0.3),
		MustNormalized(0.999),
		NormalizedOne,
	}
	check := func(n Normalized) {
		v := n.Float64()
		if math.IsNaN(v) || v < 0 || v > 1 {
			t.Errorf("value %v escaped [0, 1]", v)
		}
	}
	for _, a := range values {
		for _, b := range values {
			check(a.Mul(b))
		}
		check(ProductNormalized(values...))
	}
}
