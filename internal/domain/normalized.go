// Package domain holds the pure value types and sentinel errors shared by the
// selection core. Nothing here does I/O or imports infrastructure.
package domain

import (
	"fmt"
	"math"
)

// ─── Normalized ─────────────────────────────────────────────────────────────

// Normalized is a finite, non-NaN float64 confined to [0, 1].
//
// The field is unexported so every value in circulation went through a checked
// constructor: once built, a Normalized can be multiplied, compared, and
// aggregated without re-validating. The zero value is the valid score 0.
type Normalized struct {
	v float64
}

// NormalizedZero and NormalizedOne are the range endpoints.
var (
	NormalizedZero = Normalized{v: 0}
	NormalizedOne  = Normalized{v: 1}
)

// NewNormalized validates value and wraps it. NaN, negative, and >1 inputs
// return ErrOutOfRange.
func NewNormalized(value float64) (Normalized, error) {
	if math.IsNaN(value) || value < 0 || value > 1 {
		return Normalized{}, fmt.Errorf("%w: %v", ErrOutOfRange, value)
	}
	return Normalized{v: value}, nil
}

// MustNormalized wraps value or panics. For constants and tests where the
// input is known valid.
func MustNormalized(value float64) Normalized {
	n, err := NewNormalized(value)
	if err != nil {
		panic(err)
	}
	return n
}

// ClampNormalized clamps value into [min, max] before validating. min and max
// must themselves lie in [0, 1]. NaN still fails: clamping cannot repair it.
func ClampNormalized(value, min, max float64) (Normalized, error) {
	if value < min {
		value = min
	}
	if value > max {
		value = max
	}
	return NewNormalized(value)
}

// Float64 returns the inner value.
func (n Normalized) Float64() float64 { return n.v }

// IsZero reports whether n is exactly 0.
func (n Normalized) IsZero() bool { return n.v == 0 }

// Mul returns n × m. [0,1] is closed under multiplication, so no check is
// needed on the way out.
func (n Normalized) Mul(m Normalized) Normalized {
	return Normalized{v: n.v * m.v}
}

// Less reports whether n < m. Normalized values are totally ordered (no NaN).
func (n Normalized) Less(m Normalized) bool { return n.v < m.v }

// String formats the inner value.
func (n Normalized) String() string { return fmt.Sprintf("%g", n.v) }

// ProductNormalized multiplies a sequence. The empty product is 1.
func ProductNormalized(ns ...Normalized) Normalized {
	p := 1.0
	for _, n := range ns {
		p *= n.v
	}
	return Normalized{v: p}
}
