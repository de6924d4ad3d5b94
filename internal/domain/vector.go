package domain

import "math"

// NormTolerance is the accepted deviation of a unit vector's norm from 1.
const NormTolerance = 1e-6

// Vector is a dense embedding.
type Vector []float32

// Norm returns the Euclidean length, accumulated in float64.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v.
// A zero vector has no direction: its norm is treated as 1 and the copy is returned unchanged.
func (v Vector) Normalize() Vector {
	n := v.Norm()
	if n == 0 {
		n = 1
	}
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// IsUnit reports whether v has unit length within NormTolerance.
func (v Vector) IsUnit() bool {
	return math.Abs(v.Norm()-1) <= NormTolerance
}
