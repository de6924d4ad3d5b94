package domain

import (
	"errors"
	"math"
	"testing"
)

func TestVector_Normalize_UnitLength(t *testing.T) {
	vectors := []Vector{
		{3, 4},
		{1, 1, 1, 1},
		{-0.5, 0.25, 1e-3, 7},
		{1e-20, 0, 0},
		{1e6, -1e6, 3},
	}
	for _, v := range vectors {
		n := v.Normalize()
		if math.Abs(n.Norm()-1) > NormTolerance {
			t.Errorf("Normalize(%v) norm = %v, want 1", v, n.Norm())
		}
		if !n.IsUnit() {
			t.Errorf("IsUnit(%v) = false", n)
		}
	}
}

func TestVector_Normalize_ZeroVector(t *testing.T) {
	v := Vector{0, 0, 0}
	n := v.Normalize()
	if len(n) != 3 {
		t.Fatalf("len = %d, want 3", len(n))
	}
	for i, x := range n {
		if x != 0 {
			t.Errorf("n[%d] = %v, want 0", i, x)
		}
	}
	if n.IsUnit() {
		t.Error("zero vector must not report unit length")
	}
}

func TestVector_Normalize_DoesNotMutate(t *testing.T) {
	v := Vector{3, 4}
	_ = v.Normalize()
	if v[0] != 3 || v[1] != 4 {
		t.Errorf("input mutated: %v", v)
	}
}

func TestDimensionMismatchError(t *testing.T) {
	err := NewDimensionMismatch(384, 3)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Error("expected errors.Is ErrDimensionMismatch")
	}
	var dm *DimensionMismatchError
	if !errors.As(err, &dm) {
		t.Fatal("expected *DimensionMismatchError")
	}
	if dm.Expected != 384 || dm.Actual != 3 {
		t.Errorf("got expected=%d actual=%d", dm.Expected, dm.Actual)
	}
	if err.Error() != "vector dimension mismatch: expected 384, got 3" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestIndexError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		op       string
		sentinel error
	}{
		{"upsert", ErrUpsertFailed},
		{"search", ErrSearchFailed},
		{"delete", ErrDeleteFailed},
	}
	for _, tc := range tests {
		t.Run(tc.op, func(t *testing.T) {
			err := error(&IndexError{Op: tc.op, Err: cause})
			if !errors.Is(err, tc.sentinel) {
				t.Errorf("expected %v", tc.sentinel)
			}
			if !errors.Is(err, cause) {
				t.Error("expected transport cause in chain")
			}
		})
	}
}

func TestIndexError_Message(t *testing.T) {
	err := &IndexError{Op: "search", Status: 500, Body: "index exploded"}
	if got := err.Error(); got != "index search failed (500) index exploded" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestStoredImage_DataURL(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	img := StoredImage{ID: "a", Data: png}
	want := "data:image/png;base64,iVBORw0KGgowMDAw"
	if got := img.DataURL(); got != want {
		t.Errorf("DataURL = %q, want %q", got, want)
	}
}
