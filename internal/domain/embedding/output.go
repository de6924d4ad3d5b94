// Package embedding models the raw outputs an embedding backend may produce.
//
// Backends answer in one of three shapes: a flat array of numbers, an
// arbitrarily nested array of numbers, or a tensor-like object carrying a
// flat data field and its dimensions. The set is closed: Output is sealed and
// every variant has its own conversion to a flat vector.
package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

// Output is a raw backend embedding. Implemented only by FlatVector, NestedVector and TensorLike.
type Output interface {
	flatten() ([]float32, error)
}

// FlatVector is a one-dimensional array of numbers.
type FlatVector []float32

// NestedVector is an array whose elements are FlatVector or NestedVector.
type NestedVector []Output

// TensorLike is an object with a row-major data field, e.g. {"data": [...], "dims": [1, 512]}.
type TensorLike struct {
	Data []float32 `json:"data"`
	Dims []int     `json:"dims,omitempty"`
}

func (f FlatVector) flatten() ([]float32, error) {
	out := make([]float32, len(f))
	copy(out, f)
	return out, nil
}

func (n NestedVector) flatten() ([]float32, error) {
	var out []float32
	for i, child := range n {
		switch child.(type) {
		case FlatVector, NestedVector:
		default:
			return nil, fmt.Errorf("nested element %d is %T: %w", i, child, domain.ErrUnrecognizedEmbeddingShape)
		}
		v, err := child.flatten()
		if err != nil {
			return nil, err
		}
		out = append(out, v...)
	}
	return out, nil
}

func (t TensorLike) flatten() ([]float32, error) {
	if len(t.Dims) > 0 {
		size := 1
		for _, d := range t.Dims {
			size *= d
		}
		if size != len(t.Data) {
			return nil, fmt.Errorf("tensor dims %v do not match %d values: %w",
				t.Dims, len(t.Data), domain.ErrUnrecognizedEmbeddingShape)
		}
	}
	out := make([]float32, len(t.Data))
	copy(out, t.Data)
	return out, nil
}

// Flatten converts any Output into one flat vector.
func Flatten(o Output) ([]float32, error) {
	if o == nil {
		return nil, fmt.Errorf("nil output: %w", domain.ErrUnrecognizedEmbeddingShape)
	}
	return o.flatten()
}

// Parse classifies a JSON payload into one of the Output variants.
//
// Arrays whose first element is an array become NestedVector, other arrays
// FlatVector, objects with a "data" array TensorLike. Anything else is
// ErrUnrecognizedEmbeddingShape.
func Parse(raw []byte) (Output, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty payload: %w", domain.ErrUnrecognizedEmbeddingShape)
	}

	switch raw[0] {
	case '[':
		return parseArray(raw)
	case '{':
		return parseTensor(raw)
	default:
		return nil, fmt.Errorf("payload starts with %q: %w", raw[0], domain.ErrUnrecognizedEmbeddingShape)
	}
}

func parseArray(raw []byte) (Output, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("decode array: %v: %w", err, domain.ErrUnrecognizedEmbeddingShape)
	}
	if len(elems) == 0 {
		return FlatVector{}, nil
	}

	first := bytes.TrimSpace(elems[0])
	if len(first) == 0 || first[0] != '[' {
		var flat FlatVector
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, fmt.Errorf("decode flat vector: %v: %w", err, domain.ErrUnrecognizedEmbeddingShape)
		}
		return flat, nil
	}

	nested := make(NestedVector, 0, len(elems))
	for i, e := range elems {
		e = bytes.TrimSpace(e)
		if len(e) == 0 || e[0] != '[' {
			return nil, fmt.Errorf("nested element %d is not an array: %w", i, domain.ErrUnrecognizedEmbeddingShape)
		}
		child, err := parseArray(e)
		if err != nil {
			return nil, err
		}
		nested = append(nested, child)
	}
	return nested, nil
}

func parseTensor(raw []byte) (Output, error) {
	var obj struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode object: %v: %w", err, domain.ErrUnrecognizedEmbeddingShape)
	}
	data := bytes.TrimSpace(obj.Data)
	if len(data) == 0 || data[0] != '[' {
		return nil, fmt.Errorf("object without data array: %w", domain.ErrUnrecognizedEmbeddingShape)
	}

	var t TensorLike
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode tensor: %v: %w", err, domain.ErrUnrecognizedEmbeddingShape)
	}
	return t, nil
}
