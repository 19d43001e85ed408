package inference

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// Tensor is a named, typed value exchanged with a model.
// The value is carried either as a JSON array in Data, or as
// little-endian bytes in RawData; RawData wins when both are set.
type Tensor struct {
	Name       string          `json:"name"`
	Datatype   Datatype        `json:"datatype"`
	Shape      []int64         `json:"shape"`
	Parameters map[string]any  `json:"parameters,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	RawData    []byte          `json:"raw_data,omitempty"`
}

// Request is the payload of one inference call.
type Request struct {
	ID         string            `json:"id,omitempty"`
	Parameters map[string]any    `json:"parameters,omitempty"`
	Inputs     []*Tensor         `json:"inputs"`
	Outputs    []RequestedOutput `json:"outputs,omitempty"`
}

type RequestedOutput struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Response is the payload returned for exactly one Request.
type Response struct {
	ID           string         `json:"id,omitempty"`
	ModelName    string         `json:"model_name"`
	ModelVersion string         `json:"model_version,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Outputs      []*Tensor      `json:"outputs"`
}

// TensorMetadata declares a tensor a model reads or writes.
// A shape dimension of -1 is variable.
type TensorMetadata struct {
	Name     string   `json:"name"`
	Datatype Datatype `json:"datatype"`
	Shape    []int64  `json:"shape"`
}

type ModelMetadata struct {
	Name     string           `json:"name"`
	Versions []string         `json:"versions,omitempty"`
	Platform string           `json:"platform"`
	Inputs   []TensorMetadata `json:"inputs"`
	Outputs  []TensorMetadata `json:"outputs"`
}

// BoolParameter reads a boolean request parameter such as "binary_data_output".
func (r *Request) BoolParameter(key string) bool {
	v, ok := r.Parameters[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// ElementCount is the number of elements implied by the tensor's shape.
// Dimensions of a concrete tensor must be non-negative; -1 is only meaningful in metadata.
func (t *Tensor) ElementCount() (int64, error) {
	n := int64(1)
	for _, dim := range t.Shape {
		if dim < 0 {
			return 0, fmt.Errorf("shape %v has negative dimension %d", t.Shape, dim)
		}
		if dim != 0 && n > math.MaxInt64/dim {
			return 0, fmt.Errorf("shape %v holds more than %d elements", t.Shape, int64(math.MaxInt64))
		}
		n *= dim
	}
	return n, nil
}

func (t *Tensor) clone() *Tensor {
	out := *t
	out.Shape = slices.Clone(t.Shape)
	out.Data = slices.Clone(t.Data)
	out.RawData = slices.Clone(t.RawData)
	return &out
}
