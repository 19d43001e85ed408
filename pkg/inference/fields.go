package inference

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Value is the set of Go element types a tensor can be decoded into or built from.
type Value interface {
	bool | string | float32 | float64 | int32 | int64
}

// Fields addresses the inputs of one request by name.
type Fields struct {
	requestID string
	byName    map[string]*Tensor
}

// NewFields indexes the request's inputs. Input names must be unique.
func NewFields(req *Request) (*Fields, error) {
	f := &Fields{
		requestID: req.ID,
		byName:    make(map[string]*Tensor, len(req.Inputs)),
	}
	for i, input := range req.Inputs {
		if input == nil {
			return nil, status.Errorf(codes.InvalidArgument, "input %d is null", i)
		}
		if _, found := f.byName[input.Name]; found {
			return nil, status.Errorf(codes.InvalidArgument, "input %q appears more than once", input.Name)
		}
		f.byName[input.Name] = input
	}
	return f, nil
}

func (f *Fields) RequestID() string {
	return f.requestID
}

// Get returns a copy of the named tensor.
func (f *Fields) Get(name string) (*Tensor, error) {
	t, found := f.byName[name]
	if !found {
		return nil, notFound(name)
	}
	return t.clone(), nil
}

// Field decodes every element of the named input as T.
func Field[T Value](f *Fields, name string) ([]T, error) {
	t, found := f.byName[name]
	if !found {
		return nil, notFound(name)
	}
	return Decode[T](t)
}

// Scalar decodes the first element of the named input as T.
func Scalar[T Value](f *Fields, name string) (T, error) {
	var zero T
	values, err := Field[T](f, name)
	if err != nil {
		return zero, err
	}
	if len(values) == 0 {
		return zero, typeMismatch(name, "tensor has no elements")
	}
	return values[0], nil
}

// Decode converts the tensor's value into a freshly allocated []T.
func Decode[T Value](t *Tensor) ([]T, error) {
	var zero T
	switch any(zero).(type) {
	case string:
		values, err := decodeStrings(t)
		if err != nil {
			return nil, err
		}
		return any(values).([]T), nil
	case bool:
		values, err := decodeBools(t)
		if err != nil {
			return nil, err
		}
		return any(values).([]T), nil
	}

	numbers, err := decodeNumbers(t)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(numbers))
	for i, n := range numbers {
		v, err := fromNumber[T](n)
		if err != nil {
			return nil, typeMismatch(t.Name, "element %d: %v", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func fromNumber[T Value](n number) (T, error) {
	var out T
	switch p := any(&out).(type) {
	case *float64:
		*p = n.float()
	case *float32:
		*p = float32(n.float())
	case *int64:
		if n.isUint {
			return out, fmt.Errorf("%s overflows int64", n)
		}
		i, ok := n.int()
		if !ok {
			return out, fmt.Errorf("%s is not an integer", n)
		}
		*p = i
	case *int32:
		i, ok := n.int()
		if !ok || i < math.MinInt32 || i > math.MaxInt32 {
			return out, fmt.Errorf("%s does not fit in int32", n)
		}
		*p = int32(i)
	}
	return out, nil
}

func toNumber[T Value](v T) (number, bool) {
	switch v := any(v).(type) {
	case bool:
		if v {
			return number{i: 1, isInt: true}, true
		}
		return number{isInt: true}, true
	case float64:
		return number{f: v}, true
	case float32:
		return number{f: float64(v)}, true
	case int64:
		return number{i: v, isInt: true}, true
	case int32:
		return number{i: int64(v), isInt: true}, true
	}
	return number{}, false
}

// NewOutput builds an output tensor holding values converted to datatype.
// A nil shape means a one-dimensional tensor of len(values).
func NewOutput[T Value](name string, datatype Datatype, shape []int64, values []T) (*Tensor, error) {
	if !datatype.Valid() {
		return nil, typeMismatch(name, "unsupported datatype %q", datatype)
	}
	if shape == nil {
		shape = []int64{int64(len(values))}
	}
	t := &Tensor{
		Name:     name,
		Datatype: datatype,
		Shape:    slices.Clone(shape),
	}
	want, err := t.ElementCount()
	if err != nil {
		return nil, typeMismatch(name, "%v", err)
	}
	if want != int64(len(values)) {
		return nil, typeMismatch(name, "shape %v holds %d elements, got %d", shape, want, len(values))
	}

	elements := make([]any, len(values))
	for i, v := range values {
		if datatype == DatatypeBytes {
			s, ok := any(v).(string)
			if !ok {
				return nil, typeMismatch(name, "cannot write %T into %s", v, datatype)
			}
			elements[i] = s
			continue
		}
		n, ok := toNumber(v)
		if !ok {
			return nil, typeMismatch(name, "cannot write %T into %s", v, datatype)
		}
		element, err := jsonElement(datatype, n)
		if err != nil {
			return nil, typeMismatch(name, "element %d: %v", i, err)
		}
		elements[i] = element
	}

	data, err := json.Marshal(elements)
	if err != nil {
		return nil, typeMismatch(name, "encoding data: %v", err)
	}
	t.Data = data
	return t, nil
}

// ToRaw returns a copy of t with its value carried as little-endian bytes.
func (t *Tensor) ToRaw() (*Tensor, error) {
	out := t.clone()
	if out.RawData != nil {
		out.Data = nil
		return out, nil
	}

	var raw []byte
	if t.Datatype == DatatypeBytes {
		values, err := decodeStrings(t)
		if err != nil {
			return nil, err
		}
		for _, s := range values {
			raw = binary.LittleEndian.AppendUint32(raw, uint32(len(s)))
			raw = append(raw, s...)
		}
	} else {
		numbers, err := decodeNumbers(t)
		if err != nil {
			return nil, err
		}
		raw = make([]byte, 0, len(numbers)*t.Datatype.Size())
		for _, n := range numbers {
			raw, err = appendRawNumber(raw, t.Datatype, n)
			if err != nil {
				return nil, typeMismatch(t.Name, "%v", err)
			}
		}
	}
	if raw == nil {
		raw = []byte{}
	}
	out.RawData = raw
	out.Data = nil
	return out, nil
}
