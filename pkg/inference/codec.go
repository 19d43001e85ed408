package inference

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// number holds one numeric element without losing 64-bit integer precision.
// Unsigned values above math.MaxInt64 are kept in u.
type number struct {
	f      float64
	i      int64
	u      uint64
	isInt  bool
	isUint bool
}

func (n number) float() float64 {
	switch {
	case n.isUint:
		return float64(n.u)
	case n.isInt:
		return float64(n.i)
	}
	return n.f
}

func (n number) int() (int64, bool) {
	switch {
	case n.isUint:
		return 0, false
	case n.isInt:
		return n.i, true
	}
	if n.f != math.Trunc(n.f) || n.f < math.MinInt64 || n.f >= math.MaxInt64 {
		return 0, false
	}
	return int64(n.f), true
}

func (n number) isZero() bool {
	switch {
	case n.isUint:
		return n.u == 0
	case n.isInt:
		return n.i == 0
	}
	return n.f == 0
}

func (n number) String() string {
	switch {
	case n.isUint:
		return strconv.FormatUint(n.u, 10)
	case n.isInt:
		return strconv.FormatInt(n.i, 10)
	}
	return strconv.FormatFloat(n.f, 'g', -1, 64)
}

// flattenJSON decodes a JSON array into its elements in row-major order.
// A flat array is accepted for any shape; nested arrays must be regular and
// match shape dimension by dimension. With no shape, the first element at each
// depth sets the dimensions.
func flattenJSON(data json.RawMessage, shape []int64) ([]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var root any
	if err := decoder.Decode(&root); err != nil {
		return nil, err
	}

	list, ok := root.([]any)
	if !ok {
		return []any{root}, nil
	}
	nested := false
	for _, item := range list {
		if _, ok := item.([]any); ok {
			nested = true
			break
		}
	}
	if !nested {
		return list, nil
	}

	dims := shape
	if dims == nil {
		for v := root; ; {
			l, ok := v.([]any)
			if !ok {
				break
			}
			dims = append(dims, int64(len(l)))
			if len(l) == 0 {
				break
			}
			v = l[0]
		}
	}

	var out []any
	var walk func(v any, depth int) error
	walk = func(v any, depth int) error {
		l, isList := v.([]any)
		if depth == len(dims) {
			if isList {
				return fmt.Errorf("data is nested deeper than %d dimensions", len(dims))
			}
			out = append(out, v)
			return nil
		}
		if !isList {
			return fmt.Errorf("expected an array at depth %d", depth)
		}
		if int64(len(l)) != dims[depth] {
			return fmt.Errorf("array at depth %d has %d elements, dimension is %d", depth, len(l), dims[depth])
		}
		for _, item := range l {
			if err := walk(item, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root, 0); err != nil {
		return nil, err
	}
	return out, nil
}

func checkCount(t *Tensor, n int) error {
	if t.Shape == nil {
		return nil
	}
	want, err := t.ElementCount()
	if err != nil {
		return typeMismatch(t.Name, "%v", err)
	}
	if want != int64(n) {
		return typeMismatch(t.Name, "shape %v holds %d elements, got %d", t.Shape, want, n)
	}
	return nil
}

func decodeNumbers(t *Tensor) ([]number, error) {
	if t.Datatype == DatatypeBytes {
		return nil, typeMismatch(t.Name, "datatype %s is not numeric", t.Datatype)
	}
	if !t.Datatype.Valid() {
		return nil, typeMismatch(t.Name, "unsupported datatype %q", t.Datatype)
	}

	if t.Shape != nil {
		if _, err := t.ElementCount(); err != nil {
			return nil, typeMismatch(t.Name, "%v", err)
		}
	}

	var out []number
	if t.RawData != nil {
		size := t.Datatype.Size()
		if len(t.RawData)%size != 0 {
			return nil, typeMismatch(t.Name, "%d raw bytes is not a multiple of %s element size %d", len(t.RawData), t.Datatype, size)
		}
		out = make([]number, 0, len(t.RawData)/size)
		for offset := 0; offset < len(t.RawData); offset += size {
			out = append(out, readRawNumber(t.Datatype, t.RawData[offset:offset+size]))
		}
	} else {
		elements, err := flattenJSON(t.Data, t.Shape)
		if err != nil {
			return nil, typeMismatch(t.Name, "decoding data: %v", err)
		}
		out = make([]number, 0, len(elements))
		for i, element := range elements {
			n, err := jsonNumber(t.Datatype, element)
			if err != nil {
				return nil, typeMismatch(t.Name, "element %d: %v", i, err)
			}
			out = append(out, n)
		}
	}

	if err := checkCount(t, len(out)); err != nil {
		return nil, err
	}
	return out, nil
}

func jsonNumber(datatype Datatype, element any) (number, error) {
	switch v := element.(type) {
	case bool:
		if v {
			return number{i: 1, isInt: true}, nil
		}
		return number{isInt: true}, nil
	case json.Number:
		switch datatype {
		case DatatypeFP32, DatatypeFP64:
			f, err := v.Float64()
			if err != nil {
				return number{}, err
			}
			return number{f: f}, nil
		default:
			if i, err := v.Int64(); err == nil {
				return number{i: i, isInt: true}, nil
			}
			if u, err := strconv.ParseUint(v.String(), 10, 64); err == nil {
				return number{u: u, isUint: true}, nil
			}
			f, err := v.Float64()
			if err != nil {
				return number{}, err
			}
			return number{f: f}, nil
		}
	default:
		return number{}, fmt.Errorf("%T is not a number", element)
	}
}

func readRawNumber(datatype Datatype, b []byte) number {
	le := binary.LittleEndian
	switch datatype {
	case DatatypeBool, DatatypeUint8:
		return number{i: int64(b[0]), isInt: true}
	case DatatypeInt8:
		return number{i: int64(int8(b[0])), isInt: true}
	case DatatypeUint16:
		return number{i: int64(le.Uint16(b)), isInt: true}
	case DatatypeInt16:
		return number{i: int64(int16(le.Uint16(b))), isInt: true}
	case DatatypeUint32:
		return number{i: int64(le.Uint32(b)), isInt: true}
	case DatatypeInt32:
		return number{i: int64(int32(le.Uint32(b))), isInt: true}
	case DatatypeUint64:
		u := le.Uint64(b)
		if u > math.MaxInt64 {
			return number{u: u, isUint: true}
		}
		return number{i: int64(u), isInt: true}
	case DatatypeInt64:
		return number{i: int64(le.Uint64(b)), isInt: true}
	case DatatypeFP32:
		return number{f: float64(math.Float32frombits(le.Uint32(b)))}
	default:
		return number{f: math.Float64frombits(le.Uint64(b))}
	}
}

func decodeStrings(t *Tensor) ([]string, error) {
	if t.Datatype != DatatypeBytes {
		return nil, typeMismatch(t.Name, "datatype %s is not BYTES", t.Datatype)
	}

	var out []string
	if t.RawData != nil {
		raw := t.RawData
		for len(raw) > 0 {
			if len(raw) < 4 {
				return nil, typeMismatch(t.Name, "truncated length prefix")
			}
			n := binary.LittleEndian.Uint32(raw)
			raw = raw[4:]
			if uint64(len(raw)) < uint64(n) {
				return nil, typeMismatch(t.Name, "element of %d bytes exceeds remaining %d", n, len(raw))
			}
			out = append(out, string(raw[:n]))
			raw = raw[n:]
		}
	} else {
		elements, err := flattenJSON(t.Data, t.Shape)
		if err != nil {
			return nil, typeMismatch(t.Name, "decoding data: %v", err)
		}
		out = make([]string, 0, len(elements))
		for i, element := range elements {
			s, ok := element.(string)
			if !ok {
				return nil, typeMismatch(t.Name, "element %d: %T is not a string", i, element)
			}
			out = append(out, s)
		}
	}

	if err := checkCount(t, len(out)); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeBools(t *Tensor) ([]bool, error) {
	if t.Datatype == DatatypeBytes {
		return nil, typeMismatch(t.Name, "datatype %s is not boolean-castable", t.Datatype)
	}
	numbers, err := decodeNumbers(t)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(numbers))
	for i, n := range numbers {
		out[i] = !n.isZero()
	}
	return out, nil
}

// jsonElement converts n to the Go value written into a tensor of the given datatype.
func jsonElement(datatype Datatype, n number) (any, error) {
	switch datatype {
	case DatatypeBool:
		return !n.isZero(), nil
	case DatatypeFP32:
		return float32(n.float()), nil
	case DatatypeFP64:
		return n.float(), nil
	}
	if n.isUint {
		if datatype != DatatypeUint64 {
			return nil, fmt.Errorf("%s overflows %s", n, datatype)
		}
		return n.u, nil
	}
	i, ok := n.int()
	if !ok {
		// Truncate toward zero, as a numeric cast would.
		i = int64(n.float())
	}
	if datatype == DatatypeUint64 && i < 0 {
		return nil, fmt.Errorf("%d overflows %s", i, datatype)
	}
	if bits := datatype.Size() * 8; bits < 64 {
		var lo, hi int64
		if datatype == DatatypeUint8 || datatype == DatatypeUint16 || datatype == DatatypeUint32 {
			lo, hi = 0, int64(1)<<bits-1
		} else {
			lo, hi = -(int64(1) << (bits - 1)), int64(1)<<(bits-1)-1
		}
		if i < lo || i > hi {
			return nil, fmt.Errorf("%d overflows %s", i, datatype)
		}
	}
	return i, nil
}

func appendRawNumber(buf []byte, datatype Datatype, n number) ([]byte, error) {
	element, err := jsonElement(datatype, n)
	if err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	switch v := element.(type) {
	case bool:
		if v {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case float32:
		return le.AppendUint32(buf, math.Float32bits(v)), nil
	case float64:
		return le.AppendUint64(buf, math.Float64bits(v)), nil
	case uint64:
		return le.AppendUint64(buf, v), nil
	case int64:
		switch datatype.Size() {
		case 1:
			return append(buf, byte(v)), nil
		case 2:
			return le.AppendUint16(buf, uint16(v)), nil
		case 4:
			return le.AppendUint32(buf, uint32(v)), nil
		default:
			return le.AppendUint64(buf, uint64(v)), nil
		}
	}
	return nil, fmt.Errorf("unexpected element %T", element)
}
