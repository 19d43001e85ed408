package inference

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func claimRequest() *Request {
	return &Request{
		ID: "req-1",
		Inputs: []*Tensor{
			{Name: "total_claim_amount", Datatype: DatatypeFP64, Shape: []int64{1}, Data: json.RawMessage(`[12500.5]`)},
			{Name: "police_report_available", Datatype: DatatypeBytes, Shape: []int64{1}, Data: json.RawMessage(`["YES"]`)},
			{Name: "auto_year", Datatype: DatatypeInt64, Shape: []int64{1, 2}, Data: json.RawMessage(`[[1999, 2004]]`)},
			{Name: "is_complex", Datatype: DatatypeUint8, Shape: []int64{1}, Data: json.RawMessage(`[1]`)},
		},
	}
}

func TestFieldLookupIsByName(t *testing.T) {
	fields, err := NewFields(claimRequest())
	if err != nil {
		t.Fatalf("building fields: %v", err)
	}

	amount, err := Scalar[float64](fields, "total_claim_amount")
	if err != nil {
		t.Fatalf("reading total_claim_amount: %v", err)
	}
	if amount != 12500.5 {
		t.Errorf("expected 12500.5, got %v", amount)
	}

	report, err := Scalar[string](fields, "police_report_available")
	if err != nil {
		t.Fatalf("reading police_report_available: %v", err)
	}
	if report != "YES" {
		t.Errorf("expected YES, got %q", report)
	}

	years, err := Field[int64](fields, "auto_year")
	if err != nil {
		t.Fatalf("reading auto_year: %v", err)
	}
	if !slices.Equal(years, []int64{1999, 2004}) {
		t.Errorf("expected [1999 2004], got %v", years)
	}

	isComplex, err := Scalar[bool](fields, "is_complex")
	if err != nil {
		t.Fatalf("reading is_complex: %v", err)
	}
	if !isComplex {
		t.Errorf("expected is_complex to be true")
	}
}

func TestFieldNotFound(t *testing.T) {
	fields, err := NewFields(claimRequest())
	if err != nil {
		t.Fatalf("building fields: %v", err)
	}

	_, err = Field[float64](fields, "witnesses")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := status.Code(err); got != codes.NotFound {
		t.Errorf("expected grpc code NotFound, got %v", got)
	}
	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "witnesses" {
		t.Errorf("expected FieldError for witnesses, got %#v", err)
	}
}

func TestFieldTypeMismatch(t *testing.T) {
	grid := []struct {
		name   string
		tensor *Tensor
		decode func(*Tensor) error
	}{
		{
			name:   "string as number",
			tensor: &Tensor{Name: "x", Datatype: DatatypeBytes, Shape: []int64{1}, Data: json.RawMessage(`["NO"]`)},
			decode: func(t *Tensor) error { _, err := Decode[float64](t); return err },
		},
		{
			name:   "number as string",
			tensor: &Tensor{Name: "x", Datatype: DatatypeFP32, Shape: []int64{1}, Data: json.RawMessage(`[1]`)},
			decode: func(t *Tensor) error { _, err := Decode[string](t); return err },
		},
		{
			name:   "bytes as bool",
			tensor: &Tensor{Name: "x", Datatype: DatatypeBytes, Shape: []int64{1}, Data: json.RawMessage(`["true"]`)},
			decode: func(t *Tensor) error { _, err := Decode[bool](t); return err },
		},
		{
			name:   "fraction as int",
			tensor: &Tensor{Name: "x", Datatype: DatatypeFP64, Shape: []int64{1}, Data: json.RawMessage(`[1.5]`)},
			decode: func(t *Tensor) error { _, err := Decode[int64](t); return err },
		},
		{
			name:   "shape disagrees",
			tensor: &Tensor{Name: "x", Datatype: DatatypeFP64, Shape: []int64{3}, Data: json.RawMessage(`[1, 2]`)},
			decode: func(t *Tensor) error { _, err := Decode[float64](t); return err },
		},
		{
			name:   "malformed json",
			tensor: &Tensor{Name: "x", Datatype: DatatypeFP64, Shape: []int64{1}, Data: json.RawMessage(`[1,`)},
			decode: func(t *Tensor) error { _, err := Decode[float64](t); return err },
		},
		{
			name:   "string element in numeric tensor",
			tensor: &Tensor{Name: "x", Datatype: DatatypeFP64, Shape: []int64{1}, Data: json.RawMessage(`["1"]`)},
			decode: func(t *Tensor) error { _, err := Decode[float64](t); return err },
		},
		{
			name:   "raw length not a multiple of element size",
			tensor: &Tensor{Name: "x", Datatype: DatatypeFP32, Shape: []int64{1}, RawData: []byte{1, 2, 3}},
			decode: func(t *Tensor) error { _, err := Decode[float64](t); return err },
		},
		{
			name:   "negative dimensions",
			tensor: &Tensor{Name: "x", Datatype: DatatypeFP64, Shape: []int64{-1, -1}, Data: json.RawMessage(`[7]`)},
			decode: func(t *Tensor) error { _, err := Decode[float64](t); return err },
		},
		{
			name:   "negative dimensions on raw data",
			tensor: &Tensor{Name: "x", Datatype: DatatypeUint8, Shape: []int64{-1, -1}, RawData: []byte{7}},
			decode: func(t *Tensor) error { _, err := Decode[int64](t); return err },
		},
		{
			name:   "negative dimensions on strings",
			tensor: &Tensor{Name: "x", Datatype: DatatypeBytes, Shape: []int64{-1, -1}, Data: json.RawMessage(`["YES"]`)},
			decode: func(t *Tensor) error { _, err := Decode[string](t); return err },
		},
		{
			name:   "shape overflows",
			tensor: &Tensor{Name: "x", Datatype: DatatypeFP64, Shape: []int64{math.MaxInt64, 2}, Data: json.RawMessage(`[1]`)},
			decode: func(t *Tensor) error { _, err := Decode[float64](t); return err },
		},
		{
			name:   "ragged nesting",
			tensor: &Tensor{Name: "x", Datatype: DatatypeFP64, Shape: []int64{2, 2}, Data: json.RawMessage(`[[1], [2, 3, 4]]`)},
			decode: func(t *Tensor) error { _, err := Decode[float64](t); return err },
		},
		{
			name:   "ragged nesting without shape",
			tensor: &Tensor{Name: "x", Datatype: DatatypeFP64, Data: json.RawMessage(`[[1, 2], [3]]`)},
			decode: func(t *Tensor) error { _, err := Decode[float64](t); return err },
		},
		{
			name:   "nested deeper than shape",
			tensor: &Tensor{Name: "x", Datatype: DatatypeFP64, Shape: []int64{2}, Data: json.RawMessage(`[[1], [2]]`)},
			decode: func(t *Tensor) error { _, err := Decode[float64](t); return err },
		},
		{
			name:   "ragged strings",
			tensor: &Tensor{Name: "x", Datatype: DatatypeBytes, Shape: []int64{2, 2}, Data: json.RawMessage(`[["a"], ["b", "c", "d"]]`)},
			decode: func(t *Tensor) error { _, err := Decode[string](t); return err },
		},
		{
			name:   "uint64 above int64 range",
			tensor: &Tensor{Name: "x", Datatype: DatatypeUint64, Shape: []int64{1}, Data: json.RawMessage(`[9223372036854775813]`)},
			decode: func(t *Tensor) error { _, err := Decode[int64](t); return err },
		},
		{
			name:   "int32 overflow",
			tensor: &Tensor{Name: "x", Datatype: DatatypeInt64, Shape: []int64{1}, Data: json.RawMessage(`[4294967296]`)},
			decode: func(t *Tensor) error { _, err := Decode[int32](t); return err },
		},
	}

	for _, g := range grid {
		t.Run(g.name, func(t *testing.T) {
			err := g.decode(g.tensor)
			if !errors.Is(err, ErrTypeMismatch) {
				t.Fatalf("expected ErrTypeMismatch, got %v", err)
			}
			if got := status.Code(err); got != codes.InvalidArgument {
				t.Errorf("expected grpc code InvalidArgument, got %v", got)
			}
		})
	}
}

func TestScalarOfEmptyTensor(t *testing.T) {
	fields, err := NewFields(&Request{Inputs: []*Tensor{
		{Name: "claim_value", Datatype: DatatypeFP64, Shape: []int64{0}, Data: json.RawMessage(`[]`)},
	}})
	if err != nil {
		t.Fatalf("building fields: %v", err)
	}
	if _, err := Scalar[float64](fields, "claim_value"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestDuplicateInputNamesRejected(t *testing.T) {
	_, err := NewFields(&Request{Inputs: []*Tensor{
		{Name: "claim_value", Datatype: DatatypeFP64, Shape: []int64{1}, Data: json.RawMessage(`[1]`)},
		{Name: "claim_value", Datatype: DatatypeFP64, Shape: []int64{1}, Data: json.RawMessage(`[2]`)},
	}})
	if got := status.Code(err); got != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v (%v)", got, err)
	}
}

func TestDecodeRaw(t *testing.T) {
	var raw []byte
	raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(1.5))
	raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(-2))
	values, err := Decode[float64](&Tensor{Name: "x", Datatype: DatatypeFP32, Shape: []int64{2}, RawData: raw})
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !slices.Equal(values, []float64{1.5, -2}) {
		t.Errorf("expected [1.5 -2], got %v", values)
	}

	var rawStrings []byte
	for _, s := range []string{"YES", "", "NO"} {
		rawStrings = binary.LittleEndian.AppendUint32(rawStrings, uint32(len(s)))
		rawStrings = append(rawStrings, s...)
	}
	strs, err := Decode[string](&Tensor{Name: "y", Datatype: DatatypeBytes, Shape: []int64{3}, RawData: rawStrings})
	if err != nil {
		t.Fatalf("decoding strings: %v", err)
	}
	if !slices.Equal(strs, []string{"YES", "", "NO"}) {
		t.Errorf("expected [YES  NO], got %q", strs)
	}

	if _, err := Decode[string](&Tensor{Name: "y", Datatype: DatatypeBytes, RawData: []byte{5, 0, 0, 0, 'a'}}); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch for truncated element, got %v", err)
	}
}

func TestDecodeReturnsFreshSlices(t *testing.T) {
	tensor := &Tensor{Name: "x", Datatype: DatatypeFP64, Shape: []int64{2}, Data: json.RawMessage(`[1, 2]`)}
	first, err := Decode[float64](tensor)
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	first[0] = 99
	second, err := Decode[float64](tensor)
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if second[0] != 1 {
		t.Errorf("decoded values alias the payload: got %v", second)
	}
}

func TestNewOutput(t *testing.T) {
	out, err := NewOutput("is_high_value_claim", DatatypeBool, []int64{1, 2}, []bool{true, true})
	if err != nil {
		t.Fatalf("building output: %v", err)
	}
	if out.Name != "is_high_value_claim" || out.Datatype != DatatypeBool {
		t.Errorf("unexpected output header %+v", out)
	}
	if string(out.Data) != "[true,true]" {
		t.Errorf("expected [true,true], got %s", out.Data)
	}

	out, err = NewOutput("is_high_value_claim", DatatypeFP32, nil, []bool{true, false})
	if err != nil {
		t.Fatalf("building output: %v", err)
	}
	if string(out.Data) != "[1,0]" || !slices.Equal(out.Shape, []int64{2}) {
		t.Errorf("expected [1,0] with shape [2], got %s %v", out.Data, out.Shape)
	}

	if _, err := NewOutput("x", DatatypeFP64, []int64{3}, []float64{1}); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch for shape disagreement, got %v", err)
	}
	if _, err := NewOutput("x", DatatypeFP64, nil, []string{"a"}); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch for string into FP64, got %v", err)
	}
	if _, err := NewOutput("x", DatatypeUint8, nil, []int64{300}); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch for UINT8 overflow, got %v", err)
	}
}

func TestPayoutRoundTrip(t *testing.T) {
	payouts := []float64{0, 6000, 0.1 * 0.6, 123456.789 * 0.6, math.MaxFloat64 / 3}

	out, err := NewOutput("claim_payout", DatatypeFP64, nil, payouts)
	if err != nil {
		t.Fatalf("building output: %v", err)
	}

	for _, tensor := range []*Tensor{out, mustRaw(t, out)} {
		decoded, err := Decode[float64](tensor)
		if err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if !FloatingPointEqual(decoded, payouts) {
			t.Errorf("expected %v, got %v", payouts, decoded)
		}
	}
}

func TestToRaw(t *testing.T) {
	out, err := NewOutput("police_report_available", DatatypeBytes, nil, []string{"YES", "NO"})
	if err != nil {
		t.Fatalf("building output: %v", err)
	}
	raw := mustRaw(t, out)
	if raw.Data != nil {
		t.Errorf("expected data to be cleared, got %s", raw.Data)
	}
	want := []byte{3, 0, 0, 0, 'Y', 'E', 'S', 2, 0, 0, 0, 'N', 'O'}
	if !slices.Equal(raw.RawData, want) {
		t.Errorf("expected %v, got %v", want, raw.RawData)
	}
	if out.RawData != nil {
		t.Errorf("ToRaw mutated its receiver")
	}
}

func TestParseDatatype(t *testing.T) {
	grid := map[string]Datatype{
		"TYPE_BOOL":   DatatypeBool,
		"TYPE_STRING": DatatypeBytes,
		"type_fp32":   DatatypeFP32,
		"FP64":        DatatypeFP64,
		" INT64 ":     DatatypeInt64,
	}
	for input, want := range grid {
		got, err := ParseDatatype(input)
		if err != nil {
			t.Errorf("ParseDatatype(%q): %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseDatatype(%q) = %s, want %s", input, got, want)
		}
	}
	if _, err := ParseDatatype("FP16"); err == nil {
		t.Errorf("expected FP16 to be rejected")
	}
}

func mustRaw(t *testing.T, tensor *Tensor) *Tensor {
	t.Helper()
	raw, err := tensor.ToRaw()
	if err != nil {
		t.Fatalf("converting to raw: %v", err)
	}
	return raw
}

func FloatingPointEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i, value := range a {
		if math.Abs(value-b[i]) > 1e-9*math.Max(1, math.Abs(b[i])) {
			return false
		}
	}
	return true
}

func TestDecodeRegularNesting(t *testing.T) {
	grid := []struct {
		name   string
		tensor *Tensor
		want   []float64
	}{
		{
			name:   "nested matches shape",
			tensor: &Tensor{Name: "x", Datatype: DatatypeFP64, Shape: []int64{2, 2}, Data: json.RawMessage(`[[1, 2], [3, 4]]`)},
			want:   []float64{1, 2, 3, 4},
		},
		{
			name:   "flat data for a two dimensional shape",
			tensor: &Tensor{Name: "x", Datatype: DatatypeFP64, Shape: []int64{2, 2}, Data: json.RawMessage(`[1, 2, 3, 4]`)},
			want:   []float64{1, 2, 3, 4},
		},
		{
			name:   "nested without shape",
			tensor: &Tensor{Name: "x", Datatype: DatatypeFP64, Data: json.RawMessage(`[[1, 2, 3], [4, 5, 6]]`)},
			want:   []float64{1, 2, 3, 4, 5, 6},
		},
		{
			name:   "empty inner dimension",
			tensor: &Tensor{Name: "x", Datatype: DatatypeFP64, Shape: []int64{2, 0}, Data: json.RawMessage(`[[], []]`)},
			want:   []float64{},
		},
	}

	for _, g := range grid {
		t.Run(g.name, func(t *testing.T) {
			got, err := Decode[float64](g.tensor)
			if err != nil {
				t.Fatalf("decoding: %v", err)
			}
			if !slices.Equal(got, g.want) {
				t.Errorf("expected %v, got %v", g.want, got)
			}
		})
	}
}

func TestNewOutputRejectsNegativeShape(t *testing.T) {
	_, err := NewOutput("claim_payout", DatatypeFP64, []int64{-1, -1}, []float64{12000})
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestLargeUint64KeepsPrecision(t *testing.T) {
	const big = uint64(9223372036854775813)

	jsonTensor := &Tensor{Name: "x", Datatype: DatatypeUint64, Shape: []int64{1}, Data: json.RawMessage(`[9223372036854775813]`)}
	raw, err := jsonTensor.ToRaw()
	if err != nil {
		t.Fatalf("ToRaw: %v", err)
	}
	if got := binary.LittleEndian.Uint64(raw.RawData); got != big {
		t.Errorf("expected raw value %d, got %d", big, got)
	}

	rawTensor := &Tensor{Name: "x", Datatype: DatatypeUint64, Shape: []int64{1}, RawData: binary.LittleEndian.AppendUint64(nil, big)}
	_, err = Decode[int64](rawTensor)
	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) || !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	if want := "9223372036854775813 overflows int64"; !strings.Contains(fieldErr.Detail, want) {
		t.Errorf("expected detail to mention %q, got %q", want, fieldErr.Detail)
	}

	if _, err := NewOutput("x", DatatypeInt64, nil, []int64{math.MaxInt64}); err != nil {
		t.Errorf("MaxInt64 should fit INT64: %v", err)
	}
}
