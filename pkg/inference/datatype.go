package inference

import (
	"fmt"
	"strings"
)

// Datatype is the element type tag of a tensor, as named by the v2 inference protocol.
type Datatype string

const (
	DatatypeBool   Datatype = "BOOL"
	DatatypeUint8  Datatype = "UINT8"
	DatatypeUint16 Datatype = "UINT16"
	DatatypeUint32 Datatype = "UINT32"
	DatatypeUint64 Datatype = "UINT64"
	DatatypeInt8   Datatype = "INT8"
	DatatypeInt16  Datatype = "INT16"
	DatatypeInt32  Datatype = "INT32"
	DatatypeInt64  Datatype = "INT64"
	DatatypeFP32   Datatype = "FP32"
	DatatypeFP64   Datatype = "FP64"
	DatatypeBytes  Datatype = "BYTES"
)

var elementSizes = map[Datatype]int{
	DatatypeBool:   1,
	DatatypeUint8:  1,
	DatatypeUint16: 2,
	DatatypeUint32: 4,
	DatatypeUint64: 8,
	DatatypeInt8:   1,
	DatatypeInt16:  2,
	DatatypeInt32:  4,
	DatatypeInt64:  8,
	DatatypeFP32:   4,
	DatatypeFP64:   8,
	DatatypeBytes:  0,
}

// Size returns the size in bytes of one element in raw encoding.
// BYTES elements are variable length and report 0.
func (d Datatype) Size() int {
	return elementSizes[d]
}

func (d Datatype) Valid() bool {
	_, ok := elementSizes[d]
	return ok
}

// IsNumeric is true for the integer and floating point datatypes.
func (d Datatype) IsNumeric() bool {
	return d.Valid() && d != DatatypeBool && d != DatatypeBytes
}

// ParseDatatype accepts either a protocol tag ("FP32") or a Triton model
// config name ("TYPE_FP32"). TYPE_STRING maps to BYTES.
func ParseDatatype(s string) (Datatype, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if strings.HasPrefix(name, "TYPE_") {
		name = strings.TrimPrefix(name, "TYPE_")
		if name == "STRING" {
			name = string(DatatypeBytes)
		}
	}
	d := Datatype(name)
	if !d.Valid() {
		return "", fmt.Errorf("unsupported datatype %q", s)
	}
	return d, nil
}
