package models

import (
	"context"
	"slices"

	"k8s.io/klog/v2"

	"k8s.io/examples/AI/claimmodels/pkg/inference"
)

const (
	InputClaimValue = "claim_value"

	OutputHighValueClaim = "is_high_value_claim"
	OutputLowValueClaim  = "is_low_value_claim"

	DefaultHighValueThreshold = 60000
)

type ValueConfig struct {
	// HighValueThreshold is the claim value at or above which a claim is high value.
	HighValueThreshold float64
	HighValueDatatype  inference.Datatype
	LowValueDatatype   inference.Datatype
}

// ClaimValue classifies a claim as high or low value. The output has the shape of
// claim_value, every element true; its name carries the decision.
type ClaimValue struct {
	base
	config ValueConfig
}

var _ Model = &ClaimValue{}

func NewClaimValue(name, version string, config ValueConfig) *ClaimValue {
	if config.HighValueDatatype == "" {
		config.HighValueDatatype = inference.DatatypeBool
	}
	if config.LowValueDatatype == "" {
		config.LowValueDatatype = inference.DatatypeBool
	}
	return &ClaimValue{
		base:   base{name: name, version: version},
		config: config,
	}
}

func (m *ClaimValue) Metadata() inference.ModelMetadata {
	return m.metadata(
		[]inference.TensorMetadata{{Name: InputClaimValue, Datatype: inference.DatatypeFP64, Shape: []int64{-1}}},
		[]inference.TensorMetadata{
			{Name: OutputHighValueClaim, Datatype: m.config.HighValueDatatype, Shape: []int64{-1}},
			{Name: OutputLowValueClaim, Datatype: m.config.LowValueDatatype, Shape: []int64{-1}},
		},
	)
}

func (m *ClaimValue) Predict(ctx context.Context, req *inference.Request) (*inference.Response, error) {
	fields, err := m.begin(req)
	if err != nil {
		return nil, err
	}

	claimValue, err := fields.Get(InputClaimValue)
	if err != nil {
		return nil, err
	}
	values, err := inference.Decode[float64](claimValue)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, &inference.FieldError{Field: InputClaimValue, Err: inference.ErrTypeMismatch, Detail: "tensor has no elements"}
	}

	// The first element decides for the whole tensor.
	outputName, datatype := OutputLowValueClaim, m.config.LowValueDatatype
	if values[0] >= m.config.HighValueThreshold {
		outputName, datatype = OutputHighValueClaim, m.config.HighValueDatatype
	}

	shape := claimValue.Shape
	if shape == nil {
		shape = []int64{int64(len(values))}
	}
	flags := make([]bool, len(values))
	for i := range flags {
		flags[i] = true
	}
	output, err := inference.NewOutput(outputName, datatype, slices.Clone(shape), flags)
	if err != nil {
		return nil, err
	}

	klog.FromContext(ctx).V(2).Info("classified claim value", "model", m.name, "request", req.ID, "output", outputName)
	return m.respond(req, output), nil
}
