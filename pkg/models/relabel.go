package models

import (
	"context"

	"k8s.io/klog/v2"

	"k8s.io/examples/AI/claimmodels/pkg/inference"
)

const InputIsComplex = "is_complex"

type RelabelConfig struct {
	OutputDatatype inference.Datatype
}

// ComplexityRelabel turns an upstream is_complex flag into an is_complex_claim or
// is_simple_claim output, so the decision can be routed on by output name.
type ComplexityRelabel struct {
	base
	config RelabelConfig
}

var _ Model = &ComplexityRelabel{}

func NewComplexityRelabel(name, version string, config RelabelConfig) *ComplexityRelabel {
	if config.OutputDatatype == "" {
		config.OutputDatatype = inference.DatatypeBool
	}
	return &ComplexityRelabel{
		base:   base{name: name, version: version},
		config: config,
	}
}

func (m *ComplexityRelabel) Metadata() inference.ModelMetadata {
	return m.metadata(
		[]inference.TensorMetadata{{Name: InputIsComplex, Datatype: inference.DatatypeBool, Shape: []int64{1}}},
		[]inference.TensorMetadata{
			{Name: OutputComplexClaim, Datatype: m.config.OutputDatatype, Shape: []int64{1}},
			{Name: OutputSimpleClaim, Datatype: m.config.OutputDatatype, Shape: []int64{1}},
		},
	)
}

func (m *ComplexityRelabel) Predict(ctx context.Context, req *inference.Request) (*inference.Response, error) {
	fields, err := m.begin(req)
	if err != nil {
		return nil, err
	}

	isComplex, err := inference.Scalar[bool](fields, InputIsComplex)
	if err != nil {
		return nil, err
	}

	outputName := OutputSimpleClaim
	if isComplex {
		outputName = OutputComplexClaim
	}
	output, err := flagOutput(outputName, m.config.OutputDatatype)
	if err != nil {
		return nil, err
	}

	klog.FromContext(ctx).V(2).Info("relabeled claim complexity", "model", m.name, "request", req.ID, "output", outputName)
	return m.respond(req, output), nil
}
