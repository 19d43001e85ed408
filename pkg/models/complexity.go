package models

import (
	"context"

	"k8s.io/klog/v2"

	"k8s.io/examples/AI/claimmodels/pkg/inference"
)

const (
	InputAutoYear              = "auto_year"
	InputWitnesses             = "witnesses"
	InputPoliceReportAvailable = "police_report_available"

	OutputComplexClaim = "is_complex_claim"
	OutputSimpleClaim  = "is_simple_claim"

	DefaultSimpleClaimThreshold = 10000
	DefaultOldVehicleYear       = 2000

	policeReportYes = "YES"
)

type ComplexityConfig struct {
	// SimpleClaimThreshold is the amount at or below which a claim is never complex.
	SimpleClaimThreshold float64
	// OldVehicleYear is the first model year not considered old.
	OldVehicleYear float64
	// OutputDatatype of the decision tensor.
	OutputDatatype inference.Datatype
}

// ClaimComplexity classifies a claim as complex or simple.
type ClaimComplexity struct {
	base
	config ComplexityConfig
}

var _ Model = &ClaimComplexity{}

func NewClaimComplexity(name, version string, config ComplexityConfig) *ClaimComplexity {
	if config.OutputDatatype == "" {
		config.OutputDatatype = inference.DatatypeBool
	}
	return &ClaimComplexity{
		base:   base{name: name, version: version},
		config: config,
	}
}

func (m *ClaimComplexity) Metadata() inference.ModelMetadata {
	return m.metadata(
		[]inference.TensorMetadata{
			{Name: InputTotalClaimAmount, Datatype: inference.DatatypeFP64, Shape: []int64{1}},
			{Name: InputAutoYear, Datatype: inference.DatatypeFP64, Shape: []int64{1}},
			{Name: InputWitnesses, Datatype: inference.DatatypeFP64, Shape: []int64{1}},
			{Name: InputPoliceReportAvailable, Datatype: inference.DatatypeBytes, Shape: []int64{1}},
		},
		[]inference.TensorMetadata{
			{Name: OutputComplexClaim, Datatype: m.config.OutputDatatype, Shape: []int64{1}},
			{Name: OutputSimpleClaim, Datatype: m.config.OutputDatatype, Shape: []int64{1}},
		},
	)
}

// isComplex applies the rules in order; each later rule only applies once the earlier ones
// have passed, so inputs behind a short-circuit are never read.
func (m *ClaimComplexity) isComplex(fields *inference.Fields) (bool, string, error) {
	amount, err := inference.Scalar[float64](fields, InputTotalClaimAmount)
	if err != nil {
		return false, "", err
	}
	if amount <= m.config.SimpleClaimThreshold {
		return false, "small claim", nil
	}

	autoYear, err := inference.Scalar[float64](fields, InputAutoYear)
	if err != nil {
		return false, "", err
	}
	if autoYear < m.config.OldVehicleYear {
		return true, "old vehicle", nil
	}

	witnesses, err := inference.Scalar[float64](fields, InputWitnesses)
	if err != nil {
		return false, "", err
	}
	policeReport, err := inference.Scalar[string](fields, InputPoliceReportAvailable)
	if err != nil {
		return false, "", err
	}
	if witnesses == 0 && policeReport != policeReportYes {
		return true, "no objective evidence", nil
	}

	return false, "evidence available", nil
}

func (m *ClaimComplexity) Predict(ctx context.Context, req *inference.Request) (*inference.Response, error) {
	fields, err := m.begin(req)
	if err != nil {
		return nil, err
	}

	complexClaim, reason, err := m.isComplex(fields)
	if err != nil {
		return nil, err
	}

	outputName := OutputSimpleClaim
	if complexClaim {
		outputName = OutputComplexClaim
	}
	output, err := flagOutput(outputName, m.config.OutputDatatype)
	if err != nil {
		return nil, err
	}

	klog.FromContext(ctx).V(2).Info("classified claim complexity", "model", m.name, "request", req.ID, "output", outputName, "reason", reason)
	return m.respond(req, output), nil
}
