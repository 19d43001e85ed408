package models

import (
	"context"
	"slices"

	"k8s.io/klog/v2"

	"k8s.io/examples/AI/claimmodels/pkg/inference"
)

const (
	InputTotalClaimAmount = "total_claim_amount"
	OutputClaimPayout     = "claim_payout"

	DefaultPayoutRate = 0.6
)

type PayoutConfig struct {
	// PayoutRate is the share of the claimed amount paid out on complex claims.
	PayoutRate float64
}

// ClaimPayout computes claim_payout = total_claim_amount * PayoutRate, element-wise.
type ClaimPayout struct {
	base
	config PayoutConfig
}

var _ Model = &ClaimPayout{}

func NewClaimPayout(name, version string, config PayoutConfig) *ClaimPayout {
	return &ClaimPayout{
		base:   base{name: name, version: version},
		config: config,
	}
}

func (m *ClaimPayout) Metadata() inference.ModelMetadata {
	return m.metadata(
		[]inference.TensorMetadata{{Name: InputTotalClaimAmount, Datatype: inference.DatatypeFP64, Shape: []int64{-1}}},
		[]inference.TensorMetadata{{Name: OutputClaimPayout, Datatype: inference.DatatypeFP64, Shape: []int64{-1}}},
	)
}

func (m *ClaimPayout) Predict(ctx context.Context, req *inference.Request) (*inference.Response, error) {
	fields, err := m.begin(req)
	if err != nil {
		return nil, err
	}

	amount, err := fields.Get(InputTotalClaimAmount)
	if err != nil {
		return nil, err
	}
	amounts, err := inference.Decode[float64](amount)
	if err != nil {
		return nil, err
	}

	payouts := make([]float64, len(amounts))
	for i, v := range amounts {
		payouts[i] = v * m.config.PayoutRate
	}

	// Single precision in, single precision out.
	datatype := inference.DatatypeFP64
	if amount.Datatype == inference.DatatypeFP32 {
		datatype = inference.DatatypeFP32
	}
	shape := amount.Shape
	if shape == nil {
		shape = []int64{int64(len(payouts))}
	}
	output, err := inference.NewOutput(OutputClaimPayout, datatype, slices.Clone(shape), payouts)
	if err != nil {
		return nil, err
	}

	klog.FromContext(ctx).V(2).Info("calculated claim payout", "model", m.name, "request", req.ID, "elements", len(payouts))
	return m.respond(req, output), nil
}
