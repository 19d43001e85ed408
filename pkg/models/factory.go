package models

import (
	"fmt"

	"k8s.io/examples/AI/claimmodels/pkg/inference"
	"k8s.io/examples/AI/claimmodels/pkg/modelrepo"
)

const (
	KindClaimPayout       = "claim-payout"
	KindClaimComplexity   = "claim-complexity"
	KindClaimValue        = "claim-value"
	KindComplexityRelabel = "complexity-relabel"
)

// New builds the handler named by cfg.Kind, with thresholds and rates taken from cfg.Parameters.
func New(cfg *modelrepo.ModelConfig) (Model, error) {
	switch cfg.Kind {
	case KindClaimPayout:
		rate, err := cfg.Float("payout_rate", DefaultPayoutRate)
		if err != nil {
			return nil, err
		}
		return NewClaimPayout(cfg.Name, cfg.Version, PayoutConfig{PayoutRate: rate}), nil

	case KindClaimComplexity:
		threshold, err := cfg.Float("simple_claim_threshold", DefaultSimpleClaimThreshold)
		if err != nil {
			return nil, err
		}
		oldVehicleYear, err := cfg.Float("old_vehicle_year", DefaultOldVehicleYear)
		if err != nil {
			return nil, err
		}
		return NewClaimComplexity(cfg.Name, cfg.Version, ComplexityConfig{
			SimpleClaimThreshold: threshold,
			OldVehicleYear:       oldVehicleYear,
			OutputDatatype:       cfg.OutputDatatype(OutputComplexClaim, inference.DatatypeBool),
		}), nil

	case KindClaimValue:
		threshold, err := cfg.Float("high_value_threshold", DefaultHighValueThreshold)
		if err != nil {
			return nil, err
		}
		return NewClaimValue(cfg.Name, cfg.Version, ValueConfig{
			HighValueThreshold: threshold,
			HighValueDatatype:  cfg.OutputDatatype(OutputHighValueClaim, inference.DatatypeBool),
			LowValueDatatype:   cfg.OutputDatatype(OutputLowValueClaim, inference.DatatypeBool),
		}), nil

	case KindComplexityRelabel:
		return NewComplexityRelabel(cfg.Name, cfg.Version, RelabelConfig{
			OutputDatatype: cfg.OutputDatatype(OutputComplexClaim, inference.DatatypeBool),
		}), nil

	default:
		return nil, fmt.Errorf("model %q: unsupported kind %q", cfg.Name, cfg.Kind)
	}
}
