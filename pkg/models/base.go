package models

import (
	"context"
	"sync/atomic"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"

	"k8s.io/examples/AI/claimmodels/pkg/inference"
)

// Platform is reported in model metadata.
const Platform = "claimmodels"

// base carries identity and the readiness flag shared by every handler.
type base struct {
	name    string
	version string
	ready   atomic.Bool
}

func (b *base) Name() string {
	return b.name
}

func (b *base) Version() string {
	return b.version
}

func (b *base) Ready() bool {
	return b.ready.Load()
}

func (b *base) Load(ctx context.Context) error {
	b.ready.Store(true)
	klog.FromContext(ctx).Info("model loaded", "model", b.name, "version", b.version)
	return nil
}

func (b *base) Finalize(ctx context.Context) error {
	b.ready.Store(false)
	klog.FromContext(ctx).Info("model finalized", "model", b.name, "version", b.version)
	return nil
}

// begin checks readiness and indexes the request inputs.
func (b *base) begin(req *inference.Request) (*inference.Fields, error) {
	if !b.Ready() {
		return nil, status.Errorf(codes.Unavailable, "model %q is not ready", b.name)
	}
	return inference.NewFields(req)
}

func (b *base) respond(req *inference.Request, outputs ...*inference.Tensor) *inference.Response {
	return &inference.Response{
		ID:           req.ID,
		ModelName:    b.name,
		ModelVersion: b.version,
		Outputs:      outputs,
	}
}

func (b *base) metadata(inputs, outputs []inference.TensorMetadata) inference.ModelMetadata {
	return inference.ModelMetadata{
		Name:     b.name,
		Versions: []string{b.version},
		Platform: Platform,
		Inputs:   inputs,
		Outputs:  outputs,
	}
}

// flagOutput is the one-element true tensor whose name carries a decision.
func flagOutput(name string, datatype inference.Datatype) (*inference.Tensor, error) {
	return inference.NewOutput(name, datatype, []int64{1}, []bool{true})
}
