package models

import (
	"context"

	"k8s.io/examples/AI/claimmodels/pkg/inference"
)

// Model is the contract a handler satisfies to be served.
// Predict must be safe for concurrent use once Load has returned.
type Model interface {
	Name() string
	Version() string
	Metadata() inference.ModelMetadata

	// Load prepares the model and marks it ready.
	Load(ctx context.Context) error
	Ready() bool

	Predict(ctx context.Context, req *inference.Request) (*inference.Response, error)

	// Finalize releases the model; it is no longer ready afterwards.
	Finalize(ctx context.Context) error
}
