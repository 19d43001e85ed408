// Package v1alpha1 defines the messages and gRPC service of the v2 inference protocol,
// carried as JSON over gRPC.
package v1alpha1

import "k8s.io/examples/AI/claimmodels/pkg/inference"

type ServerLiveRequest struct{}

type ServerLiveResponse struct {
	Live bool `json:"live"`
}

type ServerReadyRequest struct{}

type ServerReadyResponse struct {
	Ready bool `json:"ready"`
}

type ModelReadyRequest struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type ModelReadyResponse struct {
	Ready bool `json:"ready"`
}

type ModelMetadataRequest struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type ModelMetadataResponse = inference.ModelMetadata

// ModelInferRequest addresses an inference request to a model.
type ModelInferRequest struct {
	ModelName    string `json:"model_name"`
	ModelVersion string `json:"model_version,omitempty"`
	inference.Request
}

type ModelInferResponse = inference.Response
