package server

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"

	api "k8s.io/examples/AI/claimmodels/api/v1alpha1"
	"k8s.io/examples/AI/claimmodels/pkg/inference"
	"k8s.io/examples/AI/claimmodels/pkg/models"
)

// InferenceServer answers the v2 inference gRPC service from a model registry.
type InferenceServer struct {
	api.UnimplementedGRPCInferenceServiceServer

	Registry *models.Registry
}

var _ api.GRPCInferenceServiceServer = &InferenceServer{}

func (s *InferenceServer) ServerLive(ctx context.Context, req *api.ServerLiveRequest) (*api.ServerLiveResponse, error) {
	return &api.ServerLiveResponse{Live: true}, nil
}

func (s *InferenceServer) ServerReady(ctx context.Context, req *api.ServerReadyRequest) (*api.ServerReadyResponse, error) {
	return &api.ServerReadyResponse{Ready: s.Registry.Ready()}, nil
}

func (s *InferenceServer) ModelReady(ctx context.Context, req *api.ModelReadyRequest) (*api.ModelReadyResponse, error) {
	model, err := s.Registry.Get(req.Name, req.Version)
	if err != nil {
		return nil, err
	}
	return &api.ModelReadyResponse{Ready: model.Ready()}, nil
}

func (s *InferenceServer) ModelMetadata(ctx context.Context, req *api.ModelMetadataRequest) (*api.ModelMetadataResponse, error) {
	model, err := s.Registry.Get(req.Name, req.Version)
	if err != nil {
		return nil, err
	}
	metadata := model.Metadata()
	return &metadata, nil
}

func (s *InferenceServer) ModelInfer(ctx context.Context, req *api.ModelInferRequest) (*api.ModelInferResponse, error) {
	response, err := infer(ctx, s.Registry, req.ModelName, req.ModelVersion, &req.Request)
	if err != nil {
		if _, ok := status.FromError(err); !ok {
			return nil, status.Error(codes.Internal, err.Error())
		}
		return nil, err
	}
	return response, nil
}

// infer runs one request against the addressed model, shared by both transports.
func infer(ctx context.Context, registry *models.Registry, name, version string, req *inference.Request) (*inference.Response, error) {
	log := klog.FromContext(ctx)

	model, err := registry.Get(name, version)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now()
	result := models.Execute(ctx, model, []*inference.Request{req})[0]
	response, err := result.Response, result.Err
	if err != nil {
		log.Info("inference failed", "model", name, "request", req.ID, "error", err)
		return nil, err
	}

	if req.BoolParameter("binary_data_output") {
		for i, output := range response.Outputs {
			raw, err := output.ToRaw()
			if err != nil {
				return nil, err
			}
			response.Outputs[i] = raw
		}
	}

	log.V(2).Info("inference done", "model", name, "request", req.ID, "duration", time.Since(startedAt))
	return response, nil
}
