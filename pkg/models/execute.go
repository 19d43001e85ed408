package models

import (
	"context"

	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"

	"k8s.io/examples/AI/claimmodels/pkg/inference"
)

// Result pairs the response or error of one request in a batch.
type Result struct {
	Response *inference.Response
	Err      error
}

// Execute runs every request through the model and returns exactly one Result per
// request, in order. A failing request does not affect the others. The hosts call it
// with a batch of one per inference call.
func Execute(ctx context.Context, model Model, reqs []*inference.Request) []Result {
	log := klog.FromContext(ctx)

	results := make([]Result, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			results[i].Err = status.FromContextError(err).Err()
			continue
		}
		response, err := model.Predict(ctx, req)
		if err != nil {
			log.V(2).Info("request failed", "model", model.Name(), "request", req.ID, "error", err)
		}
		results[i] = Result{Response: response, Err: err}
	}
	return results
}
