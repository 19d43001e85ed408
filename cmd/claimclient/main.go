package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"k8s.io/klog/v2"

	api "k8s.io/examples/AI/claimmodels/api/v1alpha1"
	"k8s.io/examples/AI/claimmodels/pkg/inference"
)

func main() {
	ctx := context.Background()
	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// inputFlags collects repeated -input name=value[,value...] flags.
type inputFlags []string

func (f *inputFlags) String() string {
	return strings.Join(*f, " ")
}

func (f *inputFlags) Set(value string) error {
	*f = append(*f, value)
	return nil
}

func run(ctx context.Context) error {
	serverAddr := "127.0.0.1:8081"
	modelName := ""
	modelVersion := ""
	binaryOutput := false
	timeout := 10 * time.Second
	var inputs inputFlags

	flag.StringVar(&serverAddr, "server", serverAddr, "address of the claimserver GRPC listener")
	flag.StringVar(&modelName, "model", modelName, "model to call")
	flag.StringVar(&modelVersion, "model-version", modelVersion, "model version; any when empty")
	flag.BoolVar(&binaryOutput, "binary-output", binaryOutput, "ask for raw output data")
	flag.DurationVar(&timeout, "timeout", timeout, "request timeout")
	flag.Var(&inputs, "input", "input tensor as name=value[,value...]; numbers are sent as FP64, anything else as BYTES (repeatable)")

	klog.InitFlags(nil)
	flag.Parse()

	log := klog.FromContext(ctx)

	if modelName == "" {
		return fmt.Errorf("must specify -model")
	}

	request := &api.ModelInferRequest{
		ModelName:    modelName,
		ModelVersion: modelVersion,
		Request: inference.Request{
			ID: fmt.Sprintf("claimclient-%d", time.Now().UnixNano()),
		},
	}
	if binaryOutput {
		request.Parameters = map[string]any{"binary_data_output": true}
	}
	for _, input := range inputs {
		tensor, err := parseInput(input)
		if err != nil {
			return err
		}
		request.Inputs = append(request.Inputs, tensor)
	}

	conn, err := grpc.NewClient(serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to server %q: %w", serverAddr, err)
	}
	defer conn.Close()
	client := api.NewGRPCInferenceServiceClient(conn)

	log.Info("Starting claimclient", "server", serverAddr, "model", modelName)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	response, err := client.ModelInfer(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to infer: %w", err)
	}
	for _, output := range response.Outputs {
		values, err := describe(output)
		if err != nil {
			return err
		}
		log.Info("Output", "model", response.ModelName, "version", response.ModelVersion, "name", output.Name, "datatype", output.Datatype, "shape", output.Shape, "values", values)
	}

	return nil
}

func parseInput(s string) (*inference.Tensor, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return nil, fmt.Errorf("input %q is not name=value", s)
	}
	parts := strings.Split(value, ",")

	numbers := make([]float64, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return inference.NewOutput(name, inference.DatatypeBytes, nil, parts)
		}
		numbers = append(numbers, f)
	}
	return inference.NewOutput(name, inference.DatatypeFP64, nil, numbers)
}

func describe(t *inference.Tensor) (any, error) {
	switch {
	case t.Datatype == inference.DatatypeBytes:
		return inference.Decode[string](t)
	case t.Datatype == inference.DatatypeBool:
		return inference.Decode[bool](t)
	default:
		return inference.Decode[float64](t)
	}
}
