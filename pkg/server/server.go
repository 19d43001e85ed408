package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"k8s.io/klog/v2"

	api "k8s.io/examples/AI/claimmodels/api/v1alpha1"
	"k8s.io/examples/AI/claimmodels/pkg/models"
)

type Options struct {
	HTTPListen      string
	GRPCListen      string
	MaxRequestBytes int64
	ShutdownTimeout time.Duration
}

// Run serves HTTP and gRPC until ctx is cancelled or either server fails.
// An empty listen address disables that transport.
func Run(ctx context.Context, registry *models.Registry, opts Options) error {
	log := klog.FromContext(ctx)

	if opts.HTTPListen == "" && opts.GRPCListen == "" {
		return errors.New("no listen address configured")
	}

	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	var httpListener, grpcListener net.Listener
	if opts.HTTPListen != "" {
		lis, err := net.Listen("tcp", opts.HTTPListen)
		if err != nil {
			return fmt.Errorf("listening on %q: %w", opts.HTTPListen, err)
		}
		httpListener = lis
	}
	if opts.GRPCListen != "" {
		lis, err := net.Listen("tcp", opts.GRPCListen)
		if err != nil {
			if httpListener != nil {
				httpListener.Close()
			}
			return fmt.Errorf("listening on %q: %w", opts.GRPCListen, err)
		}
		grpcListener = lis
	}

	g, ctx := errgroup.WithContext(ctx)

	if httpListener != nil {
		lis := httpListener
		httpServer := NewHTTPServer(registry)
		if opts.MaxRequestBytes > 0 {
			httpServer.MaxRequestBytes = opts.MaxRequestBytes
		}
		// In-flight requests keep running through Shutdown.
		baseCtx := context.WithoutCancel(ctx)
		srv := &http.Server{
			Handler:           httpServer,
			ReadHeaderTimeout: 5 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return baseCtx },
		}

		g.Go(func() error {
			log.Info("serving HTTP", "listen", lis.Addr().String())
			if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving HTTP: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutting down HTTP: %w", err)
			}
			return nil
		})
	}

	if grpcListener != nil {
		lis := grpcListener
		grpcServer := grpc.NewServer()
		api.RegisterGRPCInferenceServiceServer(grpcServer, &InferenceServer{Registry: registry})

		g.Go(func() error {
			log.Info("serving GRPC", "listen", lis.Addr().String())
			// ErrServerStopped means shutdown won the race with Serve.
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serving GRPC: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			stopped := make(chan struct{})
			go func() {
				grpcServer.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(opts.ShutdownTimeout):
				grpcServer.Stop()
			}
			return nil
		})
	}

	return g.Wait()
}
