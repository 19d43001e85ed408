package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"k8s.io/examples/AI/claimmodels/pkg/config"
	"k8s.io/examples/AI/claimmodels/pkg/modelrepo"
	"k8s.io/examples/AI/claimmodels/pkg/models"
	"k8s.io/examples/AI/claimmodels/pkg/server"
	"k8s.io/klog/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configFile := os.Getenv("CONFIG_FILE")
	flag.StringVar(&configFile, "config", configFile, "path to the server config file")

	klog.InitFlags(nil)
	flag.Parse()

	log := klog.FromContext(ctx)

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	repo, err := modelrepo.Open(cfg.Repository.Source, modelrepo.Options{
		CacheDir:            cfg.Repository.CacheDir,
		MaxDownloadAttempts: cfg.Repository.MaxDownloadAttempts,
		RetryInterval:       cfg.Repository.RetryInterval,
	})
	if err != nil {
		return fmt.Errorf("opening model repository: %w", err)
	}

	registry := models.NewRegistry()
	defer func() {
		if err := registry.Close(context.WithoutCancel(ctx)); err != nil {
			log.Error(err, "finalizing models")
		}
	}()
	if err := registry.LoadFromRepository(ctx, repo, cfg.Models); err != nil {
		return fmt.Errorf("loading models: %w", err)
	}

	log.Info("Starting claimserver", "http", cfg.HTTPListen, "grpc", cfg.GRPCListen, "models", registry.Names())
	if err := server.Run(ctx, registry, server.Options{
		HTTPListen:      cfg.HTTPListen,
		GRPCListen:      cfg.GRPCListen,
		MaxRequestBytes: cfg.MaxRequestBytes,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}); err != nil {
		return err
	}

	log.Info("claimserver stopped")
	return nil
}
