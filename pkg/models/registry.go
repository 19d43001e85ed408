package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"

	"k8s.io/examples/AI/claimmodels/pkg/modelrepo"
)

// Registry holds the loaded models by name.
type Registry struct {
	mutex  sync.RWMutex
	models map[string]Model
}

func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]Model),
	}
}

// Register loads the model and makes it available under its name.
func (r *Registry) Register(ctx context.Context, model Model) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, found := r.models[model.Name()]; found {
		return fmt.Errorf("model %q already registered", model.Name())
	}
	if err := model.Load(ctx); err != nil {
		return fmt.Errorf("loading model %q: %w", model.Name(), err)
	}
	r.models[model.Name()] = model
	return nil
}

// LoadFromRepository registers the named models, or every model in the repository when names is empty.
func (r *Registry) LoadFromRepository(ctx context.Context, repo *modelrepo.Repository, names []string) error {
	log := klog.FromContext(ctx)

	if len(names) == 0 {
		listed, err := repo.List(ctx)
		if err != nil {
			return fmt.Errorf("listing models: %w", err)
		}
		names = listed
	}
	if len(names) == 0 {
		return errors.New("model repository has no models")
	}

	var registered []string
	for _, name := range names {
		if err := r.loadOne(ctx, repo, name); err != nil {
			if rollbackErr := r.unregister(ctx, registered); rollbackErr != nil {
				log.Error(rollbackErr, "finalizing models after failed load")
			}
			return err
		}
		registered = append(registered, name)
	}
	return nil
}

func (r *Registry) loadOne(ctx context.Context, repo *modelrepo.Repository, name string) error {
	cfg, err := repo.Load(ctx, name)
	if err != nil {
		return err
	}
	model, err := New(cfg)
	if err != nil {
		return err
	}
	if err := r.Register(ctx, model); err != nil {
		return err
	}
	klog.FromContext(ctx).Info("registered model", "model", cfg.Name, "version", cfg.Version, "kind", cfg.Kind)
	return nil
}

// unregister finalizes and removes the named models.
func (r *Registry) unregister(ctx context.Context, names []string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var errs []error
	for _, name := range names {
		model, found := r.models[name]
		if !found {
			continue
		}
		delete(r.models, name)
		if err := model.Finalize(ctx); err != nil {
			errs = append(errs, fmt.Errorf("finalizing model %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Get returns the named model. An empty version matches any; otherwise it must equal the model's version.
func (r *Registry) Get(name, version string) (Model, error) {
	r.mutex.RLock()
	model, found := r.models[name]
	r.mutex.RUnlock()

	if !found {
		return nil, status.Errorf(codes.NotFound, "model %q not found", name)
	}
	if version != "" && version != model.Version() {
		return nil, status.Errorf(codes.NotFound, "model %q version %q not found", name, version)
	}
	return model, nil
}

func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ready is true when every registered model is ready.
func (r *Registry) Ready() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, model := range r.models {
		if !model.Ready() {
			return false
		}
	}
	return len(r.models) > 0
}

// Close finalizes every model.
func (r *Registry) Close(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var errs []error
	for name, model := range r.models {
		if err := model.Finalize(ctx); err != nil {
			errs = append(errs, fmt.Errorf("finalizing model %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
