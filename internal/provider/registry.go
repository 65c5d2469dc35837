package provider

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/parley-ai/parley/pkg/logger"
)

// Registry is a name→adapter directory with one default provider.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	defaultName string
	log         *logger.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		log:       log,
	}
}

// Register adds a provider under name. The first registration becomes the
// default; re-registering an existing name overwrites it with a warning.
func (r *Registry) Register(name string, p Provider) bool {
	if name == "" || p == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		r.log.Warn("provider already registered, overwriting", zap.String("provider", name))
	}
	r.providers[name] = p
	if r.defaultName == "" {
		r.defaultName = name
	}

	r.log.Info("provider registered", zap.String("provider", name))
	return true
}

// Get returns the provider under name, or the default when name is empty.
// Returns nil when no such provider exists.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultName
	}
	if name == "" {
		return nil
	}
	return r.providers[name]
}

// SetDefault makes name the default provider. Returns false when name is not
// registered.
func (r *Registry) SetDefault(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		r.log.Error("cannot set default, provider not registered", zap.String("provider", name))
		return false
	}
	r.defaultName = name
	r.log.Info("default provider set", zap.String("provider", name))
	return true
}

// Default returns the current default provider name, empty when none.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// List returns the registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// Unregister removes a provider. When the removed provider was the default,
// a new default is chosen arbitrarily from the remaining set; callers must
// not rely on which one.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return false
	}
	delete(r.providers, name)

	if r.defaultName == name {
		r.defaultName = ""
		for remaining := range r.providers {
			r.defaultName = remaining
			break
		}
	}

	r.log.Info("provider unregistered", zap.String("provider", name))
	return true
}

// InitializeAll runs every registered provider's Initialize concurrently and
// reports per-name success. One provider failing never aborts the others.
func (r *Registry) InitializeAll(ctx context.Context, configs map[string]map[string]string) map[string]bool {
	r.mu.RLock()
	providers := make(map[string]Provider, len(r.providers))
	for name, p := range r.providers {
		providers[name] = p
	}
	r.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]bool, len(providers))
	)

	for name, p := range providers {
		wg.Add(1)
		go func(name string, p Provider) {
			defer wg.Done()

			err := p.Initialize(ctx, configs[name])
			if err != nil {
				r.log.Error("provider initialization failed",
					zap.String("provider", name),
					zap.Error(err),
				)
			} else {
				r.log.Info("provider initialized", zap.String("provider", name))
			}

			mu.Lock()
			results[name] = err == nil
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()

	return results
}
