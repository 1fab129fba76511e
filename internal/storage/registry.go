// internal/storage/registry.go
package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"loan-origination/internal/common/logger"
)

// Constructor builds a backend from the storage environment.
type Constructor func(ctx context.Context, e Env) (Provider, error)

var infraProviders = map[string]ProviderName{
	"GCP":   ProviderGCS,
	"AWS":   ProviderAWSS3,
	"AZURE": ProviderAzureBlob,
}

// ResolveProviderName picks the backend from an explicit name, falling back to
// the INFRA_PROVIDER value (AWS, Azure or GCP, case-insensitive).
func ResolveProviderName(explicit ProviderName, infraProvider string) (ProviderName, error) {
	if explicit != "" {
		switch explicit {
		case ProviderAWSS3, ProviderAzureBlob, ProviderGCS:
			return explicit, nil
		}
		return "", fmt.Errorf("Unknown storage provider: %s", explicit)
	}
	if infraProvider == "" {
		return "", fmt.Errorf("Unknown storage provider")
	}
	name, ok := infraProviders[strings.ToUpper(infraProvider)]
	if !ok {
		return "", fmt.Errorf("Unknown infra provider: %s", infraProvider)
	}
	return name, nil
}

// Registry memoizes one Provider per backend kind for the process lifetime.
type Registry struct {
	mu           sync.Mutex
	env          Env
	instances    map[ProviderName]Provider
	constructors map[ProviderName]Constructor
	wrap         func(Provider) Provider
	logger       logger.Logger
}

type RegistryOption func(*Registry)

// WithConstructor replaces the constructor for a backend kind.
func WithConstructor(name ProviderName, c Constructor) RegistryOption {
	return func(r *Registry) { r.constructors[name] = c }
}

// WithWrapper decorates every provider once, when it is first built.
func WithWrapper(wrap func(Provider) Provider) RegistryOption {
	return func(r *Registry) { r.wrap = wrap }
}

func NewRegistry(e Env, log logger.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		env:       e,
		instances: make(map[ProviderName]Provider),
		constructors: map[ProviderName]Constructor{
			ProviderAWSS3: func(ctx context.Context, e Env) (Provider, error) {
				return NewS3Provider(ctx, e)
			},
			ProviderAzureBlob: func(ctx context.Context, e Env) (Provider, error) {
				return NewAzureBlobProvider(ctx, e)
			},
			ProviderGCS: func(ctx context.Context, e Env) (Provider, error) {
				return NewGCSProvider(ctx, e)
			},
		},
		logger: log.WithFields(map[string]interface{}{"component": "storage"}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the memoized provider for name, or for INFRA_PROVIDER when name
// is empty. Construction happens under the lock so concurrent first calls
// observe the same instance. A failed construction is not cached.
func (r *Registry) Get(ctx context.Context, name ProviderName) (Provider, error) {
	resolved, err := ResolveProviderName(name, r.env.InfraProvider)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.instances[resolved]; ok {
		return p, nil
	}

	build, ok := r.constructors[resolved]
	if !ok {
		return nil, fmt.Errorf("Unknown storage provider: %s", resolved)
	}

	p, err := build(ctx, r.env)
	if err != nil {
		r.logger.Error("storage provider construction failed", map[string]interface{}{
			"provider": string(resolved),
			"error":    err.Error(),
		})
		return nil, err
	}
	if r.wrap != nil {
		p = r.wrap(p)
	}

	r.instances[resolved] = p
	r.logger.Info("storage provider initialized", map[string]interface{}{"provider": string(resolved)})
	return p, nil
}

// Default returns the provider selected by the environment.
func (r *Registry) Default(ctx context.Context) (Provider, error) {
	return r.Get(ctx, "")
}
