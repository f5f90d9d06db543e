package providers

import (
	"context"
	"fmt"
	"net/http"

	"aidispatch/internal/domain"
	"aidispatch/internal/imageref"
	"aidispatch/internal/infra"
	"aidispatch/internal/providers/clipdrop"
	"aidispatch/internal/providers/gemini"
	"aidispatch/internal/providers/replicate"
	"aidispatch/internal/providers/runway"
	"aidispatch/internal/providers/stability"
)

// Config carries the credentials and shared collaborators for all vendors.
type Config struct {
	ReplicateToken string
	StabilityToken string
	GeminiAPIKey   string
	GeminiModel    string
	RunwayToken    string
	ResizeURL      string
	HTTPClient     *http.Client
	Logger         *infra.Logger
}

// Registry holds one long-lived instance per provider.
type Registry struct {
	providers map[domain.ProviderName]AIProvider
}

// NewRegistry constructs every provider once from cfg.
func NewRegistry(ctx context.Context, cfg Config) (*Registry, error) {
	resolver := imageref.NewResolver(cfg.HTTPClient)
	gem, err := gemini.NewClient(ctx, gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		Model:      cfg.GeminiModel,
		HTTPClient: cfg.HTTPClient,
		Resolver:   resolver,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}
	return NewRegistryWith(map[domain.ProviderName]AIProvider{
		domain.ProviderReplicate: replicate.NewClient(replicate.Options{
			APIToken:   cfg.ReplicateToken,
			HTTPClient: cfg.HTTPClient,
			Logger:     cfg.Logger,
		}),
		domain.ProviderStability: stability.NewClient(stability.Options{
			APIToken:   cfg.StabilityToken,
			ResizeURL:  cfg.ResizeURL,
			HTTPClient: cfg.HTTPClient,
			Resolver:   resolver,
			Logger:     cfg.Logger,
		}),
		domain.ProviderGemini: gem,
		domain.ProviderRunway: runway.NewClient(runway.Options{
			APIToken:   cfg.RunwayToken,
			HTTPClient: cfg.HTTPClient,
			Logger:     cfg.Logger,
		}),
		domain.ProviderClipDrop: clipdrop.NewClient(clipdrop.Options{}),
	}), nil
}

// NewRegistryWith wraps prebuilt providers; tests use it to inject fakes.
func NewRegistryWith(providers map[domain.ProviderName]AIProvider) *Registry {
	copied := make(map[domain.ProviderName]AIProvider, len(providers))
	for name, p := range providers {
		copied[name] = p
	}
	return &Registry{providers: copied}
}

// Provider resolves name to its instance. An empty name selects the default
// provider; any name outside the closed set fails with ErrUnknownProvider.
func (r *Registry) Provider(name string) (AIProvider, error) {
	if name == "" {
		name = string(domain.DefaultProvider)
	}
	key, ok := domain.ParseProvider(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, name)
	}
	p, ok := r.providers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", domain.ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lists registered providers in canonical order.
func (r *Registry) Names() []domain.ProviderName {
	names := make([]domain.ProviderName, 0, len(r.providers))
	for _, p := range domain.Providers {
		if _, ok := r.providers[p]; ok {
			names = append(names, p)
		}
	}
	return names
}
