package integrations

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"tutorbot-backend/internal/config"
	"tutorbot-backend/internal/models"
)

// ModelProvider generates one completion from a conversation window.
type ModelProvider interface {
	Complete(ctx context.Context, history []models.Message, systemPrompt string, opts models.GenerationOptions) (string, error)
	Name() string
}

// ProviderFactory builds a provider from the loaded configuration.
type ProviderFactory func(ctx context.Context, cfg *config.Config) (ModelProvider, error)

// Registry holds the mapping between provider names and their factories.
type Registry struct {
	factories map[string]ProviderFactory
	log       zerolog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]ProviderFactory),
		log:       logger.With().Str("component", "ProviderRegistry").Logger(),
	}
}

// DefaultRegistry returns a registry with every built-in provider.
func DefaultRegistry(logger zerolog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(ProviderGemini, NewGeminiProvider)
	r.Register(ProviderOllama, NewOllamaProvider)
	return r
}

// Register adds a provider factory. Registering a name twice overwrites it.
func (r *Registry) Register(name string, factory ProviderFactory) {
	if _, exists := r.factories[name]; exists {
		r.log.Warn().Str("provider", name).Msg("provider already registered, overwriting")
	}
	r.factories[name] = factory
	r.log.Debug().Str("provider", name).Msg("registered model provider")
}

// Build constructs the named provider.
func (r *Registry) Build(ctx context.Context, name string, cfg *config.Config) (ModelProvider, error) {
	factory, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("no model provider registered under %q (known: %v)", name, r.Names())
	}
	p, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("building model provider %q: %w", name, err)
	}
	return p, nil
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
