package di

import "github.com/savaki/catalog-deployer/internal/targets"

// Targets are deployment targets supplied directly rather than loaded from the
// configured targets file
type Targets []targets.Target

// Option is a function that configures the dependency injection container.
type Option func(*options)

// WithTargets registers deployment targets, taking precedence over the targets file
func WithTargets(tt ...targets.Target) Option {
	return func(opts *options) {
		opts.targets = append(opts.targets, tt...)
	}
}

// WithProviders adds constructor functions to the dependency injection container.
// Each provider should be a constructor function that returns one or more values.
// Providers can declare dependencies as function parameters, which will be
// automatically resolved by the container.
//
// Example:
//
//	WithProviders(
//	    ProvideLogger,
//	    func(o *orchestrator.Orchestrator) *Handler { return &Handler{o: o} },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	targets   Targets
	providers []any
}
