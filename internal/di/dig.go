// Package di provides a lightweight wrapper around uber's dig dependency injection framework.
// It simplifies container setup and provides type-safe dependency retrieval with generics.
package di

import (
	"go.uber.org/dig"
)

// Container defines a dependency injection container based on uber's dig.
// This interface allows for easy testing and mocking of the DI container.
type Container interface {
	// Invoke executes a function, injecting its dependencies from the container.
	Invoke(function any, opts ...dig.InvokeOption) error

	// Provide registers a constructor function in the container.
	Provide(constructor any, opts ...dig.ProvideOption) error

	// Scope creates a scoped sub-container with its own set of values.
	Scope(name string, opts ...dig.ScopeOption) *dig.Scope
}

// MustGet returns an instance constructed via dependency injection or panics.
//
// Example:
//
//	o := MustGet[*orchestrator.Orchestrator](container)
func MustGet[T any](container Container) (want T) {
	callback := func(got T) {
		want = got
	}
	if err := container.Invoke(callback); err != nil {
		panic(err)
	}
	return want
}

// New creates a new dependency injection container for the given environment.
// The environment string is registered as a string dependency and the targets
// passed with WithTargets as a Targets dependency.
//
// The logger is not part of the core set; callers supply it, usually with
// WithProviders(ProvideLogger).
func New(env string, opts ...Option) (Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	container := dig.New()
	if err := container.Provide(func() string { return env }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() Targets { return o.targets }); err != nil {
		return nil, err
	}

	for _, provider := range core {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	for _, provider := range o.providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	return container, nil
}

var core = []any{
	ProvideContext,
	ProvideAWSConfig,
	ProvideSSMClient,
	ProvideParameterStore,
	ProvideAppConfig,
	ProvideDynamoDB,
	ProvideS3Client,
	ProvideSecretsManager,
	ProvideCodeBuildClientFactory,
	ProvideGateway,
	ProvideRegistry,
	ProvideURLReader,
	ProvideBuildspecResolver,
	ProvideSourceResolver,
	ProvideLeaseDAO,
	ProvideMetrics,
	ProvideOrchestrator,
	ProvideCatalogClient,
}
