// Package buildspec resolves which build definition document an entity uses for
// an action and fetches its content from the entity's source.
package buildspec

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/catalog-deployer/internal/catalog"
	"github.com/savaki/catalog-deployer/internal/errors"
	"github.com/savaki/catalog-deployer/internal/models"
	"github.com/savaki/catalog-deployer/internal/scm"
)

// Default build definition paths, relative to the entity's source root
const (
	DefaultDeployPath   = "buildspec.yml"
	DefaultUpdatePath   = "buildspec-update.yml"
	DefaultTeardownPath = "buildspec-teardown.yml"
)

type location struct {
	annotation  string
	defaultPath string
}

var locations = map[models.Action]location{
	models.ActionDeploy:   {annotation: catalog.AnnotationDeployBuildspec, defaultPath: DefaultDeployPath},
	models.ActionUpdate:   {annotation: catalog.AnnotationUpdateBuildspec, defaultPath: DefaultUpdatePath},
	models.ActionTeardown: {annotation: catalog.AnnotationTeardownBuildspec, defaultPath: DefaultTeardownPath},
}

// SourceReader reads the content at a resolved location. Implementations report
// missing content with errors.ErrNotFound.
type SourceReader interface {
	ReadURL(ctx context.Context, url string) ([]byte, error)
}

// LocationResolver resolves a relative reference against a base location
type LocationResolver interface {
	ResolveURL(relative, base string) (string, error)
}

// LocationResolverFunc adapts a function to LocationResolver
type LocationResolverFunc func(relative, base string) (string, error)

func (fn LocationResolverFunc) ResolveURL(relative, base string) (string, error) {
	return fn(relative, base)
}

// Resolver finds and fetches build definitions
type Resolver struct {
	reader   SourceReader
	resolver LocationResolver
}

// New returns a Resolver. A nil resolver uses scm.ResolveURL.
func New(reader SourceReader, resolver LocationResolver) *Resolver {
	if resolver == nil {
		resolver = LocationResolverFunc(scm.ResolveURL)
	}
	return &Resolver{
		reader:   reader,
		resolver: resolver,
	}
}

// Path returns the build definition path for action: the entity's annotation
// when set, else the action's default.
func Path(action models.Action, entity catalog.Entity) (string, error) {
	loc, ok := locations[action]
	if !ok {
		return "", errors.NewInputError("unknown action %q", action)
	}
	if p, ok := entity.Annotation(loc.annotation); ok {
		return p, nil
	}
	return loc.defaultPath, nil
}

// SourceRoot returns the location the entity's source lives at, with any
// location type marker removed.
func SourceRoot(entity catalog.Entity) (string, error) {
	for _, key := range []string{catalog.AnnotationSourceLocation, catalog.AnnotationManagedByLocation} {
		if v, ok := entity.Annotation(key); ok {
			return scm.StripLocationType(v), nil
		}
	}
	return "", errors.NewInputError("entity %s has no %s annotation", entity.Ref(), catalog.AnnotationSourceLocation)
}

// Resolve returns the build definition content for action. found is false, with
// a nil error, when the definition does not exist at its resolved location.
func (r *Resolver) Resolve(ctx context.Context, action models.Action, entity catalog.Entity) (content string, found bool, err error) {
	logger := zerolog.Ctx(ctx)

	p, err := Path(action, entity)
	if err != nil {
		return "", false, err
	}

	root, err := SourceRoot(entity)
	if err != nil {
		return "", false, err
	}

	url, err := r.resolver.ResolveURL(p, root)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve build definition %s: %w", p, err)
	}

	data, err := r.reader.ReadURL(ctx, url)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			logger.Info().
				Str("entity_ref", entity.Ref().String()).
				Str("action", action.String()).
				Str("location", url).
				Msg("No build definition found")
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read build definition %s: %w", url, err)
	}

	logger.Debug().
		Str("entity_ref", entity.Ref().String()).
		Str("action", action.String()).
		Str("location", url).
		Int("bytes", len(data)).
		Msg("Resolved build definition")

	return string(data), true, nil
}
