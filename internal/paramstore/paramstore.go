// Package paramstore persists per-entity build parameters and source configuration
// in AWS Systems Manager Parameter Store.
//
// Keys are namespaced by entity identity:
//
//	<prefix>/<kind>/<namespace>/<name>/build-parameters
//	<prefix>/<kind>/<namespace>/<name>/source-config
//
// Every segment is lower-cased, so the same entity always maps to the same key.
// Values are JSON documents stored as SecureString parameters.
package paramstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rs/zerolog"
	"github.com/savaki/catalog-deployer/internal/catalog"
	"github.com/savaki/catalog-deployer/internal/errors"
)

const (
	DefaultPrefix = "/catalog-deployer"

	suffixBuildParameters = "build-parameters"
	suffixSourceConfig    = "source-config"
)

// SSMAPI is the subset of the SSM client used by the gateway
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// EnvironmentVariable is a single name/value pair passed to a build
type EnvironmentVariable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SourceType names the provider a build pulls its source from
type SourceType string

const (
	SourceTypeGitHub        SourceType = "GITHUB"
	SourceTypeObjectStorage SourceType = "S3"
	SourceTypeNone          SourceType = "NO_SOURCE"
)

// SourceConfig describes what source artifact a build should fetch. When
// UseEntityAssets is set the remaining fields are re-derived from the entity at
// build time.
type SourceConfig struct {
	UseEntityAssets bool        `json:"useEntityAssets"`
	SourceType      *SourceType `json:"sourceType,omitempty"`
	SourceLocation  *string     `json:"sourceLocation,omitempty"`
	SourceVersion   *string     `json:"sourceVersion,omitempty"`
}

// Gateway reads and writes entity-scoped build configuration
type Gateway struct {
	client SSMAPI
	prefix string
}

// New returns a Gateway writing under prefix. An empty prefix uses DefaultPrefix.
func New(client SSMAPI, prefix string) *Gateway {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Gateway{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
	}
}

// Key returns the parameter name for an entity and suffix
func (g *Gateway) Key(ref catalog.Ref, suffix string) string {
	namespace := ref.Namespace
	if namespace == "" {
		namespace = catalog.DefaultNamespace
	}
	key := strings.Join([]string{g.prefix, ref.Kind, namespace, ref.Name, suffix}, "/")
	return strings.ToLower(key)
}

// GetBuildParameters returns the stored environment variables for an entity
func (g *Gateway) GetBuildParameters(ctx context.Context, ref catalog.Ref) ([]EnvironmentVariable, error) {
	var vars []EnvironmentVariable
	if err := g.get(ctx, g.Key(ref, suffixBuildParameters), &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// PutBuildParameters overwrites the stored environment variables for an entity
func (g *Gateway) PutBuildParameters(ctx context.Context, ref catalog.Ref, vars []EnvironmentVariable) error {
	if vars == nil {
		vars = []EnvironmentVariable{}
	}
	return g.put(ctx, g.Key(ref, suffixBuildParameters), vars)
}

// GetSourceConfig returns the stored source configuration for an entity
func (g *Gateway) GetSourceConfig(ctx context.Context, ref catalog.Ref) (SourceConfig, error) {
	var cfg SourceConfig
	if err := g.get(ctx, g.Key(ref, suffixSourceConfig), &cfg); err != nil {
		return SourceConfig{}, err
	}
	return cfg, nil
}

// PutSourceConfig overwrites the stored source configuration for an entity
func (g *Gateway) PutSourceConfig(ctx context.Context, ref catalog.Ref, cfg SourceConfig) error {
	return g.put(ctx, g.Key(ref, suffixSourceConfig), cfg)
}

func (g *Gateway) get(ctx context.Context, key string, v any) error {
	logger := zerolog.Ctx(ctx)

	result, err := g.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(key),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("Failed to read parameter")

		var notFound *types.ParameterNotFound
		if stderrors.As(err, &notFound) {
			return fmt.Errorf("%w %s: %w", errors.ErrStoreRetrieve, key, errors.ErrNotFound)
		}
		return fmt.Errorf("%w %s", errors.ErrStoreRetrieve, key)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		logger.Error().Str("key", key).Msg("Parameter has no value")
		return fmt.Errorf("%w %s: %w", errors.ErrStoreRetrieve, key, errors.ErrNotFound)
	}

	if err := json.Unmarshal([]byte(*result.Parameter.Value), v); err != nil {
		logger.Error().Err(err).Str("key", key).Msg("Failed to decode parameter")
		return fmt.Errorf("%w %s: invalid json", errors.ErrStoreRetrieve, key)
	}

	return nil
}

func (g *Gateway) put(ctx context.Context, key string, v any) error {
	logger := zerolog.Ctx(ctx)

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w %s: %w", errors.ErrStoreWrite, key, err)
	}

	_, err = g.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(key),
		Value:     aws.String(string(data)),
		Type:      types.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("Failed to write parameter")
		return fmt.Errorf("%w %s", errors.ErrStoreWrite, key)
	}

	logger.Debug().Str("key", key).Msg("Stored parameter")
	return nil
}
