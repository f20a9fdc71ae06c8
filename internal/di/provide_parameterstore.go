package di

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"
	"github.com/savaki/catalog-deployer/internal/paramstore"
	"github.com/savaki/catalog-deployer/internal/services"
)

// ProvideSSMClient provides an SSM client for Parameter Store access
func ProvideSSMClient(awsConfig aws.Config) *ssm.Client {
	return ssm.NewFromConfig(awsConfig)
}

// ProvideParameterStore provides the application configuration source.
// Uses SSM Parameter Store in AWS, falls back to environment variables when
// DISABLE_SSM is set for local development.
func ProvideParameterStore(ctx context.Context, ssmClient *ssm.Client, env string) services.ParameterStore {
	logger := zerolog.Ctx(ctx)

	if os.Getenv("DISABLE_SSM") == "true" {
		logger.Info().Msg("Using environment variables for configuration (SSM disabled)")
		return services.NewEnvParameterStore(env)
	}

	logger.Info().Msg("Using AWS Systems Manager Parameter Store for configuration")
	return services.NewSSMParameterStore(ssmClient, env)
}

// ProvideAppConfig loads application configuration from Parameter Store or environment variables
func ProvideAppConfig(ctx context.Context, store services.ParameterStore) (*services.Config, error) {
	logger := zerolog.Ctx(ctx)

	config, err := store.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Info().
		Str("parameter_prefix", config.ParameterPrefix).
		Str("targets_file", config.TargetsFile).
		Bool("has_catalog_url", config.CatalogURL != "").
		Bool("has_lock_table", config.LockTable != "").
		Msg("Configuration loaded successfully")

	return config, nil
}

// ProvideGateway provides the store for per-entity build parameters and source config
func ProvideGateway(ssmClient *ssm.Client, config *services.Config) *paramstore.Gateway {
	return paramstore.New(ssmClient, config.ParameterPrefix)
}
