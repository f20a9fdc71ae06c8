package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/savaki/catalog-deployer/internal/buildspec"
	"github.com/savaki/catalog-deployer/internal/catalog"
	"github.com/savaki/catalog-deployer/internal/dao/lockdao"
	"github.com/savaki/catalog-deployer/internal/metrics"
	"github.com/savaki/catalog-deployer/internal/orchestrator"
	"github.com/savaki/catalog-deployer/internal/paramstore"
	"github.com/savaki/catalog-deployer/internal/services"
	"github.com/savaki/catalog-deployer/internal/sources"
	"github.com/savaki/catalog-deployer/internal/targets"
)

// ProvideRegistry builds the deployment target registry from explicitly
// supplied targets, or else from the configured targets file
func ProvideRegistry(ctx context.Context, config *services.Config, tt Targets) (*targets.Registry, error) {
	logger := zerolog.Ctx(ctx)

	if len(tt) > 0 {
		return targets.NewRegistry(tt...)
	}

	if config.TargetsFile == "" {
		return nil, fmt.Errorf("no deployment targets configured, set TARGETS_FILE or pass targets explicitly")
	}

	registry, err := targets.Load(config.TargetsFile)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("targets_file", config.TargetsFile).
		Int("count", len(registry.Targets())).
		Msg("Loaded deployment targets")

	return registry, nil
}

// ProvideURLReader returns the reader used to fetch build definitions
func ProvideURLReader(s3Client *s3.Client, secrets *services.SecretsManagerService, config *services.Config) *services.URLReader {
	return services.NewURLReader(
		services.NewGitHubReader(services.WithGitHubToken(secrets, config.GitHubTokenSecret)),
		services.NewS3Reader(s3Client),
		services.NewHTTPReader(nil),
	)
}

func ProvideBuildspecResolver(reader *services.URLReader) *buildspec.Resolver {
	return buildspec.New(reader, nil)
}

func ProvideSourceResolver(gateway *paramstore.Gateway) *sources.Resolver {
	return sources.New(gateway)
}

// ProvideMetrics returns the metrics registry and a recorder registered with it
func ProvideMetrics() (*prom.Registry, metrics.Recorder) {
	reg := prom.NewRegistry()
	return reg, metrics.NewPrometheusRecorder(reg)
}

func ProvideOrchestrator(
	factory *services.CodeBuildClientFactory,
	registry *targets.Registry,
	buildspecs *buildspec.Resolver,
	gateway *paramstore.Gateway,
	sourceResolver *sources.Resolver,
	leases *lockdao.DAO,
	recorder metrics.Recorder,
) *orchestrator.Orchestrator {
	cfg := orchestrator.Config{
		Clients:    factory,
		Targets:    registry,
		Buildspecs: buildspecs,
		Parameters: gateway,
		Sources:    sourceResolver,
		Metrics:    recorder,
	}
	if leases != nil {
		cfg.Leaser = leases
	}
	return orchestrator.New(cfg)
}

// ProvideCatalogClient returns a client for the configured catalog, or nil
// when no catalog url is set
func ProvideCatalogClient(config *services.Config) *catalog.Client {
	if config.CatalogURL == "" {
		return nil
	}
	return catalog.NewClient(config.CatalogURL, config.CatalogToken)
}
