package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/joho/godotenv"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/savaki/catalog-deployer/internal/catalog"
	"github.com/savaki/catalog-deployer/internal/di"
	"github.com/savaki/catalog-deployer/internal/metrics"
	"github.com/savaki/catalog-deployer/internal/orchestrator"
	"github.com/savaki/catalog-deployer/internal/paramstore"
	"github.com/urfave/cli/v2"
)

func NewHandler(container di.Container) *Handler {
	h := &Handler{
		builds:  di.MustGet[*orchestrator.Orchestrator](container),
		store:   di.MustGet[*paramstore.Gateway](container),
		metrics: metrics.HTTPHandler(di.MustGet[*prom.Registry](container)),
	}
	if client := di.MustGet[*catalog.Client](container); client != nil {
		h.entities = client
	}
	return h
}

func setupContainer(env string) (di.Container, error) {
	return di.New(env,
		di.WithProviders(
			di.ProvideLogger,
		),
	)
}

func newHTTPHandler(env string) (http.Handler, zerolog.Logger, error) {
	container, err := setupContainer(env)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to setup DI container: %w", err)
	}

	logger := di.MustGet[zerolog.Logger](container)
	router := NewHandler(container).setupRouter()

	// strip env prefix -> logging
	return loggingMiddleware(logger)(stripEnvPrefixMiddleware(env, router)), logger, nil
}

// serveAction starts a local HTTP server
func serveAction(c *cli.Context) error {
	addr := fmt.Sprintf(":%s", c.String("port"))
	env := c.String("env")

	handler, logger, err := newHTTPHandler(env)
	if err != nil {
		return err
	}

	logger.Info().
		Str("addr", addr).
		Str("env", env).
		Msg("Starting HTTP server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-c.Context.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "server").Logger()

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = os.Getenv("ENVIRONMENT")
		}
		if env == "" {
			logger.Error().Msg("ENV or ENVIRONMENT variable is required")
			os.Exit(1)
		}

		logger.Info().Str("env", env).Msg("Initializing Lambda handler")

		handler, _, err := newHTTPHandler(env)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to initialize handler")
			os.Exit(1)
		}

		// API Gateway V2 payloads
		lambda.Start(httpadapter.NewV2(handler).ProxyWithContext)
		return
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Msg("Failed to load .env file")
	}

	app := &cli.App{
		Name:  "server",
		Usage: "Catalog deployer build API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name (for stripping path prefix and loading configuration)",
				EnvVars: []string{"ENV", "ENVIRONMENT"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start local HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "port",
						Usage: "Port to listen on",
						Value: "8080",
					},
				},
				Action: serveAction,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(logger.WithContext(ctx), os.Args); err != nil {
		stop()
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
