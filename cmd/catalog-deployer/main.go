package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/savaki/catalog-deployer/cmd/catalog-deployer/commands"
	"github.com/savaki/catalog-deployer/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Msg("Failed to load .env file")
	}

	app := &cli.App{
		Name:  "catalog-deployer",
		Usage: "Start and inspect CodeBuild builds for catalog entities",
		Description: `Builds are resolved from the entity's annotations:

  catalog-deployer.io/target                   deployment target name
  catalog-deployer.io/{deploy,update,teardown}-buildspec
                                               build definition path overrides
  backstage.io/source-location                 where the entity's source lives

Entities are read from the catalog (--catalog-url) or from a local descriptor
(--entity-file).`,
		Flags: commands.GlobalFlags(),
		Commands: []*cli.Command{
			commands.BuildCommand(&logger),
			commands.ProjectCommand(&logger),
			commands.ParamsCommand(&logger),
			commands.SourceConfigCommand(&logger),
			commands.TargetsCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
