package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/catalog-deployer/internal/services"
	"github.com/savaki/catalog-deployer/internal/targets"
	"github.com/urfave/cli/v2"
)

// TargetsCommand returns the targets command for inspecting deployment targets
func TargetsCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "targets",
		Aliases: []string{"t"},
		Usage:   "Inspect configured deployment targets",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List deployment targets",
				Action: func(c *cli.Context) error {
					return listTargetsAction(c, logger)
				},
			},
			{
				Name:  "check",
				Usage: "Verify each target's account and build project are reachable",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Check only the named target",
					},
				},
				Action: func(c *cli.Context) error {
					return checkTargetsAction(c, logger)
				},
			},
		},
	}
}

func loadRegistry(c *cli.Context, logger *zerolog.Logger) (*targets.Registry, error) {
	tt, err := flagTargets(c)
	if err != nil {
		return nil, err
	}
	if len(tt) > 0 {
		return targets.NewRegistry(tt...)
	}

	container, err := newContainer(c, logger)
	if err != nil {
		return nil, err
	}
	return get[*targets.Registry](container)
}

func listTargetsAction(c *cli.Context, logger *zerolog.Logger) error {
	registry, err := loadRegistry(c, logger)
	if err != nil {
		return err
	}
	return printJSON(registry.Targets())
}

func checkTargetsAction(c *cli.Context, logger *zerolog.Logger) error {
	registry, err := loadRegistry(c, logger)
	if err != nil {
		return err
	}

	tt := registry.Targets()
	if name := c.String("name"); name != "" {
		target, ok := registry.Find(name)
		if !ok {
			return fmt.Errorf("target %q not found", name)
		}
		tt = []targets.Target{target}
	}

	container, err := newContainer(c, logger)
	if err != nil {
		return err
	}
	factory, err := get[*services.CodeBuildClientFactory](container)
	if err != nil {
		return err
	}

	var failed int
	for _, target := range tt {
		if err := factory.CheckTarget(c.Context, target); err != nil {
			failed++
			logger.Error().
				Err(err).
				Str("target", target.Name).
				Str("account_id", target.AccountID).
				Str("region", target.Region).
				Msg("Target check failed")
			continue
		}
		logger.Info().
			Str("target", target.Name).
			Str("project", target.ProjectName).
			Msg("Target ok")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(tt))
	}
	return nil
}
