package commands

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"
	"github.com/savaki/catalog-deployer/internal/models"
	"github.com/savaki/catalog-deployer/internal/orchestrator"
	"github.com/urfave/cli/v2"
)

// BuildCommand returns the build command for starting and listing entity builds
func BuildCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "build",
		Aliases: []string{"b"},
		Usage:   "Start or list builds for an entity",
		Subcommands: []*cli.Command{
			{
				Name:      "start",
				Usage:     "Start a build",
				ArgsUsage: "<entity-ref>",
				Description: `Start a deploy, update or teardown build.

Examples:
  catalog-deployer build start component:default/demo
  catalog-deployer build start --action teardown -f catalog-info.yaml`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "action",
						Aliases: []string{"a"},
						Usage:   "deploy, update or teardown",
						Value:   string(models.ActionDeploy),
					},
					entityFileFlag,
				},
				Action: func(c *cli.Context) error {
					return startBuildAction(c, logger)
				},
			},
			{
				Name:      "list",
				Aliases:   []string{"ls"},
				Usage:     "List recent builds submitted for an entity",
				ArgsUsage: "<entity-ref>",
				Flags:     []cli.Flag{entityFileFlag},
				Action: func(c *cli.Context) error {
					return listBuildsAction(c, logger)
				},
			},
		},
	}
}

// ProjectCommand returns the project command
func ProjectCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "project",
		Usage: "Inspect the build project an entity's target uses",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Describe the build project",
				ArgsUsage: "<entity-ref>",
				Flags:     []cli.Flag{entityFileFlag},
				Action: func(c *cli.Context) error {
					container, err := newContainer(c, logger)
					if err != nil {
						return err
					}
					o, err := get[*orchestrator.Orchestrator](container)
					if err != nil {
						return err
					}
					entity, err := loadEntity(c, container)
					if err != nil {
						return err
					}
					project, err := o.GetProject(c.Context, entity)
					if err != nil {
						return err
					}
					return printJSON(project)
				},
			},
		},
	}
}

func startBuildAction(c *cli.Context, logger *zerolog.Logger) error {
	action, err := models.ParseAction(c.String("action"))
	if err != nil {
		return err
	}

	container, err := newContainer(c, logger)
	if err != nil {
		return err
	}

	o, err := get[*orchestrator.Orchestrator](container)
	if err != nil {
		return err
	}

	entity, err := loadEntity(c, container)
	if err != nil {
		return err
	}

	result, err := o.StartBuild(c.Context, entity, action)
	if err != nil {
		return err
	}

	if result.Build == nil {
		logger.Info().
			Str("entity_ref", entity.Ref().String()).
			Str("action", action.String()).
			Msg("Nothing to build, no build definition found")
		return nil
	}

	logger.Info().
		Str("entity_ref", entity.Ref().String()).
		Str("build_id", aws.ToString(result.Build.Id)).
		Msg("Build started")

	return printJSON(result)
}

func listBuildsAction(c *cli.Context, logger *zerolog.Logger) error {
	container, err := newContainer(c, logger)
	if err != nil {
		return err
	}

	o, err := get[*orchestrator.Orchestrator](container)
	if err != nil {
		return err
	}

	entity, err := loadEntity(c, container)
	if err != nil {
		return err
	}

	builds, err := o.GetBuilds(c.Context, entity)
	if err != nil {
		return err
	}

	return printJSON(builds)
}
