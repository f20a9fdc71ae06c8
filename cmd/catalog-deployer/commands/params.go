package commands

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"
	"github.com/savaki/catalog-deployer/internal/paramstore"
	"github.com/urfave/cli/v2"
)

// ParamsCommand returns the params command for an entity's stored build parameters
func ParamsCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "params",
		Aliases: []string{"p"},
		Usage:   "Read or replace an entity's stored build parameters",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print the stored build parameters",
				ArgsUsage: "<entity-ref>",
				Action: func(c *cli.Context) error {
					return getParamsAction(c, logger)
				},
			},
			{
				Name:      "set",
				Usage:     "Replace the stored build parameters",
				ArgsUsage: "<entity-ref>",
				Description: `Replace all stored parameters with the given values.

Example:
  catalog-deployer params set component:default/demo --var STAGE=prod --var REPLICAS=2`,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "var",
						Aliases: []string{"v"},
						Usage:   "NAME=VALUE, may be repeated",
					},
				},
				Action: func(c *cli.Context) error {
					return setParamsAction(c, logger)
				},
			},
		},
	}
}

// SourceConfigCommand returns the source-config command
func SourceConfigCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "source-config",
		Usage: "Read or replace an entity's stored source configuration",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print the stored source configuration",
				ArgsUsage: "<entity-ref>",
				Action: func(c *cli.Context) error {
					return getSourceConfigAction(c, logger)
				},
			},
			{
				Name:      "set",
				Usage:     "Replace the stored source configuration",
				ArgsUsage: "<entity-ref>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "use-entity-assets",
						Usage: "Derive source from the entity's source-location annotation at build time",
					},
					&cli.StringFlag{
						Name:  "source-type",
						Usage: "GITHUB, S3 or NO_SOURCE",
					},
					&cli.StringFlag{
						Name:  "source-location",
						Usage: "Repository URL or bucket/key",
					},
					&cli.StringFlag{
						Name:  "source-version",
						Usage: "Branch, tag, commit or object version",
					},
				},
				Action: func(c *cli.Context) error {
					return setSourceConfigAction(c, logger)
				},
			},
		},
	}
}

func gatewayFor(c *cli.Context, logger *zerolog.Logger) (*paramstore.Gateway, error) {
	container, err := newContainer(c, logger)
	if err != nil {
		return nil, err
	}
	return get[*paramstore.Gateway](container)
}

func getParamsAction(c *cli.Context, logger *zerolog.Logger) error {
	ref, err := parseRef(c)
	if err != nil {
		return err
	}

	gateway, err := gatewayFor(c, logger)
	if err != nil {
		return err
	}

	vars, err := gateway.GetBuildParameters(c.Context, ref)
	if err != nil {
		return err
	}
	if vars == nil {
		vars = []paramstore.EnvironmentVariable{}
	}
	return printJSON(vars)
}

func setParamsAction(c *cli.Context, logger *zerolog.Logger) error {
	ref, err := parseRef(c)
	if err != nil {
		return err
	}

	vars, err := parseVars(c.StringSlice("var"))
	if err != nil {
		return err
	}

	gateway, err := gatewayFor(c, logger)
	if err != nil {
		return err
	}

	if err := gateway.PutBuildParameters(c.Context, ref, vars); err != nil {
		return err
	}

	logger.Info().
		Str("entity_ref", ref.String()).
		Int("count", len(vars)).
		Msg("Build parameters saved")
	return nil
}

// parseVars converts NAME=VALUE pairs. Later duplicates replace earlier ones.
func parseVars(pairs []string) ([]paramstore.EnvironmentVariable, error) {
	vars := make([]paramstore.EnvironmentVariable, 0, len(pairs))
	index := map[string]int{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid variable %q, expected NAME=VALUE", pair)
		}
		if i, found := index[name]; found {
			vars[i].Value = value
			continue
		}
		index[name] = len(vars)
		vars = append(vars, paramstore.EnvironmentVariable{Name: name, Value: value})
	}
	return vars, nil
}

func getSourceConfigAction(c *cli.Context, logger *zerolog.Logger) error {
	ref, err := parseRef(c)
	if err != nil {
		return err
	}

	gateway, err := gatewayFor(c, logger)
	if err != nil {
		return err
	}

	cfg, err := gateway.GetSourceConfig(c.Context, ref)
	if err != nil {
		return err
	}
	return printJSON(cfg)
}

func setSourceConfigAction(c *cli.Context, logger *zerolog.Logger) error {
	ref, err := parseRef(c)
	if err != nil {
		return err
	}

	cfg, err := sourceConfigFromFlags(c)
	if err != nil {
		return err
	}

	gateway, err := gatewayFor(c, logger)
	if err != nil {
		return err
	}

	if err := gateway.PutSourceConfig(c.Context, ref, cfg); err != nil {
		return err
	}

	logger.Info().
		Str("entity_ref", ref.String()).
		Bool("use_entity_assets", cfg.UseEntityAssets).
		Msg("Source configuration saved")
	return nil
}

func sourceConfigFromFlags(c *cli.Context) (paramstore.SourceConfig, error) {
	cfg := paramstore.SourceConfig{
		UseEntityAssets: c.Bool("use-entity-assets"),
	}

	if v := c.String("source-type"); v != "" {
		st := paramstore.SourceType(strings.ToUpper(v))
		switch st {
		case paramstore.SourceTypeGitHub, paramstore.SourceTypeObjectStorage, paramstore.SourceTypeNone:
		default:
			return cfg, fmt.Errorf("unknown source type %q, expected one of GITHUB, S3, NO_SOURCE", v)
		}
		cfg.SourceType = &st
	}
	if v := c.String("source-location"); v != "" {
		cfg.SourceLocation = aws.String(v)
	}
	if v := c.String("source-version"); v != "" {
		cfg.SourceVersion = aws.String(v)
	}

	if !cfg.UseEntityAssets && cfg.SourceType == nil {
		return cfg, fmt.Errorf("either --use-entity-assets or --source-type is required")
	}
	return cfg, nil
}
