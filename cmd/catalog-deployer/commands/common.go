package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/savaki/catalog-deployer/internal/catalog"
	"github.com/savaki/catalog-deployer/internal/di"
	"github.com/savaki/catalog-deployer/internal/targets"
	"github.com/urfave/cli/v2"
)

// GlobalFlags are shared by every command
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Deployer environment, selects the /<env>/catalog-deployer configuration path",
			Value:   "dev",
			EnvVars: []string{"ENV", "ENVIRONMENT"},
		},
		&cli.StringFlag{
			Name:    "targets-file",
			Usage:   "YAML file listing deployment targets",
			EnvVars: []string{"TARGETS_FILE"},
		},
		&cli.StringFlag{
			Name:    "account-id",
			Usage:   "Account id of a single default target (instead of --targets-file)",
			EnvVars: []string{"TARGET_ACCOUNT_ID"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "Region of the default target",
			EnvVars: []string{"TARGET_REGION", "AWS_REGION"},
		},
		&cli.StringFlag{
			Name:    "project",
			Usage:   "CodeBuild project of the default target",
			EnvVars: []string{"TARGET_PROJECT"},
		},
		&cli.StringFlag{
			Name:    "role-arn",
			Usage:   "Role assumed to reach the default target's project",
			EnvVars: []string{"TARGET_ROLE_ARN"},
		},
	}
}

var entityFileFlag = &cli.StringFlag{
	Name:    "entity-file",
	Aliases: []string{"f"},
	Usage:   "Read the entity from a local descriptor instead of the catalog",
}

// flagTargets returns the targets given on the command line, if any
func flagTargets(c *cli.Context) ([]targets.Target, error) {
	if path := c.String("targets-file"); path != "" {
		registry, err := targets.Load(path)
		if err != nil {
			return nil, err
		}
		return registry.Targets(), nil
	}

	if c.String("account-id") == "" {
		return nil, nil
	}

	target := targets.Target{
		Name:        targets.DefaultName,
		AccountID:   c.String("account-id"),
		Region:      c.String("region"),
		ProjectName: c.String("project"),
		RoleARN:     c.String("role-arn"),
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return []targets.Target{target}, nil
}

func newContainer(c *cli.Context, logger *zerolog.Logger) (di.Container, error) {
	tt, err := flagTargets(c)
	if err != nil {
		return nil, err
	}

	return di.New(c.String("env"),
		di.WithTargets(tt...),
		di.WithProviders(func() zerolog.Logger { return *logger }),
	)
}

// get resolves T from the container, returning construction failures as errors
func get[T any](container di.Container) (T, error) {
	var want T
	err := container.Invoke(func(got T) {
		want = got
	})
	return want, err
}

func parseRef(c *cli.Context) (catalog.Ref, error) {
	if c.NArg() != 1 {
		return catalog.Ref{}, fmt.Errorf("expected exactly one entity reference, e.g. component:default/demo")
	}
	return catalog.ParseRef(c.Args().First())
}

// loadEntity reads the entity from --entity-file when set, otherwise from the catalog
func loadEntity(c *cli.Context, container di.Container) (catalog.Entity, error) {
	if path := c.String("entity-file"); path != "" {
		return catalog.LoadEntity(path)
	}

	ref, err := parseRef(c)
	if err != nil {
		return catalog.Entity{}, err
	}

	client, err := get[*catalog.Client](container)
	if err != nil {
		return catalog.Entity{}, err
	}
	if client == nil {
		return catalog.Entity{}, fmt.Errorf("no catalog configured, set CATALOG_URL or pass --entity-file")
	}

	return client.GetEntityByRef(c.Context, ref)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
