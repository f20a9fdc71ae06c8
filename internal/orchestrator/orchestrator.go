// Package orchestrator submits CodeBuild jobs for catalog entities and reports
// on the jobs already submitted for them.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"github.com/rs/zerolog"
	"github.com/savaki/catalog-deployer/internal/catalog"
	"github.com/savaki/catalog-deployer/internal/dao/lockdao"
	"github.com/savaki/catalog-deployer/internal/errors"
	"github.com/savaki/catalog-deployer/internal/metrics"
	"github.com/savaki/catalog-deployer/internal/models"
	"github.com/savaki/catalog-deployer/internal/paramstore"
	"github.com/savaki/catalog-deployer/internal/targets"
	"github.com/savaki/catalog-deployer/internal/utils"
	"github.com/segmentio/ksuid"
)

// batchGetLimit is the maximum number of ids BatchGetBuilds accepts
const batchGetLimit = 100

// CodeBuildAPI is the subset of the CodeBuild client used by the orchestrator
type CodeBuildAPI interface {
	StartBuild(ctx context.Context, params *codebuild.StartBuildInput, optFns ...func(*codebuild.Options)) (*codebuild.StartBuildOutput, error)
	ListBuildsForProject(ctx context.Context, params *codebuild.ListBuildsForProjectInput, optFns ...func(*codebuild.Options)) (*codebuild.ListBuildsForProjectOutput, error)
	BatchGetBuilds(ctx context.Context, params *codebuild.BatchGetBuildsInput, optFns ...func(*codebuild.Options)) (*codebuild.BatchGetBuildsOutput, error)
	BatchGetProjects(ctx context.Context, params *codebuild.BatchGetProjectsInput, optFns ...func(*codebuild.Options)) (*codebuild.BatchGetProjectsOutput, error)
}

// ClientFactory returns a CodeBuild client able to reach the target's project
type ClientFactory interface {
	ClientFor(ctx context.Context, target targets.Target) (CodeBuildAPI, error)
}

// ClientFactoryFunc adapts a function to ClientFactory
type ClientFactoryFunc func(ctx context.Context, target targets.Target) (CodeBuildAPI, error)

func (fn ClientFactoryFunc) ClientFor(ctx context.Context, target targets.Target) (CodeBuildAPI, error) {
	return fn(ctx, target)
}

type TargetResolver interface {
	Resolve(entity catalog.Entity) (targets.Target, error)
}

type BuildspecResolver interface {
	Resolve(ctx context.Context, action models.Action, entity catalog.Entity) (string, bool, error)
}

type ParameterGetter interface {
	GetBuildParameters(ctx context.Context, ref catalog.Ref) ([]paramstore.EnvironmentVariable, error)
}

type SourceResolver interface {
	Resolve(ctx context.Context, entity catalog.Entity) (paramstore.SourceConfig, error)
}

// Leaser grants exclusive build submission per entity and target
type Leaser interface {
	Acquire(ctx context.Context, input lockdao.AcquireInput) (*lockdao.Record, bool, error)
	Release(ctx context.Context, input lockdao.ReleaseInput) error
}

// Config holds the orchestrator's collaborators. Leaser and Metrics are optional.
type Config struct {
	Clients    ClientFactory
	Targets    TargetResolver
	Buildspecs BuildspecResolver
	Parameters ParameterGetter
	Sources    SourceResolver
	Leaser     Leaser
	Metrics    metrics.Recorder
}

// Result is the outcome of StartBuild. Build is nil when there was nothing to run.
type Result struct {
	Build *types.Build `json:"build,omitempty"`
}

// Orchestrator resolves everything a build needs and submits it
type Orchestrator struct {
	clients    ClientFactory
	targets    TargetResolver
	buildspecs BuildspecResolver
	parameters ParameterGetter
	sources    SourceResolver
	leaser     Leaser
	metrics    metrics.Recorder
}

// New creates a new Orchestrator instance
func New(cfg Config) *Orchestrator {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Orchestrator{
		clients:    cfg.Clients,
		targets:    cfg.Targets,
		buildspecs: cfg.Buildspecs,
		parameters: cfg.Parameters,
		sources:    cfg.Sources,
		leaser:     cfg.Leaser,
		metrics:    recorder,
	}
}

// StartBuild submits a build of action for entity. A missing build definition
// is not an error: the returned Result has a nil Build.
func (o *Orchestrator) StartBuild(ctx context.Context, entity catalog.Entity, action models.Action) (result Result, err error) {
	started := time.Now()
	defer func() {
		o.metrics.ObserveStartDuration(action.String(), time.Since(started))
		switch {
		case err != nil:
			o.metrics.IncBuildOutcome(action.String(), metrics.OutcomeFailed)
		case result.Build == nil:
			o.metrics.IncBuildOutcome(action.String(), metrics.OutcomeSkipped)
		default:
			o.metrics.IncBuildOutcome(action.String(), metrics.OutcomeStarted)
		}
	}()

	ref := entity.Ref()
	if err := requireUID(entity); err != nil {
		return Result{}, err
	}

	logger := zerolog.Ctx(ctx).With().
		Str("entity_ref", ref.String()).
		Str("action", action.String()).
		Logger()

	target, err := o.targets.Resolve(entity)
	if err != nil {
		return Result{}, err
	}

	buildspec, found, err := o.buildspecs.Resolve(ctx, action, entity)
	if err != nil {
		return Result{}, err
	}
	if !found {
		logger.Info().Str("target", target.Name).Msg("No build definition found, skipping build")
		return Result{}, nil
	}

	stored, err := o.parameters.GetBuildParameters(ctx, ref)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get build parameters for %s: %w", ref, err)
	}

	source, err := o.sources.Resolve(ctx, entity)
	if err != nil {
		return Result{}, err
	}

	vars := utils.MergeEnvironment(stored, target, entity)

	token := ksuid.New().String()
	if o.leaser != nil {
		release, err := o.acquire(ctx, target, ref, action, token)
		if err != nil {
			return Result{}, err
		}
		defer release()
	}

	client, err := o.clients.ClientFor(ctx, target)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create build client for target %s: %w", target.Name, err)
	}

	input := &codebuild.StartBuildInput{
		ProjectName:                  aws.String(target.ProjectName),
		BuildspecOverride:            aws.String(buildspec),
		EnvironmentVariablesOverride: toCodeBuildVariables(vars),
		IdempotencyToken:             aws.String(token),
	}
	if source.SourceType != nil {
		input.SourceTypeOverride = types.SourceType(*source.SourceType)
	}
	input.SourceLocationOverride = source.SourceLocation
	input.SourceVersion = source.SourceVersion

	out, err := client.StartBuild(ctx, input)
	if err != nil {
		logger.Error().Err(err).Str("project", target.ProjectName).Msg("Failed to start build")
		return Result{}, fmt.Errorf("failed to start build for %s: %w", ref, err)
	}

	logger.Info().
		Str("target", target.Name).
		Str("project", target.ProjectName).
		Str("build_id", aws.ToString(out.Build.Id)).
		Msg("Build started")

	return Result{Build: out.Build}, nil
}

func (o *Orchestrator) acquire(ctx context.Context, target targets.Target, ref catalog.Ref, action models.Action, holder string) (func(), error) {
	input := lockdao.AcquireInput{
		Target:    target.Name,
		EntityRef: ref.String(),
		Holder:    holder,
		Action:    action.String(),
	}

	_, acquired, err := o.leaser.Acquire(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire build lease for %s: %w", ref, err)
	}
	if !acquired {
		return nil, fmt.Errorf("%s on target %s: %w", ref, target.Name, errors.ErrBuildInProgress)
	}

	return func() {
		err := o.leaser.Release(ctx, lockdao.ReleaseInput{
			PK:     lockdao.NewPK(input.Target, input.EntityRef),
			Holder: holder,
		})
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("entity_ref", ref.String()).Msg("Failed to release build lease")
		}
	}, nil
}

// GetProject returns the build project the entity's target builds with
func (o *Orchestrator) GetProject(ctx context.Context, entity catalog.Entity) (*types.Project, error) {
	target, client, err := o.resolveClient(ctx, entity)
	if err != nil {
		return nil, err
	}

	out, err := client.BatchGetProjects(ctx, &codebuild.BatchGetProjectsInput{
		Names: []string{target.ProjectName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", target.ProjectName, err)
	}
	if len(out.Projects) == 0 {
		return nil, fmt.Errorf("project %s: %w", target.ProjectName, errors.ErrNotFound)
	}

	return &out.Projects[0], nil
}

// GetBuilds returns the project's recent builds that were submitted for entity.
// Builds are matched on the entity uid variable recorded at submission.
func (o *Orchestrator) GetBuilds(ctx context.Context, entity catalog.Entity) ([]types.Build, error) {
	if err := requireUID(entity); err != nil {
		return nil, err
	}

	target, client, err := o.resolveClient(ctx, entity)
	if err != nil {
		return nil, err
	}

	list, err := client.ListBuildsForProject(ctx, &codebuild.ListBuildsForProjectInput{
		ProjectName: aws.String(target.ProjectName),
		SortOrder:   types.SortOrderTypeDescending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list builds for project %s: %w", target.ProjectName, err)
	}

	uid := entity.Metadata.UID
	var builds []types.Build
	for ids := range chunk(list.Ids, batchGetLimit) {
		out, err := client.BatchGetBuilds(ctx, &codebuild.BatchGetBuildsInput{Ids: ids})
		if err != nil {
			return nil, fmt.Errorf("failed to get builds for project %s: %w", target.ProjectName, err)
		}
		for _, build := range out.Builds {
			if v, ok := buildVariable(build, utils.EnvEntityUID); ok && v == uid {
				builds = append(builds, build)
			}
		}
	}

	return builds, nil
}

func (o *Orchestrator) resolveClient(ctx context.Context, entity catalog.Entity) (targets.Target, CodeBuildAPI, error) {
	target, err := o.targets.Resolve(entity)
	if err != nil {
		return targets.Target{}, nil, err
	}

	client, err := o.clients.ClientFor(ctx, target)
	if err != nil {
		return targets.Target{}, nil, fmt.Errorf("failed to create build client for target %s: %w", target.Name, err)
	}

	return target, client, nil
}

// requireUID rejects entities without a uid; builds are correlated to their
// entity by it
func requireUID(entity catalog.Entity) error {
	if entity.Metadata.UID == "" {
		return errors.NewInvalidEntityError("entity %s has no metadata.uid", entity.Ref())
	}
	return nil
}

func toCodeBuildVariables(vars []paramstore.EnvironmentVariable) []types.EnvironmentVariable {
	results := make([]types.EnvironmentVariable, 0, len(vars))
	for _, v := range vars {
		results = append(results, types.EnvironmentVariable{
			Name:  aws.String(v.Name),
			Value: aws.String(v.Value),
			Type:  types.EnvironmentVariableTypePlaintext,
		})
	}
	return results
}

func buildVariable(build types.Build, name string) (string, bool) {
	if build.Environment == nil {
		return "", false
	}
	for _, v := range build.Environment.EnvironmentVariables {
		if aws.ToString(v.Name) == name {
			return aws.ToString(v.Value), true
		}
	}
	return "", false
}

// chunk yields successive slices of at most size elements
func chunk(ids []string, size int) func(yield func([]string) bool) {
	return func(yield func([]string) bool) {
		for len(ids) > 0 {
			n := min(size, len(ids))
			if !yield(ids[:n]) {
				return
			}
			ids = ids[n:]
		}
	}
}
