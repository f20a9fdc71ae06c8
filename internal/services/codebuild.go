package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/savaki/catalog-deployer/internal/orchestrator"
	"github.com/savaki/catalog-deployer/internal/targets"
)

// STSAPI is the subset of the STS client used by the factory
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// CodeBuildClientFactory builds CodeBuild clients for deployment targets,
// assuming the target's role when one is configured. Clients are cached per
// region and role.
type CodeBuildClientFactory struct {
	cfg    aws.Config
	newSTS func(cfg aws.Config) STSAPI

	mu      sync.Mutex
	configs map[string]aws.Config
	clients map[string]*codebuild.Client
}

func NewCodeBuildClientFactory(cfg aws.Config) *CodeBuildClientFactory {
	return &CodeBuildClientFactory{
		cfg: cfg,
		newSTS: func(cfg aws.Config) STSAPI {
			return sts.NewFromConfig(cfg)
		},
		configs: map[string]aws.Config{},
		clients: map[string]*codebuild.Client{},
	}
}

func cacheKey(target targets.Target) string {
	return target.Region + "|" + target.RoleARN
}

// ConfigFor returns the aws config used to reach target
func (f *CodeBuildClientFactory) ConfigFor(target targets.Target) aws.Config {
	key := cacheKey(target)

	f.mu.Lock()
	defer f.mu.Unlock()

	if cfg, ok := f.configs[key]; ok {
		return cfg
	}

	cfg := f.cfg.Copy()
	cfg.Region = target.Region
	if target.RoleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(f.newSTS(f.cfg), target.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = "catalog-deployer"
		})
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	f.configs[key] = cfg
	return cfg
}

// ClientFor returns a CodeBuild client in the target's region
func (f *CodeBuildClientFactory) ClientFor(ctx context.Context, target targets.Target) (orchestrator.CodeBuildAPI, error) {
	if target.Region == "" {
		return nil, fmt.Errorf("target %s has no region", target.Name)
	}

	cfg := f.ConfigFor(target)
	key := cacheKey(target)

	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[key]; ok {
		return client, nil
	}

	client := codebuild.NewFromConfig(cfg)
	f.clients[key] = client
	return client, nil
}

// AccountFor returns the account the target's credentials resolve to
func (f *CodeBuildClientFactory) AccountFor(ctx context.Context, target targets.Target) (string, error) {
	out, err := f.newSTS(f.ConfigFor(target)).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity for target %s: %w", target.Name, err)
	}
	return aws.ToString(out.Account), nil
}

// CheckTarget verifies that the target's credentials belong to its declared account
func (f *CodeBuildClientFactory) CheckTarget(ctx context.Context, target targets.Target) error {
	account, err := f.AccountFor(ctx, target)
	if err != nil {
		return err
	}
	if account != target.AccountID {
		return fmt.Errorf("target %s expects account %s, credentials resolve to %s", target.Name, target.AccountID, account)
	}
	return nil
}
