package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Config holds all application configuration values from Parameter Store
type Config struct {
	ParameterPrefix   string // root of the per-entity build parameters
	TargetsFile       string
	CatalogURL        string
	CatalogToken      string
	GitHubTokenSecret string // Secrets Manager id holding the GitHub token
	LockTable         string // optional; enables per-entity build leases
	CustomDomain      string
}

// ParameterStore defines the interface for accessing configuration parameters
type ParameterStore interface {
	// GetParameter retrieves a single parameter by name
	GetParameter(ctx context.Context, name string) (string, error)

	// GetConfig loads all application configuration from Parameter Store
	GetConfig(ctx context.Context) (*Config, error)
}

// SSMConfigAPI is the subset of the SSM client used to load configuration
type SSMConfigAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store
type SSMParameterStore struct {
	client SSMConfigAPI
	env    string
	mu     sync.RWMutex
	cache  map[string]string
}

// NewSSMParameterStore creates a new SSM-backed parameter store
func NewSSMParameterStore(client SSMConfigAPI, env string) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		env:    env,
		cache:  make(map[string]string),
	}
}

// GetParameter retrieves a single parameter from SSM Parameter Store
func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	if value, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return value, nil
	}
	s.mu.RUnlock()

	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s not found", name)
	}

	value := *result.Parameter.Value

	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()

	return value, nil
}

func (s *SSMParameterStore) path() string {
	return fmt.Sprintf("/%s/catalog-deployer", s.env)
}

// GetConfig loads all application configuration from Parameter Store
func (s *SSMParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	path := s.path()

	params := make(map[string]string)
	var nextToken *string
	for {
		result, err := s.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
			Path:           aws.String(path),
			Recursive:      aws.Bool(true),
			WithDecryption: aws.Bool(true),
			NextToken:      nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get parameters by path %s: %w", path, err)
		}

		for _, param := range result.Parameters {
			if param.Name != nil && param.Value != nil {
				params[*param.Name] = *param.Value
			}
		}

		if aws.ToString(result.NextToken) == "" {
			break
		}
		nextToken = result.NextToken
	}

	s.mu.Lock()
	for k, v := range params {
		s.cache[k] = v
	}
	s.mu.Unlock()

	get := func(name string) string {
		return params[path+"/"+name]
	}

	config := &Config{
		ParameterPrefix:   get("parameter-prefix"),
		TargetsFile:       get("targets-file"),
		CatalogURL:        get("catalog-url"),
		CatalogToken:      get("catalog-token"),
		GitHubTokenSecret: get("github-token-secret"),
		LockTable:         get("lock-table"),
		CustomDomain:      get("custom-domain"),
	}
	config.setDefaults(s.env)

	return config, nil
}

// EnvParameterStore implements ParameterStore using environment variables
// for local development without an AWS connection
type EnvParameterStore struct {
	env string
}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore(env string) *EnvParameterStore {
	return &EnvParameterStore{
		env: env,
	}
}

// GetParameter retrieves a parameter from environment variables
func (e *EnvParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	return os.Getenv(name), nil
}

// GetConfig loads all application configuration from environment variables
func (e *EnvParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	config := &Config{
		ParameterPrefix:   os.Getenv("PARAMETER_PREFIX"),
		TargetsFile:       os.Getenv("TARGETS_FILE"),
		CatalogURL:        os.Getenv("CATALOG_URL"),
		CatalogToken:      os.Getenv("CATALOG_TOKEN"),
		GitHubTokenSecret: os.Getenv("GITHUB_TOKEN_SECRET"),
		LockTable:         os.Getenv("LOCK_TABLE"),
		CustomDomain:      os.Getenv("CUSTOM_DOMAIN"),
	}
	config.setDefaults(e.env)

	return config, nil
}

func (c *Config) setDefaults(env string) {
	if c.ParameterPrefix == "" {
		c.ParameterPrefix = "/catalog-deployer"
	}
	c.ParameterPrefix = "/" + strings.Trim(c.ParameterPrefix, "/")
	if c.GitHubTokenSecret == "" {
		c.GitHubTokenSecret = fmt.Sprintf("catalog-deployer/%s/github-token", env)
	}
}
