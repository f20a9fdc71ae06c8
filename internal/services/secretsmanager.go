package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsGetter is the subset of the Secrets Manager client used here
type SecretsGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type SecretsManagerService struct {
	client SecretsGetter
}

func NewSecretsManagerService(client SecretsGetter) *SecretsManagerService {
	return &SecretsManagerService{
		client: client,
	}
}

// GitHubTokenSecret is the JSON form of a stored GitHub token
type GitHubTokenSecret struct {
	GitHubPAT string `json:"github_pat"`
}

// GetSecret retrieves a secret value by path from AWS Secrets Manager
func (s *SecretsManagerService) GetSecret(ctx context.Context, secretPath string) (string, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretPath),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", secretPath, err)
	}

	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", secretPath)
	}

	return *result.SecretString, nil
}

// GetGitHubToken retrieves a GitHub token from AWS Secrets Manager. The secret
// is either the bare token or a JSON document with a github_pat field.
func (s *SecretsManagerService) GetGitHubToken(ctx context.Context, secretPath string) (string, error) {
	value, err := s.GetSecret(ctx, secretPath)
	if err != nil {
		return "", err
	}

	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "{") {
		if value == "" {
			return "", fmt.Errorf("secret %s is empty", secretPath)
		}
		return value, nil
	}

	var secret GitHubTokenSecret
	if err := json.Unmarshal([]byte(value), &secret); err != nil {
		return "", fmt.Errorf("failed to unmarshal GitHub token secret: %w", err)
	}

	if secret.GitHubPAT == "" {
		return "", fmt.Errorf("github_pat field is empty in secret %s", secretPath)
	}

	return secret.GitHubPAT, nil
}
