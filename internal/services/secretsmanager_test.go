package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
)

type mockSecrets struct {
	secrets map[string]*string
}

func (m *mockSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	v, ok := m.secrets[aws.ToString(params.SecretId)]
	if !ok {
		return nil, fmt.Errorf("ResourceNotFoundException: secret not found")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: v}, nil
}

func TestSecretsManagerService_GetGitHubToken(t *testing.T) {
	svc := NewSecretsManagerService(&mockSecrets{secrets: map[string]*string{
		"raw":       aws.String("ghp_raw\n"),
		"json":      aws.String(`{"github_pat":"ghp_json"}`),
		"empty":     aws.String(`{"github_pat":""}`),
		"malformed": aws.String(`{"github_pat":`),
		"binary":    nil,
	}})

	tests := []struct {
		secret  string
		want    string
		wantErr bool
	}{
		{secret: "raw", want: "ghp_raw"},
		{secret: "json", want: "ghp_json"},
		{secret: "empty", wantErr: true},
		{secret: "malformed", wantErr: true},
		{secret: "binary", wantErr: true},
		{secret: "missing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.secret, func(t *testing.T) {
			got, err := svc.GetGitHubToken(context.Background(), tt.secret)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
