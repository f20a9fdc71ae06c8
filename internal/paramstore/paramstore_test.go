package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/savaki/catalog-deployer/internal/catalog"
	deployerrors "github.com/savaki/catalog-deployer/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSSM keeps parameters in memory
type mockSSM struct {
	params map[string]*ssm.PutParameterInput

	getParameterFunc func(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	putParameterFunc func(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

func newMockSSM() *mockSSM {
	return &mockSSM{params: map[string]*ssm.PutParameterInput{}}
}

func (m *mockSSM) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if m.getParameterFunc != nil {
		return m.getParameterFunc(ctx, params, optFns...)
	}
	stored, ok := m.params[aws.ToString(params.Name)]
	if !ok {
		return nil, &types.ParameterNotFound{Message: aws.String("not found")}
	}
	return &ssm.GetParameterOutput{
		Parameter: &types.Parameter{Name: stored.Name, Value: stored.Value},
	}, nil
}

func (m *mockSSM) PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	if m.putParameterFunc != nil {
		return m.putParameterFunc(ctx, params, optFns...)
	}
	m.params[aws.ToString(params.Name)] = params
	return &ssm.PutParameterOutput{}, nil
}

func TestGateway_Key(t *testing.T) {
	gateway := New(newMockSSM(), "/Catalog-Deployer/")

	mixed := catalog.Ref{Kind: "Component", Namespace: "Team-A", Name: "Demo"}
	lower := catalog.Ref{Kind: "component", Namespace: "team-a", Name: "demo"}

	assert.Equal(t, "/catalog-deployer/component/team-a/demo/build-parameters", gateway.Key(mixed, suffixBuildParameters))
	assert.Equal(t, gateway.Key(lower, suffixBuildParameters), gateway.Key(mixed, suffixBuildParameters))
	assert.Equal(t, gateway.Key(lower, suffixSourceConfig), gateway.Key(mixed, suffixSourceConfig))

	other := catalog.Ref{Kind: "component", Namespace: "team-b", Name: "demo"}
	assert.NotEqual(t, gateway.Key(lower, suffixBuildParameters), gateway.Key(other, suffixBuildParameters))

	noNamespace := catalog.Ref{Kind: "component", Name: "demo"}
	assert.Equal(t, "/catalog-deployer/component/default/demo/source-config", gateway.Key(noNamespace, suffixSourceConfig))
}

func TestGateway_DefaultPrefix(t *testing.T) {
	gateway := New(newMockSSM(), "")
	ref := catalog.Ref{Kind: "component", Namespace: "default", Name: "demo"}
	assert.Equal(t, DefaultPrefix+"/component/default/demo/build-parameters", gateway.Key(ref, suffixBuildParameters))
}

func TestGateway_BuildParameters(t *testing.T) {
	ctx := context.Background()
	client := newMockSSM()
	gateway := New(client, DefaultPrefix)
	ref := catalog.Ref{Kind: "Component", Namespace: "default", Name: "demo"}

	vars := []EnvironmentVariable{
		{Name: "STAGE", Value: "dev"},
		{Name: "AWS_REGION", Value: "us-east-1"},
	}
	require.NoError(t, gateway.PutBuildParameters(ctx, ref, vars))

	stored := client.params["/catalog-deployer/component/default/demo/build-parameters"]
	require.NotNil(t, stored)
	assert.Equal(t, types.ParameterTypeSecureString, stored.Type)
	assert.True(t, aws.ToBool(stored.Overwrite))
	assert.JSONEq(t, `[{"name":"STAGE","value":"dev"},{"name":"AWS_REGION","value":"us-east-1"}]`, aws.ToString(stored.Value))

	got, err := gateway.GetBuildParameters(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, vars, got)
}

func TestGateway_SourceConfig(t *testing.T) {
	ctx := context.Background()
	gateway := New(newMockSSM(), DefaultPrefix)
	ref := catalog.Ref{Kind: "component", Namespace: "default", Name: "demo"}

	sourceType := SourceTypeGitHub
	cfg := SourceConfig{
		UseEntityAssets: false,
		SourceType:      &sourceType,
		SourceLocation:  aws.String("https://github.com/acme/demo"),
		SourceVersion:   aws.String("main"),
	}
	require.NoError(t, gateway.PutSourceConfig(ctx, ref, cfg))

	got, err := gateway.GetSourceConfig(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestGateway_Errors(t *testing.T) {
	ctx := context.Background()
	ref := catalog.Ref{Kind: "component", Namespace: "default", Name: "demo"}

	t.Run("missing parameter", func(t *testing.T) {
		gateway := New(newMockSSM(), DefaultPrefix)
		_, err := gateway.GetBuildParameters(ctx, ref)
		assert.ErrorIs(t, err, deployerrors.ErrStoreRetrieve)
		assert.ErrorIs(t, err, deployerrors.ErrNotFound)
	})

	t.Run("backend read failure is wrapped", func(t *testing.T) {
		client := newMockSSM()
		backendErr := errors.New("AccessDeniedException")
		client.getParameterFunc = func(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
			return nil, backendErr
		}
		gateway := New(client, DefaultPrefix)

		_, err := gateway.GetSourceConfig(ctx, ref)
		assert.ErrorIs(t, err, deployerrors.ErrStoreRetrieve)
		assert.NotErrorIs(t, err, backendErr)
		assert.NotErrorIs(t, err, deployerrors.ErrNotFound)
	})

	t.Run("invalid json", func(t *testing.T) {
		client := newMockSSM()
		client.params["/catalog-deployer/component/default/demo/source-config"] = &ssm.PutParameterInput{
			Value: aws.String("not-json"),
		}
		gateway := New(client, DefaultPrefix)

		_, err := gateway.GetSourceConfig(ctx, ref)
		assert.ErrorIs(t, err, deployerrors.ErrStoreRetrieve)
	})

	t.Run("backend write failure is wrapped", func(t *testing.T) {
		client := newMockSSM()
		backendErr := errors.New("ThrottlingException")
		client.putParameterFunc = func(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
			return nil, backendErr
		}
		gateway := New(client, DefaultPrefix)

		err := gateway.PutBuildParameters(ctx, ref, nil)
		assert.ErrorIs(t, err, deployerrors.ErrStoreWrite)
		assert.NotErrorIs(t, err, backendErr)
	})
}
