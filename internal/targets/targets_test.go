package targets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/savaki/catalog-deployer/internal/catalog"
	"github.com/savaki/catalog-deployer/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entityWithTarget(target string) catalog.Entity {
	entity := catalog.Entity{
		Kind: "Component",
		Metadata: catalog.Metadata{
			Name:        "demo",
			Namespace:   "default",
			UID:         "uid-1",
			Annotations: map[string]string{},
		},
	}
	if target != "" {
		entity.Metadata.Annotations[catalog.AnnotationTarget] = target
	}
	return entity
}

func testRegistry(t *testing.T) *Registry {
	registry, err := NewRegistry(
		Target{Name: DefaultName, AccountID: "111111111111", Region: "us-west-2", ProjectName: "builds-default"},
		Target{Name: "prod", AccountID: "222222222222", Region: "us-east-1", ProjectName: "builds-prod", RoleARN: "arn:aws:iam::222222222222:role/deployer"},
	)
	require.NoError(t, err)
	return registry
}

func TestRegistry_Resolve(t *testing.T) {
	registry := testRegistry(t)

	tests := []struct {
		name      string
		target    string
		want      string
		wantInput bool
	}{
		{name: "default", target: "default", want: "default"},
		{name: "prod", target: "prod", want: "prod"},
		{name: "missing annotation", target: "", wantInput: true},
		{name: "unknown target", target: "staging", wantInput: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := registry.Resolve(entityWithTarget(tt.target))
			if tt.wantInput {
				require.Error(t, err)
				assert.True(t, errors.IsInputError(err), "expected input error, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestRegistry_ResolveMessages(t *testing.T) {
	registry := testRegistry(t)

	_, err := registry.Resolve(entityWithTarget(""))
	assert.Contains(t, err.Error(), "missing target annotation")

	_, err = registry.Resolve(entityWithTarget("staging"))
	assert.Contains(t, err.Error(), "unknown target")
}

func TestNewRegistry_Validation(t *testing.T) {
	_, err := NewRegistry(Target{Name: "default", Region: "us-west-2"})
	assert.ErrorContains(t, err, "accountId")

	valid := Target{Name: "default", AccountID: "1", Region: "r", ProjectName: "p"}
	_, err = NewRegistry(valid, valid)
	assert.ErrorContains(t, err, "duplicate")
}

func TestRegistry_TargetsIsCopy(t *testing.T) {
	registry := testRegistry(t)
	list := registry.Targets()
	list[0].Name = "mutated"

	_, ok := registry.Find(DefaultName)
	assert.True(t, ok)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.yaml")
	content := `targets:
  - name: default
    accountId: "123456789012"
    region: us-west-2
    projectName: catalog-deployer
  - name: shared
    accountId: "210987654321"
    region: eu-west-1
    projectName: shared-builds
    roleArn: arn:aws:iam::210987654321:role/catalog-deployer
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	registry, err := Load(path)
	require.NoError(t, err)

	target, ok := registry.Find("shared")
	require.True(t, ok)
	assert.Equal(t, "210987654321", target.AccountID)
	assert.Equal(t, "eu-west-1", target.Region)
	assert.Equal(t, "shared-builds", target.ProjectName)
	assert.Equal(t, "arn:aws:iam::210987654321:role/catalog-deployer", target.RoleARN)

	_, err = Parse([]byte("targets: []"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
