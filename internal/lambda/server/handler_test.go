package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"github.com/rs/zerolog"
	"github.com/savaki/catalog-deployer/internal/catalog"
	"github.com/savaki/catalog-deployer/internal/errors"
	"github.com/savaki/catalog-deployer/internal/models"
	"github.com/savaki/catalog-deployer/internal/orchestrator"
	"github.com/savaki/catalog-deployer/internal/paramstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBuilds struct {
	startBuildFunc func(ctx context.Context, entity catalog.Entity, action models.Action) (orchestrator.Result, error)
	getBuildsFunc  func(ctx context.Context, entity catalog.Entity) ([]types.Build, error)
	getProjectFunc func(ctx context.Context, entity catalog.Entity) (*types.Project, error)
}

func (m *mockBuilds) StartBuild(ctx context.Context, entity catalog.Entity, action models.Action) (orchestrator.Result, error) {
	if m.startBuildFunc != nil {
		return m.startBuildFunc(ctx, entity, action)
	}
	return orchestrator.Result{}, nil
}

func (m *mockBuilds) GetProject(ctx context.Context, entity catalog.Entity) (*types.Project, error) {
	if m.getProjectFunc != nil {
		return m.getProjectFunc(ctx, entity)
	}
	return nil, errors.ErrNotFound
}

func (m *mockBuilds) GetBuilds(ctx context.Context, entity catalog.Entity) ([]types.Build, error) {
	if m.getBuildsFunc != nil {
		return m.getBuildsFunc(ctx, entity)
	}
	return nil, nil
}

type mockStore struct {
	params  map[string][]paramstore.EnvironmentVariable
	configs map[string]paramstore.SourceConfig
}

func (m *mockStore) GetBuildParameters(ctx context.Context, ref catalog.Ref) ([]paramstore.EnvironmentVariable, error) {
	v, ok := m.params[ref.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreRetrieve, errors.ErrNotFound)
	}
	return v, nil
}

func (m *mockStore) PutBuildParameters(ctx context.Context, ref catalog.Ref, vars []paramstore.EnvironmentVariable) error {
	m.params[ref.String()] = vars
	return nil
}

func (m *mockStore) GetSourceConfig(ctx context.Context, ref catalog.Ref) (paramstore.SourceConfig, error) {
	v, ok := m.configs[ref.String()]
	if !ok {
		return paramstore.SourceConfig{}, fmt.Errorf("%w: %w", errors.ErrStoreRetrieve, errors.ErrNotFound)
	}
	return v, nil
}

func (m *mockStore) PutSourceConfig(ctx context.Context, ref catalog.Ref, cfg paramstore.SourceConfig) error {
	m.configs[ref.String()] = cfg
	return nil
}

type mockCatalog struct {
	entities map[string]catalog.Entity
}

func (m *mockCatalog) GetEntityByRef(ctx context.Context, ref catalog.Ref) (catalog.Entity, error) {
	e, ok := m.entities[ref.String()]
	if !ok {
		return catalog.Entity{}, fmt.Errorf("%s: %w", ref, errors.ErrNotFound)
	}
	return e, nil
}

var demo = catalog.Entity{
	Kind: "Component",
	Metadata: catalog.Metadata{
		Name:      "demo",
		Namespace: "default",
		UID:       "uid-x",
	},
}

type fixture struct {
	builds *mockBuilds
	store  *mockStore
	server *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		builds: &mockBuilds{},
		store: &mockStore{
			params:  map[string][]paramstore.EnvironmentVariable{},
			configs: map[string]paramstore.SourceConfig{},
		},
	}
	h := &Handler{
		builds: f.builds,
		store:  f.store,
		entities: &mockCatalog{entities: map[string]catalog.Entity{
			"component:default/demo": demo,
		}},
		metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		}),
	}
	f.server = httptest.NewServer(loggingMiddleware(zerolog.Nop())(stripEnvPrefixMiddleware("dev", h.setupRouter())))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, string) {
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestStartBuild(t *testing.T) {
	f := newFixture(t)
	f.builds.startBuildFunc = func(ctx context.Context, entity catalog.Entity, action models.Action) (orchestrator.Result, error) {
		assert.Equal(t, "uid-x", entity.Metadata.UID)
		if action == models.ActionTeardown {
			return orchestrator.Result{}, nil
		}
		return orchestrator.Result{Build: &types.Build{Id: aws.String("catalog-builds:1")}}, nil
	}

	resp, body := f.do(t, http.MethodPost, "/api/builds/Component/default/demo/Deploy", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Contains(t, body, "catalog-builds:1")

	resp, body = f.do(t, http.MethodPost, "/dev/api/builds/component/default/demo/teardown", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{}`, body)
}

func TestStartBuild_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
	}{
		{name: "unknown action", path: "/api/builds/component/default/demo/destroy", wantStatus: http.StatusBadRequest},
		{name: "unknown entity", path: "/api/builds/component/default/missing/deploy", wantStatus: http.StatusNotFound},
		{name: "input error", path: "/api/builds/component/default/demo/deploy", err: errors.NewInputError("missing target annotation"), wantStatus: http.StatusBadRequest},
		{name: "in progress", path: "/api/builds/component/default/demo/deploy", err: errors.ErrBuildInProgress, wantStatus: http.StatusConflict},
		{name: "store failure", path: "/api/builds/component/default/demo/deploy", err: errors.ErrStoreRetrieve, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.builds.startBuildFunc = func(ctx context.Context, entity catalog.Entity, action models.Action) (orchestrator.Result, error) {
				return orchestrator.Result{}, tt.err
			}

			resp, body := f.do(t, http.MethodPost, tt.path, "")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var got ErrorResponse
			require.NoError(t, json.Unmarshal([]byte(body), &got))
			assert.NotEmpty(t, got.Error)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", got.Error)
			}
		})
	}
}

func TestGetBuilds(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/builds/component/default/demo", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"builds":[]}`, body)

	f.builds.getBuildsFunc = func(ctx context.Context, entity catalog.Entity) ([]types.Build, error) {
		return []types.Build{{Id: aws.String("catalog-builds:1")}}, nil
	}
	resp, body = f.do(t, http.MethodGet, "/api/builds/component/default/demo", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "catalog-builds:1")
}

func TestGetProject(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/api/projects/component/default/demo", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.builds.getProjectFunc = func(ctx context.Context, entity catalog.Entity) (*types.Project, error) {
		return &types.Project{Name: aws.String("catalog-builds")}, nil
	}
	resp, body := f.do(t, http.MethodGet, "/api/projects/component/default/demo", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "catalog-builds")
}

func TestParameters(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/api/parameters/component/default/demo", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPut, "/api/parameters/Component/Default/demo", `[{"name":"STAGE","value":"dev"}]`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/api/parameters/component/default/demo", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"name":"STAGE","value":"dev"}]`, body)

	resp, _ = f.do(t, http.MethodPut, "/api/parameters/component/default/demo", `[{"name":"","value":"dev"}]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPut, "/api/parameters/component/default/demo", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSourceConfig(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPut, "/api/source-config/component/default/demo", `{"useEntityAssets":true}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/api/source-config/component/default/demo", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"useEntityAssets":true}`, body)

	resp, _ = f.do(t, http.MethodPut, "/api/source-config/component/default/demo", `{"sourceType":"CODECOMMIT"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	resp, body = f.do(t, http.MethodGet, "/dev/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "# metrics\n", body)
}

func TestLookupEntity_NoCatalog(t *testing.T) {
	h := &Handler{builds: &mockBuilds{}}
	srv := httptest.NewServer(h.setupRouter())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/builds/component/default/demo/deploy", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
