package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"github.com/rs/zerolog"
	"github.com/savaki/catalog-deployer/internal/catalog"
	"github.com/savaki/catalog-deployer/internal/errors"
	"github.com/savaki/catalog-deployer/internal/models"
	"github.com/savaki/catalog-deployer/internal/orchestrator"
	"github.com/savaki/catalog-deployer/internal/paramstore"
)

const maxBodyBytes = 1 << 20

// BuildService starts and reports on entity builds
type BuildService interface {
	StartBuild(ctx context.Context, entity catalog.Entity, action models.Action) (orchestrator.Result, error)
	GetProject(ctx context.Context, entity catalog.Entity) (*types.Project, error)
	GetBuilds(ctx context.Context, entity catalog.Entity) ([]types.Build, error)
}

// ConfigStore reads and writes per-entity build configuration
type ConfigStore interface {
	GetBuildParameters(ctx context.Context, ref catalog.Ref) ([]paramstore.EnvironmentVariable, error)
	PutBuildParameters(ctx context.Context, ref catalog.Ref, vars []paramstore.EnvironmentVariable) error
	GetSourceConfig(ctx context.Context, ref catalog.Ref) (paramstore.SourceConfig, error)
	PutSourceConfig(ctx context.Context, ref catalog.Ref, cfg paramstore.SourceConfig) error
}

type Handler struct {
	builds   BuildService
	store    ConfigStore
	entities catalog.EntityGetter // nil when no catalog is configured
	metrics  http.Handler
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type BuildsResponse struct {
	Builds []types.Build `json:"builds"`
}

func refFromPath(r *http.Request) catalog.Ref {
	return catalog.Ref{
		Kind:      r.PathValue("kind"),
		Namespace: r.PathValue("namespace"),
		Name:      r.PathValue("name"),
	}
}

func (h *Handler) lookupEntity(ctx context.Context, ref catalog.Ref) (catalog.Entity, error) {
	if h.entities == nil {
		return catalog.Entity{}, fmt.Errorf("catalog is not configured")
	}
	return h.entities.GetEntityByRef(ctx, ref)
}

func (h *Handler) handleStartBuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	action, err := models.ParseAction(r.PathValue("action"))
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}

	entity, err := h.lookupEntity(ctx, refFromPath(r))
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}

	result, err := h.builds.StartBuild(ctx, entity, action)
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}

	status := http.StatusAccepted
	if result.Build == nil {
		status = http.StatusOK
	}
	h.jsonResponse(w, status, result)
}

func (h *Handler) handleGetBuilds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entity, err := h.lookupEntity(ctx, refFromPath(r))
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}

	builds, err := h.builds.GetBuilds(ctx, entity)
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}
	if builds == nil {
		builds = []types.Build{}
	}

	h.jsonResponse(w, http.StatusOK, BuildsResponse{Builds: builds})
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entity, err := h.lookupEntity(ctx, refFromPath(r))
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}

	project, err := h.builds.GetProject(ctx, entity)
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}

	h.jsonResponse(w, http.StatusOK, project)
}

func (h *Handler) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	vars, err := h.store.GetBuildParameters(r.Context(), refFromPath(r))
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, vars)
}

func (h *Handler) handlePutParameters(w http.ResponseWriter, r *http.Request) {
	var vars []paramstore.EnvironmentVariable
	if err := decodeBody(r, &vars); err != nil {
		h.errorResponse(w, r, err)
		return
	}
	for _, v := range vars {
		if v.Name == "" {
			h.errorResponse(w, r, errors.NewInputError("environment variable name must not be empty"))
			return
		}
	}

	if err := h.store.PutBuildParameters(r.Context(), refFromPath(r), vars); err != nil {
		h.errorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetSourceConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.GetSourceConfig(r.Context(), refFromPath(r))
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, cfg)
}

func (h *Handler) handlePutSourceConfig(w http.ResponseWriter, r *http.Request) {
	var cfg paramstore.SourceConfig
	if err := decodeBody(r, &cfg); err != nil {
		h.errorResponse(w, r, err)
		return
	}
	if err := validateSourceConfig(cfg); err != nil {
		h.errorResponse(w, r, err)
		return
	}

	if err := h.store.PutSourceConfig(r.Context(), refFromPath(r), cfg); err != nil {
		h.errorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validateSourceConfig(cfg paramstore.SourceConfig) error {
	if cfg.SourceType == nil {
		return nil
	}
	switch *cfg.SourceType {
	case paramstore.SourceTypeGitHub, paramstore.SourceTypeObjectStorage, paramstore.SourceTypeNone:
		return nil
	default:
		return errors.NewInputError("unsupported source type %q", *cfg.SourceType)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewInputError("invalid request body: %v", err)
	}
	return nil
}

// jsonResponse writes a JSON response
func (h *Handler) jsonResponse(w http.ResponseWriter, statusCode int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

// errorResponse maps err to a status code and writes it as JSON. Server faults
// are logged and replaced with a generic message.
func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var inputErr *errors.InputError
	switch {
	case stderrors.As(err, &inputErr):
		h.jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: inputErr.Message})
	case stderrors.Is(err, errors.ErrNotFound):
		h.jsonResponse(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case stderrors.Is(err, errors.ErrBuildInProgress):
		h.jsonResponse(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
		h.jsonResponse(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// setupRouter configures all HTTP routes
func (h *Handler) setupRouter() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/builds/{kind}/{namespace}/{name}/{action}", h.handleStartBuild)
	mux.HandleFunc("GET /api/builds/{kind}/{namespace}/{name}", h.handleGetBuilds)
	mux.HandleFunc("GET /api/projects/{kind}/{namespace}/{name}", h.handleGetProject)
	mux.HandleFunc("GET /api/parameters/{kind}/{namespace}/{name}", h.handleGetParameters)
	mux.HandleFunc("PUT /api/parameters/{kind}/{namespace}/{name}", h.handlePutParameters)
	mux.HandleFunc("GET /api/source-config/{kind}/{namespace}/{name}", h.handleGetSourceConfig)
	mux.HandleFunc("PUT /api/source-config/{kind}/{namespace}/{name}", h.handlePutSourceConfig)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}

	return mux
}
