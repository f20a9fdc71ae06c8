package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/savaki/catalog-deployer/internal/errors"
)

// EntityGetter looks up catalog entities
type EntityGetter interface {
	GetEntityByRef(ctx context.Context, ref Ref) (Entity, error)
}

// Client reads entities from the catalog REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a catalog client rooted at baseURL, e.g. https://portal.example.com
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// GetEntityByRef fetches a single entity. Returns errors.ErrNotFound when the
// catalog has no such entity.
func (c *Client) GetEntityByRef(ctx context.Context, ref Ref) (Entity, error) {
	endpoint := fmt.Sprintf("%s/api/catalog/entities/by-name/%s/%s/%s",
		c.baseURL,
		url.PathEscape(strings.ToLower(ref.Kind)),
		url.PathEscape(strings.ToLower(ref.Namespace)),
		url.PathEscape(ref.Name),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Entity{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Entity{}, fmt.Errorf("failed to fetch entity %s: %w", ref, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Entity{}, fmt.Errorf("entity %s: %w", ref, errors.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return Entity{}, fmt.Errorf("failed to fetch entity %s: status %d, body: %s", ref, resp.StatusCode, string(body))
	}

	var entity Entity
	if err := json.NewDecoder(resp.Body).Decode(&entity); err != nil {
		return Entity{}, fmt.Errorf("failed to decode entity %s: %w", ref, err)
	}

	return entity, nil
}
