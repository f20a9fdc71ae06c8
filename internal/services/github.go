package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/savaki/catalog-deployer/internal/errors"
	"github.com/savaki/catalog-deployer/internal/scm"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubTokenGetter fetches the token used for GitHub API calls
type GitHubTokenGetter interface {
	GetGitHubToken(ctx context.Context, secretPath string) (string, error)
}

// GitHubReader reads files from GitHub repositories through the contents API
type GitHubReader struct {
	apiURL     string
	secrets    GitHubTokenGetter // optional; anonymous requests when nil
	secretPath string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

type GitHubReaderOption func(*GitHubReader)

// WithGitHubAPI overrides the GitHub API base url
func WithGitHubAPI(apiURL string) GitHubReaderOption {
	return func(g *GitHubReader) {
		g.apiURL = strings.TrimSuffix(apiURL, "/")
	}
}

// WithGitHubToken reads the API token from secretPath on first use
func WithGitHubToken(secrets GitHubTokenGetter, secretPath string) GitHubReaderOption {
	return func(g *GitHubReader) {
		g.secrets = secrets
		g.secretPath = secretPath
	}
}

func NewGitHubReader(opts ...GitHubReaderOption) *GitHubReader {
	g := &GitHubReader{
		apiURL:     defaultGitHubAPI,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GitHubReader) getToken(ctx context.Context) (string, error) {
	if g.secrets == nil || g.secretPath == "" {
		return "", nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" {
		return g.token, nil
	}

	token, err := g.secrets.GetGitHubToken(ctx, g.secretPath)
	if err != nil {
		return "", err
	}
	g.token = token
	return token, nil
}

// ReadURL reads the file a github.com blob URL points at. Returns
// errors.ErrNotFound when the repository, ref or file does not exist.
func (g *GitHubReader) ReadURL(ctx context.Context, rawURL string) ([]byte, error) {
	loc, ok := scm.ParseGitHubURL(rawURL)
	if !ok || loc.Path == "" {
		return nil, fmt.Errorf("not a GitHub file url: %s", rawURL)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		g.apiURL,
		url.PathEscape(loc.Owner),
		url.PathEscape(loc.Repo),
		escapePath(loc.Path),
	)
	if loc.Ref != "" && loc.Ref != "HEAD" {
		endpoint += "?ref=" + url.QueryEscape(loc.Ref)
	}

	token, err := g.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GitHub token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/vnd.github.raw+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", rawURL, errors.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("failed to fetch %s: status %d, body: %s", rawURL, resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}

	return data, nil
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
