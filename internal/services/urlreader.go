package services

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/savaki/catalog-deployer/internal/errors"
	"github.com/savaki/catalog-deployer/internal/paramstore"
	"github.com/savaki/catalog-deployer/internal/sources"
)

// Reader reads the content at a url
type Reader interface {
	ReadURL(ctx context.Context, url string) ([]byte, error)
}

// HTTPReader reads plain http(s) urls
type HTTPReader struct {
	httpClient *http.Client
}

func NewHTTPReader(httpClient *http.Client) *HTTPReader {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPReader{httpClient: httpClient}
}

// ReadURL fetches url with GET. A 404 is reported as errors.ErrNotFound.
func (h *HTTPReader) ReadURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, errors.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}

	return data, nil
}

// URLReader picks a reader by the kind of location being read
type URLReader struct {
	github Reader
	s3     Reader
	http   Reader
}

func NewURLReader(github, s3, http Reader) *URLReader {
	return &URLReader{
		github: github,
		s3:     s3,
		http:   http,
	}
}

func (u *URLReader) ReadURL(ctx context.Context, url string) ([]byte, error) {
	var reader Reader
	switch sources.Classify(url) {
	case paramstore.SourceTypeGitHub:
		reader = u.github
	case paramstore.SourceTypeObjectStorage:
		reader = u.s3
	default:
		reader = u.http
	}

	if reader == nil {
		return nil, fmt.Errorf("no reader configured for %s", url)
	}
	return reader.ReadURL(ctx, url)
}
