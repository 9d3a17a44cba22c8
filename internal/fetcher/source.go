package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"cinecat/internal/failure"
)

// maxResourceBytes bounds a single shard download.
const maxResourceBytes = 256 << 20

// Source retrieves named resources such as "database_chunks/app_database1.json".
// A missing resource is reported as failure.ErrNotFound.
type Source interface {
	Get(ctx context.Context, name string) ([]byte, error)
}

// NewSource returns an HTTPSource when baseURL is set and a DirSource rooted
// at dir otherwise.
func NewSource(baseURL, dir string) (Source, error) {
	if strings.TrimSpace(baseURL) != "" {
		return NewHTTPSource(baseURL, nil)
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("fetcher: no source configured")
	}
	return DirSource{Root: dir}, nil
}

// DirSource serves resources from a local directory.
type DirSource struct {
	Root string
}

// Get reads name relative to Root.
func (s DirSource) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return nil, failure.Wrap(failure.ErrNotFound, "fetcher", "read", "resource outside root: "+name, nil)
	}
	data, err := os.ReadFile(filepath.Join(s.Root, clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, failure.Wrap(failure.ErrNotFound, "fetcher", "read", name, err)
		}
		return nil, failure.Wrap(failure.ErrTransient, "fetcher", "read", name, err)
	}
	return data, nil
}

// HTTPSource serves resources relative to a base URL.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPSource parses baseURL. A nil client uses http.DefaultClient; the
// fetcher applies its own per-request timeout through the context.
func NewHTTPSource(baseURL string, client *http.Client) (*HTTPSource, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("fetcher: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("fetcher: unsupported base url scheme %q", base.Scheme)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{base: base, client: client}, nil
}

// Get issues a GET for name under the base URL.
func (s *HTTPSource) Get(ctx context.Context, name string) ([]byte, error) {
	endpoint := s.base.JoinPath(strings.Split(name, "/")...)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, failure.Wrap(failure.ErrTimeout, "fetcher", "get", name, err)
		}
		return nil, failure.Wrap(failure.ErrTransient, "fetcher", "get", name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, failure.Wrap(failure.ErrNotFound, "fetcher", "get", fmt.Sprintf("%s (%s)", name, resp.Status), nil)
	case resp.StatusCode >= 300:
		return nil, failure.Wrap(failure.ErrTransient, "fetcher", "get", fmt.Sprintf("%s (%s)", name, resp.Status), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResourceBytes))
	if err != nil {
		return nil, failure.Wrap(failure.ErrTransient, "fetcher", "get", "read body of "+name, err)
	}
	return data, nil
}
