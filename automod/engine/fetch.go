package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/spotter-social/spotter/pkg/robusthttp"

	"github.com/carlmjohnson/versioninfo"
)

// ContentFetcher reads the current text of a piece of content from the platform content store.
type ContentFetcher interface {
	FetchContent(ctx context.Context, ref string) (string, error)
}

var ErrContentNotFound = errors.New("content not found")

// HTTPContentFetcher calls `GET {Host}/v1/content/{ref}` on the platform content API, which returns `{"text": "..."}`.
type HTTPContentFetcher struct {
	Client *http.Client
	Host   string
	Token  string
}

func NewHTTPContentFetcher(host, token string, logger *slog.Logger) *HTTPContentFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPContentFetcher{
		Client: robusthttp.NewClient(robusthttp.WithLogger(logger.With("subsystem", "content-http"))),
		Host:   strings.TrimSuffix(host, "/"),
		Token:  token,
	}
}

type contentResponse struct {
	Text string `json:"text"`
}

func (f *HTTPContentFetcher) FetchContent(ctx context.Context, ref string) (string, error) {
	contentFetches.Inc()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Host+"/v1/content/"+url.PathEscape(ref), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "spotter/"+versioninfo.Short())
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching content %s: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrContentNotFound, ref)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching content %s: statusCode=%d", ref, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading content response: %w", err)
	}
	var body contentResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("parsing content response: %w", err)
	}
	return body.Text, nil
}

// MemContentFetcher serves content from a map. Used in tests and offline tooling.
type MemContentFetcher struct {
	mu      sync.RWMutex
	Content map[string]string
}

func NewMemContentFetcher() *MemContentFetcher {
	return &MemContentFetcher{Content: make(map[string]string)}
}

func (f *MemContentFetcher) Put(ref, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Content[ref] = text
}

func (f *MemContentFetcher) FetchContent(ctx context.Context, ref string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	text, ok := f.Content[ref]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrContentNotFound, ref)
	}
	return text, nil
}
