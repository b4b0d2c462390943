package classifier

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spotter-social/spotter/automod/cachestore"
	"github.com/spotter-social/spotter/pkg/robusthttp"

	"github.com/carlmjohnson/versioninfo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("classifier")

// cachestore namespace for classifier responses
const cacheName = "classifier"

// HTTPClient talks to a moderation endpoint with the OpenAI-compatible request/response schema.
type HTTPClient struct {
	Client  *http.Client
	Host    string
	APIKey  string
	Model   string
	Limiter *rate.Limiter
	// optional; responses are cached by SHA-256 of the input text
	Cache  cachestore.CacheStore
	Logger *slog.Logger
}

var _ Classifier = (*HTTPClient)(nil)

type HTTPClientConfig struct {
	Host      string
	APIKey    string
	Model     string
	RateLimit float64
	Cache     cachestore.CacheStore
	Logger    *slog.Logger
}

func NewHTTPClient(config HTTPClientConfig) *HTTPClient {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}
	return &HTTPClient{
		Client:  robusthttp.NewClient(robusthttp.WithLogger(logger.With("subsystem", "classifier-http"))),
		Host:    strings.TrimSuffix(config.Host, "/"),
		APIKey:  config.APIKey,
		Model:   config.Model,
		Limiter: limiter,
		Cache:   config.Cache,
		Logger:  logger.With("component", "classifier"),
	}
}

type moderationRequest struct {
	Input string `json:"input"`
	Model string `json:"model,omitempty"`
}

// schema: https://platform.openai.com/docs/api-reference/moderations/object
type moderationResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Results []moderationResult `json:"results"`
}

type moderationResult struct {
	Flagged        bool               `json:"flagged"`
	Categories     map[string]bool    `json:"categories"`
	CategoryScores map[string]float64 `json:"category_scores"`
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *HTTPClient) Classify(ctx context.Context, text string) (*Scores, error) {
	ctx, span := tracer.Start(ctx, "Classify")
	defer span.End()

	key := cacheKey(text)
	if c.Cache != nil {
		cached, err := cachestore.GetJSON[Scores](ctx, c.Cache, cacheName, key)
		if err != nil {
			c.Logger.Warn("classifier cache read failed", "err", err)
		} else if cached != nil {
			classifierCacheHits.Inc()
			span.SetAttributes(attribute.Bool("cached", true))
			return cached, nil
		}
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			classifierRequests.WithLabelValues("rate_limited").Inc()
			return nil, fmt.Errorf("%w: waiting on rate limit: %w", ErrUnavailable, err)
		}
	}

	start := time.Now()
	scores, err := c.fetch(ctx, text)
	classifierDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		classifierRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	classifierRequests.WithLabelValues("ok").Inc()

	if c.Cache != nil {
		if err := cachestore.SetJSON(ctx, c.Cache, cacheName, key, scores); err != nil {
			c.Logger.Warn("classifier cache write failed", "err", err)
		}
	}
	return scores, nil
}

func (c *HTTPClient) fetch(ctx context.Context, text string) (*Scores, error) {
	body, err := json.Marshal(moderationRequest{Input: text, Model: c.Model})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Host+"/v1/moderations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "spotter/"+versioninfo.Short())
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: classifier request failed statusCode=%d", ErrUnavailable, resp.StatusCode)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading classifier response: %w", ErrUnavailable, err)
	}
	var respObj moderationResponse
	if err := json.Unmarshal(respBytes, &respObj); err != nil {
		return nil, fmt.Errorf("%w: parsing classifier response JSON: %w", ErrUnavailable, err)
	}
	if len(respObj.Results) == 0 {
		return nil, fmt.Errorf("%w: classifier response had no results", ErrUnavailable)
	}
	res := respObj.Results[0]
	scores := NewScores(res.Flagged, res.Categories, res.CategoryScores)
	scores.Model = respObj.Model
	c.Logger.Debug("classifier result", "id", respObj.ID, "flagged", res.Flagged, "flaggedCategories", len(scores.FlaggedCategories()))
	return scores, nil
}
