// Package robusthttp builds retrying HTTP clients for calls to collaborator services (content classifier, platform content API).
package robusthttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type LeveledSlog struct {
	inner *slog.Logger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l LeveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

func (l LeveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

type settings struct {
	retry   *retryablehttp.Client
	timeout time.Duration
}

type Option func(*settings)

func WithMaxRetries(maxRetries int) Option {
	return func(s *settings) {
		s.retry.RetryMax = maxRetries
	}
}

// WithRetryWait bounds the (exponential) wait between attempts.
func WithRetryWait(waitMin, waitMax time.Duration) Option {
	return func(s *settings) {
		s.retry.RetryWaitMin = waitMin
		s.retry.RetryWaitMax = waitMax
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.retry.Logger = retryablehttp.LeveledLogger(LeveledSlog{inner: logger})
	}
}

func WithTransport(transport http.RoundTripper) Option {
	return func(s *settings) {
		s.retry.HTTPClient.Transport = transport
	}
}

// WithTimeout sets the overall per-request timeout, including retries.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// Generates an HTTP client with defaults suited to synchronous moderation calls: few retries with short waits, since the caller
// holds its own deadline and degrades when it is exceeded. The returned client has the stdlib http.Client interface, but has
// Hashicorp retryablehttp logic internally.
//
// Retries on connection errors and 5xx status (except 501). 429 is returned to the caller untouched.
func NewClient(options ...Option) *http.Client {
	logger := LeveledSlog{inner: slog.Default().With("subsystem", "robusthttp")}
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(cleanhttp.DefaultPooledTransport())
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 1 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(logger)
	retryClient.CheckRetry = DefaultRetryPolicy

	s := &settings{retry: retryClient, timeout: 10 * time.Second}
	for _, option := range options {
		option(s)
	}

	client := retryClient.StandardClient()
	client.Timeout = s.timeout
	return client
}

// DefaultRetryPolicy is a custom wrapper around retryablehttp.DefaultRetryPolicy.
// It treats `429 Too Many Requests` as non-retryable, so the application can decide
// how to deal with rate-limiting.
func DefaultRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
