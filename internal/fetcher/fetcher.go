package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/nao1215/certcrawler/internal/model"
)

const (
	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024

	// DefaultRetryBackoff is the base wait between retries; attempt n waits n times this.
	DefaultRetryBackoff = 500 * time.Millisecond
)

// Fetcher issues GET requests and turns every outcome into a model.FetchResult.
// It is safe for concurrent use.
type Fetcher struct {
	client      *http.Client
	limiter     *DomainLimiter
	retries     int
	backoff     time.Duration
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLimiter sets the per-host politeness limiter.
func WithLimiter(l *DomainLimiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// WithRetries enables up to n additional attempts for network failures.
// Status codes, timeouts and cancellation are never retried.
func WithRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.retries = n
		}
	}
}

// WithRetryBackoff sets the base wait between retries.
func WithRetryBackoff(d time.Duration) Option {
	return func(f *Fetcher) {
		f.backoff = d
	}
}

// WithMaxBodySize caps how many bytes of a body are read.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher that sends requests with client.
// The client's timeout and redirect policy apply to every fetch.
func New(client *http.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      client,
		backoff:     DefaultRetryBackoff,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Limiter returns the politeness limiter, which may be nil.
func (f *Fetcher) Limiter() *DomainLimiter {
	return f.limiter
}

// Fetch performs one GET of rawURL, retrying network failures if configured.
//
// The result carries a body only when the status is exactly 200 and the body
// is non-empty. Any other status yields a FetchErrorHTTPStatus marker with no
// body. Redirects are followed by the underlying client.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) *model.FetchResult {
	var result *model.FetchResult
	for attempt := 0; ; attempt++ {
		result = f.fetchOnce(ctx, rawURL)
		if result.Err == nil || !result.Err.Retryable() || attempt >= f.retries {
			return result
		}

		f.logger.Debug("retrying fetch",
			"url", rawURL,
			"attempt", attempt+1,
			"error", result.Err.Cause,
		)
		timer := time.NewTimer(f.backoff * time.Duration(attempt+1))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return failure(rawURL, model.FetchErrorCanceled, ctx.Err())
		}
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) *model.FetchResult {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		if err == nil {
			err = fmt.Errorf("unsupported URL %q", rawURL)
		}
		return failure(rawURL, model.FetchErrorNetwork, err)
	}

	if err := f.limiter.Wait(ctx, parsed.Host); err != nil {
		return failure(rawURL, model.FetchErrorCanceled, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return failure(rawURL, model.FetchErrorNetwork, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return failure(rawURL, classify(ctx, err), err)
	}
	defer resp.Body.Close()

	result := &model.FetchResult{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096) //nolint:errcheck // best effort
		result.Err = &model.FetchError{
			Kind:       model.FetchErrorHTTPStatus,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
		}
		return result
	}

	body, err := f.readBody(resp)
	if err != nil {
		kind := classify(ctx, err)
		if kind == model.FetchErrorNetwork {
			kind = model.FetchErrorBody
		}
		result.Err = &model.FetchError{Kind: kind, URL: rawURL, StatusCode: resp.StatusCode, Cause: err}
		return result
	}
	if body == "" {
		result.Err = &model.FetchError{
			Kind:       model.FetchErrorBody,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Cause:      errors.New("empty body"),
		}
		return result
	}

	result.Body = body
	return result
}

// readBody reads up to maxBodySize bytes and decodes them to UTF-8 using the
// charset from the Content-Type header or the document's meta tags.
func (f *Fetcher) readBody(resp *http.Response) (string, error) {
	limited := io.LimitReader(resp.Body, f.maxBodySize)
	reader, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("failed to detect charset: %w", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(data), nil
}

// classify maps a transport error to a FetchErrorKind.
func classify(ctx context.Context, err error) model.FetchErrorKind {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return model.FetchErrorCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.FetchErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.FetchErrorTimeout
	}
	return model.FetchErrorNetwork
}

func failure(rawURL string, kind model.FetchErrorKind, cause error) *model.FetchResult {
	return &model.FetchResult{
		URL: rawURL,
		Err: &model.FetchError{Kind: kind, URL: rawURL, Cause: cause},
	}
}
