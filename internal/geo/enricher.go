package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nao1215/certcrawler/internal/model"
)

// DefaultEndpoint is the lookup URL template; %s is replaced by the host.
const DefaultEndpoint = "http://ip-api.com/json/%s"

// lookupTimeout bounds a single lookup flight.
const lookupTimeout = 30 * time.Second

// maxPayloadSize caps the lookup response read.
const maxPayloadSize = 64 * 1024

// Enricher performs memoized host lookups. It is safe for concurrent use.
type Enricher struct {
	client   *http.Client
	endpoint string
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]*model.GeoRecord

	group   singleflight.Group
	lookups atomic.Int64
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithEndpoint sets the lookup URL template. It must contain one %s.
func WithEndpoint(endpoint string) Option {
	return func(e *Enricher) {
		e.endpoint = endpoint
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) {
		e.logger = logger
	}
}

// New creates an Enricher that sends lookups with client.
func New(client *http.Client, opts ...Option) *Enricher {
	e := &Enricher{
		client:   client,
		endpoint: DefaultEndpoint,
		logger:   slog.Default(),
		cache:    make(map[string]*model.GeoRecord),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns the record for host, looking it up on first use.
func (e *Enricher) Enrich(ctx context.Context, host string) (*model.GeoRecord, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return nil, &LookupError{Reason: "empty host"}
	}
	if rec, ok := e.Cached(host); ok {
		return rec, nil
	}

	// The flight outlives any single caller so one cancellation does not
	// fail the others waiting on the same host.
	ch := e.group.DoChan(host, func() (any, error) {
		// Another flight may have filled the cache between our miss and now.
		if rec, ok := e.Cached(host); ok {
			return rec, nil
		}
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		rec, err := e.lookup(flightCtx, host)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.cache[host] = rec
		e.mu.Unlock()
		return rec, nil
	})

	select {
	case <-ctx.Done():
		return nil, &LookupError{Host: host, Reason: "canceled", Cause: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.GeoRecord), nil //nolint:forcetypeassert // the flight only returns records
	}
}

// Cached returns the cached record for host without a lookup.
func (e *Enricher) Cached(host string) (*model.GeoRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.cache[strings.ToLower(host)]
	return rec, ok
}

// Records returns a copy of every cached record keyed by host.
func (e *Enricher) Records() map[string]*model.GeoRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]*model.GeoRecord, len(e.cache))
	for k, v := range e.cache {
		out[k] = v
	}
	return out
}

// Lookups returns the number of outbound lookups made so far.
func (e *Enricher) Lookups() int64 {
	return e.lookups.Load()
}

// payload is the subset of the lookup response copied into GeoRecord.
type payload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Country string `json:"country"`
	City    string `json:"city"`
	ISP     string `json:"isp"`
	Query   string `json:"query"`
}

func (e *Enricher) lookup(ctx context.Context, host string) (*model.GeoRecord, error) {
	e.lookups.Add(1)
	endpoint := fmt.Sprintf(e.endpoint, url.PathEscape(host))
	e.logger.Debug("geo lookup", "host", host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &LookupError{Host: host, Reason: "invalid request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &LookupError{Host: host, Reason: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &LookupError{Host: host, StatusCode: resp.StatusCode, Reason: "unexpected status"}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, &LookupError{Host: host, StatusCode: resp.StatusCode, Reason: "failed to read response", Cause: err}
	}
	if !json.Valid(raw) {
		return nil, &LookupError{Host: host, StatusCode: resp.StatusCode, Reason: "response is not JSON"}
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &LookupError{Host: host, StatusCode: resp.StatusCode, Reason: "unexpected response shape", Cause: err}
	}
	if strings.EqualFold(p.Status, "fail") {
		reason := "service reported failure"
		if p.Message != "" {
			reason += ": " + p.Message
		}
		return nil, &LookupError{Host: host, StatusCode: resp.StatusCode, Reason: reason}
	}

	return &model.GeoRecord{
		Host:    host,
		Raw:     json.RawMessage(raw),
		Query:   p.Query,
		Country: p.Country,
		City:    p.City,
		ISP:     p.ISP,
	}, nil
}
