package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newLookupServer answers lookups with a fixed record and counts hits per host.
func newLookupServer(t *testing.T, delay time.Duration) (*httptest.Server, *sync.Map) {
	t.Helper()

	var hits sync.Map
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := strings.TrimPrefix(r.URL.Path, "/json/")
		n, _ := hits.LoadOrStore(host, new(atomic.Int32))
		n.(*atomic.Int32).Add(1) //nolint:forcetypeassert // test helper
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"success","country":"Japan","city":"Tokyo","isp":"Example ISP","query":"192.0.2.1","host":%q}`, host)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func hitCount(hits *sync.Map, host string) int32 {
	n, ok := hits.Load(host)
	if !ok {
		return 0
	}
	return n.(*atomic.Int32).Load() //nolint:forcetypeassert // test helper
}

// TestEnrichCaches verifies the second call for a host is served from cache.
func TestEnrichCaches(t *testing.T) {
	t.Parallel()

	server, hits := newLookupServer(t, 0)
	e := New(server.Client(), WithEndpoint(server.URL+"/json/%s"), WithLogger(quietLogger()))

	first, err := e.Enrich(context.Background(), "h.example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := e.Enrich(context.Background(), "H.example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != second {
		t.Error("expected the cached record to be returned")
	}
	if got := hitCount(hits, "h.example"); got != 1 {
		t.Errorf("lookups = %d, expected 1", got)
	}
	if e.Lookups() != 1 {
		t.Errorf("Lookups() = %d, expected 1", e.Lookups())
	}
	if first.Country != "Japan" || first.City != "Tokyo" || first.ISP != "Example ISP" || first.Query != "192.0.2.1" {
		t.Errorf("unexpected record: %+v", first)
	}
	if !strings.Contains(string(first.Raw), `"status":"success"`) {
		t.Errorf("expected raw payload, got %s", first.Raw)
	}
}

// TestEnrichConcurrent verifies concurrent callers for one host share one lookup.
func TestEnrichConcurrent(t *testing.T) {
	t.Parallel()

	server, hits := newLookupServer(t, 50*time.Millisecond)
	e := New(server.Client(), WithEndpoint(server.URL+"/json/%s"), WithLogger(quietLogger()))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Enrich(context.Background(), "h.example"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	if got := hitCount(hits, "h.example"); got != 1 {
		t.Errorf("lookups = %d, expected 1", got)
	}
}

// TestEnrichDistinctHosts verifies the cache is keyed by host.
func TestEnrichDistinctHosts(t *testing.T) {
	t.Parallel()

	server, hits := newLookupServer(t, 0)
	e := New(server.Client(), WithEndpoint(server.URL+"/json/%s"), WithLogger(quietLogger()))

	for _, host := range []string{"a.example", "b.example", "a.example"} {
		if _, err := e.Enrich(context.Background(), host); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if hitCount(hits, "a.example") != 1 || hitCount(hits, "b.example") != 1 {
		t.Error("expected one lookup per host")
	}
	if len(e.Records()) != 2 {
		t.Errorf("Records() has %d entries, expected 2", len(e.Records()))
	}
}

// TestEnrichFailures verifies failures are reported and never cached.
func TestEnrichFailures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "non-JSON body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "<html>rate limited</html>")
			},
		},
		{
			name: "service reports failure",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"status":"fail","message":"invalid query"}`)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tc.handler(w, r)
			}))
			defer server.Close()

			e := New(server.Client(), WithEndpoint(server.URL+"/json/%s"), WithLogger(quietLogger()))
			for range 2 {
				_, err := e.Enrich(context.Background(), "h.example")
				var lookupErr *LookupError
				if !errors.As(err, &lookupErr) {
					t.Fatalf("expected *LookupError, got %v", err)
				}
				if lookupErr.Host != "h.example" {
					t.Errorf("Host = %q", lookupErr.Host)
				}
			}
			if _, ok := e.Cached("h.example"); ok {
				t.Error("failed lookup must not be cached")
			}
			if calls.Load() != 2 {
				t.Errorf("calls = %d, expected a retry after failure", calls.Load())
			}
		})
	}
}

// TestEnrichTransportFailure verifies that connection errors become LookupErrors.
func TestEnrichTransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/json/%s"
	server.Close()

	e := New(&http.Client{Timeout: time.Second}, WithEndpoint(endpoint), WithLogger(quietLogger()))
	_, err := e.Enrich(context.Background(), "h.example")
	var lookupErr *LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("expected *LookupError, got %v", err)
	}
	if lookupErr.Cause == nil {
		t.Error("expected underlying cause")
	}
}

// TestEnrichEmptyHost verifies an empty host is rejected without a lookup.
func TestEnrichEmptyHost(t *testing.T) {
	t.Parallel()

	e := New(http.DefaultClient, WithLogger(quietLogger()))
	if _, err := e.Enrich(context.Background(), "  "); err == nil {
		t.Error("expected error for empty host")
	}
	if e.Lookups() != 0 {
		t.Errorf("Lookups() = %d, expected 0", e.Lookups())
	}
}

// TestEnrichCallerCancel verifies a caller that gives up does not fail
// another caller waiting on the same host.
func TestEnrichCallerCancel(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		started <- struct{}{}
		<-release
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"success","country":"Japan","query":"192.0.2.1"}`)
	}))
	t.Cleanup(server.Close)

	e := New(server.Client(), WithEndpoint(server.URL+"/json/%s"), WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := e.Enrich(ctx, "h.example")
		firstErr <- err
	}()
	<-started

	type outcome struct {
		country string
		err     error
	}
	second := make(chan outcome, 1)
	go func() {
		rec, err := e.Enrich(context.Background(), "h.example")
		if err != nil {
			second <- outcome{err: err}
			return
		}
		second <- outcome{country: rec.Country}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("expected the canceled caller to see context.Canceled, got %v", err)
	}

	close(release)
	got := <-second
	if got.err != nil {
		t.Fatalf("unexpected error for the waiting caller: %v", got.err)
	}
	if got.country != "Japan" {
		t.Errorf("Country = %q, expected %q", got.country, "Japan")
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, expected 1", n)
	}
	if _, ok := e.Cached("h.example"); !ok {
		t.Error("expected the record to be cached")
	}
}
