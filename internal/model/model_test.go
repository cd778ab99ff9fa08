package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// TestTaskState tests the TaskState helpers.
func TestTaskState(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		state    TaskState
		name     string
		terminal bool
	}{
		{TaskPending, "pending", false},
		{TaskDispatched, "dispatched", false},
		{TaskCompleted, "completed", true},
		{TaskSkipped, "skipped", true},
		{TaskFailed, "failed", true},
		{TaskState(99), "unknown", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.state.String(); got != tc.name {
				t.Errorf("String() = %q, expected %q", got, tc.name)
			}
			if got := tc.state.IsTerminal(); got != tc.terminal {
				t.Errorf("IsTerminal() = %v, expected %v", got, tc.terminal)
			}
		})
	}
}

// TestTaskOutcomeJSON verifies task states serialize by name.
func TestTaskOutcomeJSON(t *testing.T) {
	t.Parallel()

	outcome := TaskOutcome{
		Task:       CrawlTask{URL: "https://a.com/", Depth: 1},
		State:      TaskFailed,
		StatusCode: 404,
	}
	data, err := json.Marshal(outcome)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"state":"failed"`) {
		t.Errorf("expected state by name, got %s", data)
	}
}

// TestFetchError tests FetchError formatting and classification.
func TestFetchError(t *testing.T) {
	t.Parallel()

	t.Run("http status message includes code", func(t *testing.T) {
		t.Parallel()
		err := &FetchError{Kind: FetchErrorHTTPStatus, URL: "https://a.com/x", StatusCode: 404}
		if !strings.Contains(err.Error(), "404") {
			t.Errorf("expected status in message, got %q", err.Error())
		}
		if err.Retryable() {
			t.Error("status errors must not be retryable")
		}
	})

	t.Run("unwraps cause", func(t *testing.T) {
		t.Parallel()
		err := &FetchError{Kind: FetchErrorTimeout, URL: "https://a.com/", Cause: context.DeadlineExceeded}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Error("expected errors.Is to find the cause")
		}
	})

	t.Run("network errors are retryable", func(t *testing.T) {
		t.Parallel()
		err := &FetchError{Kind: FetchErrorNetwork, URL: "https://a.com/", Cause: errors.New("connection refused")}
		if !err.Retryable() {
			t.Error("expected network error to be retryable")
		}
	})

	t.Run("IsFetchErrorKind sees through wrapping", func(t *testing.T) {
		t.Parallel()
		wrapped := fmt.Errorf("crawl: %w", &FetchError{Kind: FetchErrorCanceled, URL: "https://a.com/"})
		if !IsFetchErrorKind(wrapped, FetchErrorCanceled) {
			t.Error("expected canceled kind")
		}
		if IsFetchErrorKind(wrapped, FetchErrorNetwork) {
			t.Error("did not expect network kind")
		}
		if IsFetchErrorKind(errors.New("plain"), FetchErrorNetwork) {
			t.Error("plain errors have no kind")
		}
	})
}

// TestFetchResult tests the FetchResult accessors.
func TestFetchResult(t *testing.T) {
	t.Parallel()

	t.Run("OK requires 200 and a body", func(t *testing.T) {
		t.Parallel()
		cases := []struct {
			name     string
			result   *FetchResult
			expected bool
		}{
			{"nil", nil, false},
			{"200 with body", &FetchResult{StatusCode: 200, Body: "<p>x</p>"}, true},
			{"200 empty body", &FetchResult{StatusCode: 200}, false},
			{"404", &FetchResult{StatusCode: 404, Err: &FetchError{Kind: FetchErrorHTTPStatus}}, false},
			{"body with error", &FetchResult{StatusCode: 200, Body: "x", Err: &FetchError{Kind: FetchErrorBody}}, false},
		}
		for _, c := range cases {
			if got := c.result.OK(); got != c.expected {
				t.Errorf("%s: OK() = %v, expected %v", c.name, got, c.expected)
			}
		}
	})

	t.Run("BaseURL prefers final URL", func(t *testing.T) {
		t.Parallel()
		r := &FetchResult{URL: "https://a.com/old", FinalURL: "https://a.com/new/"}
		if r.BaseURL() != "https://a.com/new/" {
			t.Errorf("BaseURL() = %q", r.BaseURL())
		}
		r = &FetchResult{URL: "https://a.com/old"}
		if r.BaseURL() != "https://a.com/old" {
			t.Errorf("BaseURL() = %q", r.BaseURL())
		}
	})

	t.Run("Hash is stable and hex encoded", func(t *testing.T) {
		t.Parallel()
		a := &FetchResult{Body: "hello"}
		b := &FetchResult{Body: "hello"}
		if a.Hash() != b.Hash() {
			t.Error("expected identical bodies to hash identically")
		}
		if len(a.Hash()) != 64 {
			t.Errorf("expected 64 hex chars, got %d", len(a.Hash()))
		}
		if (&FetchResult{}).Hash() != "" {
			t.Error("expected empty hash for empty body")
		}
	})
}

// TestNewPageFindings verifies every resource kind starts as an empty slice.
func TestNewPageFindings(t *testing.T) {
	t.Parallel()

	p := NewPageFindings("https://a.com/")
	for _, kind := range ResourceKinds {
		sources, ok := p.Resources[kind]
		if !ok {
			t.Errorf("missing kind %s", kind)
			continue
		}
		if sources == nil || len(sources) != 0 {
			t.Errorf("kind %s: expected empty non-nil slice, got %v", kind, sources)
		}
	}
	if p.ResourceCount() != 0 {
		t.Errorf("ResourceCount() = %d, expected 0", p.ResourceCount())
	}

	p.Resources[ResourceImage] = append(p.Resources[ResourceImage], "a.png", "b.png")
	p.Resources[ResourceScript] = append(p.Resources[ResourceScript], "app.js")
	if p.ResourceCount() != 3 {
		t.Errorf("ResourceCount() = %d, expected 3", p.ResourceCount())
	}
}

// TestScrapedPageJSON checks the artifact field names.
func TestScrapedPageJSON(t *testing.T) {
	t.Parallel()

	page := ScrapedPage{
		Title:       "Home",
		Paragraphs:  []string{"one"},
		FormActions: []string{"/login"},
	}
	data, err := json.Marshal(page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{`"Title"`, `"Paragraphs"`, `"Form Links"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("expected key %s in %s", key, data)
		}
	}
}

// TestCrawlResultHelpers tests the CrawlResult accessors.
func TestCrawlResultHelpers(t *testing.T) {
	t.Parallel()

	r := NewCrawlResult("https://a.com/", 2)
	r.Outcomes = append(r.Outcomes,
		TaskOutcome{Task: CrawlTask{URL: "https://a.com/y", Depth: 1}, State: TaskCompleted},
		TaskOutcome{Task: CrawlTask{URL: "https://a.com/", Depth: 0}, State: TaskCompleted},
	)
	withForm := NewPageFindings("https://a.com/y")
	withForm.HasForm = true
	r.Pages = append(r.Pages, NewPageFindings("https://a.com/"), withForm)

	urls := r.DispatchedURLs()
	if len(urls) != 2 || urls[0] != "https://a.com/" || urls[1] != "https://a.com/y" {
		t.Errorf("DispatchedURLs() = %v", urls)
	}
	forms := r.FormPages()
	if len(forms) != 1 || forms[0] != "https://a.com/y" {
		t.Errorf("FormPages() = %v", forms)
	}
}

// TestCrawlReport tests the CrawlReport constructor and accessors.
func TestCrawlReport(t *testing.T) {
	t.Parallel()

	report := NewCrawlReport("run-1", "example.com")

	t.Run("defaults to completed", func(t *testing.T) {
		t.Parallel()
		if report.Status != RunCompleted {
			t.Errorf("Status = %q, expected %q", report.Status, RunCompleted)
		}
	})

	t.Run("sets start time", func(t *testing.T) {
		t.Parallel()
		if time.Since(report.StartedAt) > time.Second {
			t.Error("StartedAt is too old")
		}
	})

	t.Run("counts are zero without results", func(t *testing.T) {
		t.Parallel()
		if report.PageCount() != 0 || report.SensitiveCount() != 0 {
			t.Error("expected zero counts")
		}
		if report.Duration() != 0 {
			t.Error("expected zero duration before finish")
		}
	})

	t.Run("duration after finish", func(t *testing.T) {
		t.Parallel()
		r := NewCrawlReport("run-2", "example.com")
		r.FinishedAt = r.StartedAt.Add(3 * time.Second)
		if r.Duration() != 3*time.Second {
			t.Errorf("Duration() = %v", r.Duration())
		}
	})
}
