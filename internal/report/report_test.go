package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/certcrawler/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.CrawlReport {
	report := model.NewCrawlReport("11111111-2222-3333-4444-555555555555", "example.com")
	report.Seed = "https://example.com/"
	report.MaxDepth = 3
	report.Concurrency = 10
	report.FinishedAt = report.StartedAt.Add(1500 * time.Millisecond)

	crawl := model.NewCrawlResult(report.Seed, 3)
	home := model.NewPageFindings("https://example.com/")
	home.Resources[model.ResourceScript] = []string{"app.js"}
	login := model.NewPageFindings("https://example.com/login")
	login.HasForm = true
	login.Resources[model.ResourceScript] = []string{"app.js"}
	crawl.Pages = append(crawl.Pages, home, login)
	crawl.Outcomes = append(crawl.Outcomes,
		model.TaskOutcome{Task: model.CrawlTask{URL: home.URL}, State: model.TaskCompleted, StatusCode: 200},
		model.TaskOutcome{Task: model.CrawlTask{URL: login.URL, Depth: 1}, State: model.TaskCompleted, StatusCode: 200},
		model.TaskOutcome{Task: model.CrawlTask{URL: "https://example.com/gone", Depth: 1}, State: model.TaskFailed, StatusCode: 404, Error: "not found"},
	)
	crawl.Stats = model.CrawlStats{Dispatched: 3, Completed: 2, Failed: 1, SkippedVisited: 4, BytesFetched: 2048}
	crawl.Geo["example.com"] = &model.GeoRecord{Host: "example.com", Country: "Japan", City: "Tokyo", ISP: "Example", Query: "192.0.2.1"}
	report.Crawl = crawl

	report.Sensitive = &model.SensitiveDirectoryReport{
		Origin: "https://example.com",
		Probed: 17,
		Found:  []string{"https://example.com/.git"},
	}
	report.PerformedSteps = []string{"crawl", "probe"}
	return report
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes all sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithColor(false))
		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"CERTCRAWLER REPORT",
			"example.com",
			"Pages analyzed:   2",
			"Pages failed:     1",
			"2.0 kB",
			"[!] https://example.com/.git",
			"[+] https://example.com/login",
			"Tokyo, Japan",
			"Complete",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if strings.Contains(output, "\x1b[") {
			t.Error("expected no ANSI escapes with colors disabled")
		}
	})

	t.Run("verbose lists pages", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithColor(false), WithVerbose(true))
		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "fail d=1 https://example.com/gone (not found)") {
			t.Errorf("expected failed page line, got:\n%s", buf.String())
		}
	})

	t.Run("interrupted status", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Status = model.RunInterrupted
		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithColor(false)).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Interrupted (partial results)") {
			t.Error("expected interrupted status")
		}
	})

	t.Run("colors when forced", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithColor(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\x1b[") {
			t.Error("expected ANSI escapes with colors enabled")
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("compact output round trips the run ID", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded["run_id"] != "11111111-2222-3333-4444-555555555555" {
			t.Errorf("run_id = %v", decoded["run_id"])
		}
		if decoded["status"] != "completed" {
			t.Errorf("status = %v", decoded["status"])
		}
	})

	t.Run("version envelope", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint(), WithVersion("1.2.3")).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var decoded JSONReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Version != "1.2.3" {
			t.Errorf("Version = %q", decoded.Version)
		}
		if !strings.Contains(buf.String(), "\n  ") {
			t.Error("expected indented output")
		}
	})
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"# CertCrawler Report",
		"## Crawl Summary",
		"## Sensitive Paths",
		"https://example.com/.git",
		"## Pages With Forms",
		"Stylesheet",
		"Tokyo",
		"mermaid",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected markdown to contain %q", want)
		}
	}
}

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	mw := NewMultiWriter(NewJSONWriter(&a), NewSimpleWriter(&b, WithColor(false)))
	n, err := mw.Write(createTestReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != a.Len()+b.Len() {
		t.Errorf("n = %d, expected %d", n, a.Len()+b.Len())
	}
}

// TestArtifactFilename tests URL to file name mapping.
func TestArtifactFilename(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		url      string
		expected string
	}{
		{"https://a.com/", "https___a.com_.json"},
		{"https://a.com/x/y?q=1&r=2", "https___a.com_x_y_q_1_r_2.json"},
		{"http://a.com:8080/file-name_v1.html", "http___a.com_8080_file-name_v1.html.json"},
		{"https://a.com/café", "https___a.com_caf_.json"},
	}
	for _, tc := range testCases {
		if got := ArtifactFilename(tc.url); got != tc.expected {
			t.Errorf("ArtifactFilename(%q) = %q, expected %q", tc.url, got, tc.expected)
		}
	}
}

// TestArtifactWriter tests per-page artifact output.
func TestArtifactWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes scraped data with artifact field names", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "scraped")
		w := NewArtifactWriter(dir)
		page := model.NewPageFindings("https://a.com/login")
		page.Scraped = &model.ScrapedPage{
			Title:       "Login",
			Paragraphs:  []string{"Welcome back"},
			FormActions: []string{"/session"},
		}

		path, err := w.Write(page)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if filepath.Base(path) != "https___a.com_login.json" {
			t.Errorf("path = %q", path)
		}

		data, err := os.ReadFile(path) //nolint:gosec // test file in temp dir
		if err != nil {
			t.Fatalf("failed to read artifact: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		for _, key := range []string{"Title", "Paragraphs", "Form Links"} {
			if _, ok := decoded[key]; !ok {
				t.Errorf("missing key %q", key)
			}
		}
		if got := w.Written(); len(got) != 1 || got[0] != path {
			t.Errorf("Written() = %v", got)
		}
	})

	t.Run("skips pages without scraped data", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		w := NewArtifactWriter(dir)
		path, err := w.Write(model.NewPageFindings("https://a.com/"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if path != "" {
			t.Errorf("expected no file, got %q", path)
		}
		entries, _ := os.ReadDir(dir) //nolint:errcheck // empty on error
		if len(entries) != 0 {
			t.Errorf("expected empty dir, got %d entries", len(entries))
		}
	})
}
