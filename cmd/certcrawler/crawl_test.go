package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/certcrawler/internal/config"
	"github.com/nao1215/certcrawler/internal/model"
	"github.com/nao1215/certcrawler/internal/report"
)

func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	flags := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"depth", "d", "3"},
		{"concurrency", "n", "10"},
		{"delay", "", "1s"},
		{"timeout", "t", "10s"},
		{"max-pages", "p", "0"},
		{"grace", "", "5s"},
		{"batch", "b", "1"},
		{"output-dir", "o", "scraped"},
		{"json", "j", "false"},
		{"markdown", "m", "false"},
		{"config", "c", ""},
	}
	for _, tt := range flags {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("shorthand = %q, want %q", flag.Shorthand, tt.shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("default = %q, want %q", flag.DefValue, tt.defValue)
			}
		})
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("maps flags onto the config", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		err := cmd.Flags().Parse([]string{
			"-d", "1", "-n", "4", "--delay", "250ms", "-p", "20",
			"--no-geo", "--no-db", "--json", "-o", "out",
		})
		if err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd, []string{"example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.MaxDepth != 1 || !cfg.ExplicitDepth {
			t.Errorf("depth = %d explicit = %v", cfg.MaxDepth, cfg.ExplicitDepth)
		}
		if cfg.Concurrency != 4 || cfg.CrawlDelay != 250*time.Millisecond || cfg.MaxPages != 20 {
			t.Errorf("unexpected traversal settings: %+v", cfg)
		}
		if !cfg.NoGeo || cfg.SaveToDB || !cfg.JSONReport || cfg.OutputDir != "out" {
			t.Errorf("unexpected feature settings: %+v", cfg)
		}
		if len(cfg.Targets) != 1 || cfg.Targets[0] != "example.com" {
			t.Errorf("Targets = %v", cfg.Targets)
		}
	})

	t.Run("default depth is not explicit", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.Flags().Parse(nil); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildConfig(cmd, []string{"example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ExplicitDepth || cfg.MaxDepth != config.DefaultMaxDepth {
			t.Errorf("depth = %d explicit = %v", cfg.MaxDepth, cfg.ExplicitDepth)
		}
	})

	t.Run("loads explicit config file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "crawl.yaml")
		content := "sites:\n  example.com:\n    depth: 0\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewCrawlCmd()
		if err := cmd.Flags().Parse([]string{"-c", path}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildConfig(cmd, []string{"example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := cfg.DepthFor("example.com"); got != 0 {
			t.Errorf("DepthFor = %d, want 0 from the site entry", got)
		}
	})

	t.Run("missing explicit config file is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.Flags().Parse([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		if _, err := buildConfig(cmd, []string{"example.com"}); !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("prompts when no target is given", func(t *testing.T) {
		t.Parallel()

		var out, errOut bytes.Buffer
		cmd := NewCrawlCmd()
		cmd.SetIn(strings.NewReader("  example.org \n"))
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		if err := cmd.Flags().Parse(nil); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Targets) != 1 || cfg.Targets[0] != "example.org" {
			t.Errorf("Targets = %v", cfg.Targets)
		}
		if errOut.String() != targetPrompt {
			t.Errorf("prompt = %q", errOut.String())
		}
		if out.Len() != 0 {
			t.Errorf("expected nothing on stdout, got %q", out.String())
		}
	})
}

func TestPromptTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"line", "example.com\n", "example.com", nil},
		{"no trailing newline", "example.com", "example.com", nil},
		{"empty", "\n", "", config.ErrNoTarget},
		{"eof", "", "", config.ErrNoTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := promptTarget(strings.NewReader(tt.input), &bytes.Buffer{})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("target = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	if _, ok := newReportWriter(&config.Config{JSONReport: true}, &bytes.Buffer{}).(*report.JSONWriter); !ok {
		t.Error("expected JSONWriter for --json")
	}
	if _, ok := newReportWriter(&config.Config{MarkdownReport: true}, &bytes.Buffer{}).(*report.MarkdownWriter); !ok {
		t.Error("expected MarkdownWriter for --markdown")
	}
	if _, ok := newReportWriter(&config.Config{}, &bytes.Buffer{}).(*report.SimpleWriter); !ok {
		t.Error("expected SimpleWriter by default")
	}
}

func TestRunCrawlCmd(t *testing.T) {
	t.Parallel()

	t.Run("conflicting formats are a configuration error", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"crawl", "--json", "--markdown", "--no-db", "example.com"})

		if err := root.Execute(); !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})

	t.Run("aborted crawl exits with an error", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		root := NewRootCmd()
		root.SetOut(&out)
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{
			"crawl", "--no-banner", "--no-db", "--no-geo",
			"-o", t.TempDir(), "ftp://example.com",
		})

		err := root.Execute()
		if !errors.Is(err, errRunAborted) {
			t.Fatalf("expected errRunAborted, got %v", err)
		}
		if !strings.Contains(out.String(), "Aborted") {
			t.Errorf("expected the summary to show the abort, got %q", out.String())
		}
	})

	t.Run("banner stays off the JSON summary", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body></body></html>`))
		}))
		defer srv.Close()

		var out, errOut bytes.Buffer
		root := NewRootCmd()
		root.SetOut(&out)
		root.SetErr(&errOut)
		root.SetArgs([]string{
			"crawl", "--no-db", "--no-geo", "--json",
			"--delay", "0", "-o", t.TempDir(),
			srv.URL,
		})
		if err := root.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(out.Bytes(), &envelope); err != nil {
			t.Fatalf("summary is not JSON: %v\n%s", err, out.String())
		}
		if _, ok := envelope["report"]; !ok {
			t.Errorf("expected a report key, got %v", envelope)
		}
		if !strings.Contains(errOut.String(), "same-origin crawler") {
			t.Errorf("expected the banner on stderr, got %q", errOut.String())
		}
	})

	t.Run("crawls a site and archives the run", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			switch r.URL.Path {
			case "/":
				_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body>
<a href="/about">About</a><a href="https://other.com/">Out</a></body></html>`))
			case "/about":
				_, _ = w.Write([]byte(`<html><head><title>About</title></head><body>
<form action="/contact"></form></body></html>`))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer srv.Close()

		artifactDir := t.TempDir()
		dbDir := t.TempDir()

		var out bytes.Buffer
		root := NewRootCmd()
		root.SetOut(&out)
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{
			"crawl", "--no-banner", "--no-geo", "--json",
			"--delay", "0", "-d", "1",
			"-o", artifactDir, "--db-dir", dbDir,
			srv.URL,
		})
		if err := root.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var envelope struct {
			Report struct {
				RunID  string          `json:"run_id"`
				Status model.RunStatus `json:"status"`
				Crawl  struct {
					Pages []json.RawMessage `json:"pages"`
				} `json:"crawl"`
			} `json:"report"`
		}
		if err := json.Unmarshal(out.Bytes(), &envelope); err != nil {
			t.Fatalf("summary is not JSON: %v\n%s", err, out.String())
		}
		rep := envelope.Report
		if rep.Status != model.RunCompleted {
			t.Errorf("Status = %q, want completed", rep.Status)
		}
		if len(rep.Crawl.Pages) != 2 {
			t.Errorf("expected 2 pages, got %d", len(rep.Crawl.Pages))
		}

		entries, err := os.ReadDir(artifactDir)
		if err != nil {
			t.Fatalf("failed to read artifact dir: %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("expected 2 artifacts, got %d", len(entries))
		}

		var history bytes.Buffer
		root = NewRootCmd()
		root.SetOut(&history)
		root.SetArgs([]string{"history", "--db-dir", dbDir, srv.URL})
		if err := root.Execute(); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(history.String(), rep.RunID) {
			t.Errorf("expected run %s in history, got %q", rep.RunID, history.String())
		}
	})
}
