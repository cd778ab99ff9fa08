package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/certcrawler/internal/database"
	"github.com/nao1215/certcrawler/internal/model"
)

// seedArchive stores one finished run for target and returns the archive dir.
func seedArchive(t *testing.T, runID, target string) string {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	rep := model.NewCrawlReport(runID, target)
	rep.Seed = "https://" + target + "/"
	rep.StartedAt = time.Now().Add(-time.Minute)
	rep.FinishedAt = rep.StartedAt.Add(2 * time.Second)
	if err := db.SaveRun(context.Background(), rep); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	return dir
}

func runHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"history"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	t.Run("missing archive is not an error", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No crawl history found") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("lists runs of a target", func(t *testing.T) {
		t.Parallel()

		dir := seedArchive(t, "run-abc", "example.com")
		out, err := runHistory(t, "--db-dir", dir, "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "run-abc") || !strings.Contains(out, "completed") {
			t.Errorf("expected run in output, got %q", out)
		}
	})

	t.Run("unknown target has no runs", func(t *testing.T) {
		t.Parallel()

		dir := seedArchive(t, "run-abc", "example.com")
		out, err := runHistory(t, "--db-dir", dir, "other.test")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No runs found for other.test") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("lists targets", func(t *testing.T) {
		t.Parallel()

		dir := seedArchive(t, "run-abc", "example.com")
		out, err := runHistory(t, "--db-dir", dir, "--list-targets")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "example.com") {
			t.Errorf("expected target in output, got %q", out)
		}
	})

	t.Run("prints a run report", func(t *testing.T) {
		t.Parallel()

		dir := seedArchive(t, "run-abc", "example.com")
		out, err := runHistory(t, "--db-dir", dir, "--run", "run-abc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, `"run_id"`) {
			t.Errorf("expected JSON report, got %q", out)
		}

		if _, err := runHistory(t, "--db-dir", dir, "--run", "missing"); err == nil {
			t.Error("expected error for unknown run")
		}
	})
}
