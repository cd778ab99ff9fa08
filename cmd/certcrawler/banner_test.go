package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintBanner(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printBanner(&buf)

	out := buf.String()
	if strings.Count(out, "\n") < 3 {
		t.Errorf("expected a multi-line banner, got %q", out)
	}
	if !strings.Contains(out, "same-origin crawler") {
		t.Errorf("expected tagline, got %q", out)
	}
}
