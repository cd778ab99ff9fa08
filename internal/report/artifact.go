package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nao1215/certcrawler/internal/model"
)

// DefaultArtifactDir is where per-page artifacts are written by default.
const DefaultArtifactDir = "scraped"

// ArtifactWriter writes one JSON file per scraped page.
// File names are derived from the page URL, so crawling the same page again
// overwrites its artifact.
type ArtifactWriter struct {
	dir string

	mu      sync.Mutex
	written []string
}

// NewArtifactWriter creates a writer that stores artifacts in dir.
// The directory is created on first write.
func NewArtifactWriter(dir string) *ArtifactWriter {
	return &ArtifactWriter{dir: dir}
}

// Dir returns the output directory.
func (w *ArtifactWriter) Dir() string {
	return w.dir
}

// Write stores the scraped data of page and returns the file path.
// Pages without scraped data are skipped and return an empty path.
func (w *ArtifactWriter) Write(page *model.PageFindings) (string, error) {
	if page == nil || page.Scraped == nil {
		return "", nil
	}

	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	data, err := json.MarshalIndent(page.Scraped, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode artifact for %s: %w", page.URL, err)
	}

	path := filepath.Join(w.dir, ArtifactFilename(page.URL))
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	w.mu.Lock()
	w.written = append(w.written, path)
	w.mu.Unlock()
	return path, nil
}

// Written returns the paths written so far, in write order.
func (w *ArtifactWriter) Written() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.written))
	copy(out, w.written)
	return out
}

// ArtifactFilename maps a URL to a file name: every character outside
// [A-Za-z0-9._-] becomes "_" and ".json" is appended.
func ArtifactFilename(pageURL string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, pageURL)
	return name + ".json"
}
