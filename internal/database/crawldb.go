package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/certcrawler/internal/model"
)

// FileName is the name of the archive file inside the database directory.
const FileName = "certcrawler.db"

// CrawlDB stores finished crawl runs in SQLite.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the archive in dbDir.
// When CreateIfNotExists is false and no archive exists, ErrDatabaseMissing
// is returned and nothing is created on disk.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rwc"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseMissing, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		mode = "rw"
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the archive file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		seed TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		max_depth INTEGER,
		page_count INTEGER DEFAULT 0,
		failed_count INTEGER DEFAULT 0,
		sensitive_count INTEGER DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		status_code INTEGER,
		title TEXT,
		has_form INTEGER DEFAULT 0,
		resource_count INTEGER DEFAULT 0,
		content_hash TEXT,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_hash ON pages(content_hash);

	CREATE TABLE IF NOT EXISTS sensitive_paths (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		url TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS geo (
		host TEXT PRIMARY KEY,
		raw TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun archives a finished run in one transaction.
// Saving the same run ID twice replaces the earlier rows.
func (cdb *CrawlDB) SaveRun(ctx context.Context, report *model.CrawlReport) (err error) {
	if report == nil {
		return ErrNilReport
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{
		"DELETE FROM pages WHERE run_id = ?",
		"DELETE FROM sensitive_paths WHERE run_id = ?",
		"DELETE FROM runs WHERE run_id = ?",
	} {
		if _, err = tx.ExecContext(ctx, stmt, report.RunID); err != nil {
			return fmt.Errorf("failed to clear previous run: %w", err)
		}
	}

	failed := 0
	if report.Crawl != nil {
		failed = report.Crawl.Stats.Failed
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (run_id, target, seed, started_at, finished_at, status, max_depth,
		page_count, failed_count, sensitive_count, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		report.Target,
		report.Seed,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		string(report.Status),
		report.MaxDepth,
		report.PageCount(),
		failed,
		report.SensitiveCount(),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if err = insertPages(ctx, tx, report); err != nil {
		return err
	}

	if report.Sensitive != nil {
		for _, u := range report.Sensitive.Found {
			if _, err = tx.ExecContext(ctx,
				"INSERT INTO sensitive_paths (run_id, url) VALUES (?, ?)",
				report.RunID, u,
			); err != nil {
				return fmt.Errorf("failed to insert sensitive path: %w", err)
			}
		}
	}

	if report.Crawl != nil {
		for host, rec := range report.Crawl.Geo {
			if rec == nil {
				continue
			}
			if _, err = tx.ExecContext(ctx, `
			INSERT INTO geo (host, raw) VALUES (?, ?)
			ON CONFLICT(host) DO UPDATE SET raw = excluded.raw, updated_at = CURRENT_TIMESTAMP
			`, host, string(rec.Raw)); err != nil {
				return fmt.Errorf("failed to upsert geo record: %w", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

func insertPages(ctx context.Context, tx *sql.Tx, report *model.CrawlReport) error {
	if report.Crawl == nil {
		return nil
	}

	statuses := make(map[string]int, len(report.Crawl.Outcomes))
	for _, o := range report.Crawl.Outcomes {
		statuses[o.Task.URL] = o.StatusCode
	}

	for _, page := range report.Crawl.Pages {
		title := ""
		if page.Scraped != nil {
			title = page.Scraped.Title
		}
		_, err := tx.ExecContext(ctx, `
		INSERT INTO pages (run_id, url, depth, status_code, title, has_form, resource_count, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, url) DO NOTHING
		`,
			report.RunID,
			page.URL,
			page.Depth,
			statuses[page.URL],
			title,
			page.HasForm,
			page.ResourceCount(),
			page.ContentHash,
		)
		if err != nil {
			return fmt.Errorf("failed to insert page %s: %w", page.URL, err)
		}
	}
	return nil
}

// RunMetadata is the summary row of an archived run.
type RunMetadata struct {
	RunID          string
	Target         string
	Seed           string
	StartedAt      time.Time
	FinishedAt     time.Time
	Status         model.RunStatus
	MaxDepth       int
	PageCount      int
	FailedCount    int
	SensitiveCount int
}

// Duration returns how long the run took.
func (m RunMetadata) Duration() time.Duration {
	if m.FinishedAt.IsZero() {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt)
}

// GetRunHistory returns the runs for target, newest first.
// An empty target returns every archived run.
func (cdb *CrawlDB) GetRunHistory(ctx context.Context, target string) ([]RunMetadata, error) {
	query := `
	SELECT run_id, target, seed, started_at, finished_at, status, max_depth,
		page_count, failed_count, sensitive_count
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 1)
	if target != "" {
		query += " AND target = ?"
		args = append(args, target)
	}
	query += " ORDER BY started_at DESC"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var started string
		var finished sql.NullString
		var status string

		if err := rows.Scan(
			&meta.RunID,
			&meta.Target,
			&meta.Seed,
			&started,
			&finished,
			&status,
			&meta.MaxDepth,
			&meta.PageCount,
			&meta.FailedCount,
			&meta.SensitiveCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.StartedAt = parseTimestamp(started)
		if finished.Valid {
			meta.FinishedAt = parseTimestamp(finished.String)
		}
		meta.Status = model.RunStatus(status)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListTargets returns every archived target, sorted.
func (cdb *CrawlDB) ListTargets(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, "SELECT DISTINCT target FROM runs ORDER BY target")
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}

	return targets, rows.Err()
}

// GetRunReport returns the complete JSON report of a run.
func (cdb *CrawlDB) GetRunReport(ctx context.Context, runID string) (json.RawMessage, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, "SELECT report_json FROM runs WHERE run_id = ?", runID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}
	return json.RawMessage(reportJSON), nil
}

// PageRecord is an archived page row.
type PageRecord struct {
	RunID         string
	URL           string
	Depth         int
	StatusCode    int
	Title         string
	HasForm       bool
	ResourceCount int
	ContentHash   string
}

// GetPages returns the pages archived for a run, ordered by depth then URL.
func (cdb *CrawlDB) GetPages(ctx context.Context, runID string) ([]PageRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT run_id, url, depth, status_code, title, has_form, resource_count, content_hash
	FROM pages
	WHERE run_id = ?
	ORDER BY depth, url
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	var pages []PageRecord
	for rows.Next() {
		var p PageRecord
		var title, hash sql.NullString
		if err := rows.Scan(
			&p.RunID,
			&p.URL,
			&p.Depth,
			&p.StatusCode,
			&title,
			&p.HasForm,
			&p.ResourceCount,
			&hash,
		); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.Title = title.String
		p.ContentHash = hash.String
		pages = append(pages, p)
	}

	return pages, rows.Err()
}

// GetSensitivePaths returns the exposed paths recorded for a run.
func (cdb *CrawlDB) GetSensitivePaths(ctx context.Context, runID string) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx,
		"SELECT url FROM sensitive_paths WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sensitive paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan sensitive path: %w", err)
		}
		paths = append(paths, u)
	}

	return paths, rows.Err()
}

// GetGeoRecord returns the last archived geo payload for host.
func (cdb *CrawlDB) GetGeoRecord(ctx context.Context, host string) (*model.GeoRecord, error) {
	var raw string
	err := cdb.db.QueryRowContext(ctx, "SELECT raw FROM geo WHERE host = ?", host).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("geo record %s: %w", host, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get geo record: %w", err)
	}
	return &model.GeoRecord{Host: host, Raw: json.RawMessage(raw)}, nil
}

// storedTimestamp is fixed-width so that text ordering matches time ordering.
const storedTimestamp = "2006-01-02T15:04:05.000000000Z07:00"

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(storedTimestamp)
}

// parseTimestamp returns the zero time when s matches no known format.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
