// Package warehouse provides the SQLite-backed warehouse tables: raw post
// and comment loads plus the immutable pipeline_runs provenance registry.
package warehouse

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"

	"github.com/redlake/redlake/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Target tables for batch loads.
const (
	PostsTable    = "posts_raw"
	CommentsTable = "comments_raw"
)

// Warehouse handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Warehouse struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates a Warehouse at dbPath, creating tables if needed. File-based
// databases use WAL mode; ":memory:" gets a single shared-cache connection.
func Open(dbPath string) (*Warehouse, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	w := &Warehouse{db: db}
	if err := w.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return w, nil
}

func (w *Warehouse) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts_raw (
		post_id TEXT NOT NULL,
		title TEXT,
		body TEXT,
		subreddit TEXT,
		author_hash TEXT,
		created_utc TEXT,
		score INTEGER,
		num_comments INTEGER,
		permalink TEXT,
		sentiment_score REAL,
		fetched_at TEXT
	);

	CREATE TABLE IF NOT EXISTS comments_raw (
		comment_id TEXT NOT NULL,
		post_id TEXT,
		body TEXT,
		score INTEGER,
		author_hash TEXT,
		created_utc TEXT,
		sentiment_score REAL,
		fetched_at TEXT
	);

	CREATE TABLE IF NOT EXISTS pipeline_runs (
		entry_id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		source_prefix TEXT NOT NULL,
		target_table TEXT NOT NULL,
		file_count INTEGER NOT NULL,
		checksum TEXT,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_raw_created ON posts_raw(created_utc);
	CREATE INDEX IF NOT EXISTS idx_comments_raw_post ON comments_raw(post_id);
	CREATE INDEX IF NOT EXISTS idx_runs_run_id ON pipeline_runs(run_id);
	`
	if _, err := w.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (w *Warehouse) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.db.Close()
}

// LoadNDJSON appends the NDJSON payload into table (append-only, matching a
// WRITE_APPEND batch load). Returns the number of rows inserted. Blank
// lines are skipped; a malformed line fails the whole load and rolls back.
func (w *Warehouse) LoadNDJSON(ctx context.Context, table string, data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin load: %w", err)
	}

	var rows int
	switch table {
	case PostsTable:
		rows, err = loadLines(tx, data, insertPost)
	case CommentsTable:
		rows, err = loadLines(tx, data, insertComment)
	default:
		err = fmt.Errorf("unknown target table %q", table)
	}
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("load %s: %w", table, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit load: %w", err)
	}
	return rows, nil
}

func loadLines[T any](tx *sql.Tx, data []byte, insert func(*sql.Tx, T) error) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	rows := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			return 0, fmt.Errorf("line %d: %w", rows+1, err)
		}
		if err := insert(tx, rec); err != nil {
			return 0, fmt.Errorf("insert line %d: %w", rows+1, err)
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan: %w", err)
	}
	return rows, nil
}

func insertPost(tx *sql.Tx, p model.PostRecord) error {
	_, err := tx.Exec(`
		INSERT INTO posts_raw (
			post_id, title, body, subreddit, author_hash, created_utc,
			score, num_comments, permalink, sentiment_score, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PostID, p.Title, p.Body, p.Subreddit, nullable(p.AuthorHash), p.CreatedUTC,
		p.Score, p.NumComments, p.Permalink, p.SentimentScore, p.FetchedAt)
	return err
}

func insertComment(tx *sql.Tx, c model.CommentRecord) error {
	_, err := tx.Exec(`
		INSERT INTO comments_raw (
			comment_id, post_id, body, score, author_hash, created_utc,
			sentiment_score, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CommentID, c.PostID, c.Body, c.Score, nullable(c.AuthorHash), c.CreatedUTC,
		c.SentimentScore, c.FetchedAt)
	return err
}

// RecordRun inserts one provenance row. Rows are never updated or deleted.
func (w *Warehouse) RecordRun(ctx context.Context, entry model.PipelineRunEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (
			entry_id, run_id, timestamp, source_prefix, target_table,
			file_count, checksum, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EntryID, entry.RunID, entry.Timestamp, entry.SourcePrefix,
		entry.TargetTable, entry.FileCount, nullable(entry.Checksum), entry.Status)
	if err != nil {
		return fmt.Errorf("record pipeline run: %w", err)
	}
	return nil
}

// Runs returns the most recent provenance entries, newest first.
func (w *Warehouse) Runs(ctx context.Context, limit int) ([]model.PipelineRunEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows, err := w.db.QueryContext(ctx, `
		SELECT entry_id, run_id, timestamp, source_prefix, target_table,
		       file_count, COALESCE(checksum, ''), status
		FROM pipeline_runs
		ORDER BY timestamp DESC, entry_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var entries []model.PipelineRunEntry
	for rows.Next() {
		var e model.PipelineRunEntry
		if err := rows.Scan(&e.EntryID, &e.RunID, &e.Timestamp, &e.SourcePrefix,
			&e.TargetTable, &e.FileCount, &e.Checksum, &e.Status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountRows returns the row count of a loaded table.
func (w *Warehouse) CountRows(ctx context.Context, table string) (int, error) {
	if table != PostsTable && table != CommentsTable {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var n int
	if err := w.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// nullable maps "" to SQL NULL so absent fields stay absent in the table.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
