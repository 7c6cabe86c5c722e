package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/mrjrask/oled-display-waveshare-1in5/pkg/schema"
)

// Version is one entry in the append-only configuration ledger.
type Version struct {
	ID        string         `json:"id"`
	Seq       int64          `json:"seq"`
	CreatedAt time.Time      `json:"created_at"`
	Actor     string         `json:"actor"`
	Summary   string         `json:"summary"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Ledger persists saved configurations with diff summaries and supports
// rollback. History is append-only: a rollback records a new version
// rather than rewriting the past. Backed by libSQL (embedded SQLite).
type Ledger struct {
	db *sql.DB
}

// Open opens a ledger database at the given path. The path should be a
// file URI, e.g. "file:/path/to/history.db".
func Open(dbPath string) (*Ledger, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "open ledger").WithCause(err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &Ledger{db: db}, nil
}

// Migrate runs all pending database migrations.
func (l *Ledger) Migrate(ctx context.Context) error {
	return runMigrations(ctx, l.db)
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

// Save appends a new version. When summary is empty, a diff summary
// against the latest stored version is computed.
func (l *Ledger) Save(ctx context.Context, doc *schema.Document, actor, summary string, metadata map[string]any) (*Version, error) {
	configJSON, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "marshal document").WithCause(err)
	}

	if summary == "" {
		_, prev, err := l.Latest(ctx)
		if err != nil {
			return nil, err
		}
		summary = SummarizeDiff(prev, doc)
	}

	var metadataJSON any
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeStore, "marshal metadata").WithCause(err)
		}
		metadataJSON = string(b)
	}

	v := &Version{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Actor:     actor,
		Summary:   summary,
		Metadata:  metadata,
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO config_versions (id, created_at, actor, summary, config_json, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.CreatedAt, v.Actor, v.Summary, string(configJSON), metadataJSON,
	)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "insert version").WithCause(err)
	}
	if seq, err := res.LastInsertId(); err == nil {
		v.Seq = seq
	}
	return v, nil
}

// ListVersions returns version metadata, newest first.
func (l *Ledger) ListVersions(ctx context.Context, limit int) ([]*Version, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT seq, id, created_at, actor, summary, metadata_json
		 FROM config_versions ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list versions").WithCause(err)
	}
	defer rows.Close()

	var out []*Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVersion loads one version and its stored document.
func (l *Ledger) GetVersion(ctx context.Context, id string) (*Version, *schema.Document, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT seq, id, created_at, actor, summary, metadata_json, config_json
		 FROM config_versions WHERE id = ?`, id)
	return scanVersionWithConfig(row, id)
}

// Latest returns the most recent version and document, or nils when the
// ledger is empty.
func (l *Ledger) Latest(ctx context.Context) (*Version, *schema.Document, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT seq, id, created_at, actor, summary, metadata_json, config_json
		 FROM config_versions ORDER BY seq DESC LIMIT 1`)
	v, doc, err := scanVersionWithConfig(row, "")
	if engErr, ok := err.(*schema.EngineError); ok && engErr.Code == schema.ErrCodeNotFound {
		return nil, nil, nil
	}
	return v, doc, err
}

// Rollback loads the target version's document and records it as a new
// version, preserving history.
func (l *Ledger) Rollback(ctx context.Context, id, actor string) (*schema.Document, error) {
	_, doc, err := l.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	_, err = l.Save(ctx, doc, actor,
		fmt.Sprintf("Rollback to version %s", id),
		map[string]any{"rollback_from": id})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Prune removes versions beyond the retention count and older than
// maxAge (zero disables the age check), oldest first. The single most
// recent version is never removed. Returns the number pruned.
func (l *Ledger) Prune(ctx context.Context, retain int, maxAge time.Duration) (int, error) {
	if retain < 1 {
		retain = 1
	}
	pruned := 0

	res, err := l.db.ExecContext(ctx,
		`DELETE FROM config_versions WHERE seq IN (
			SELECT seq FROM config_versions ORDER BY seq DESC LIMIT -1 OFFSET ?
		)`, retain)
	if err != nil {
		return 0, schema.NewError(schema.ErrCodeStore, "prune by count").WithCause(err)
	}
	if n, err := res.RowsAffected(); err == nil {
		pruned += int(n)
	}

	if maxAge > 0 {
		cutoff := time.Now().UTC().Add(-maxAge)
		res, err := l.db.ExecContext(ctx,
			`DELETE FROM config_versions
			 WHERE created_at < ?
			   AND seq <> (SELECT MAX(seq) FROM config_versions)`, cutoff)
		if err != nil {
			return pruned, schema.NewError(schema.ErrCodeStore, "prune by age").WithCause(err)
		}
		if n, err := res.RowsAffected(); err == nil {
			pruned += int(n)
		}
	}

	return pruned, nil
}

// scanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(s scanner) (*Version, error) {
	v := &Version{}
	var metadataJSON sql.NullString
	if err := s.Scan(&v.Seq, &v.ID, &v.CreatedAt, &v.Actor, &v.Summary, &metadataJSON); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "scan version").WithCause(err)
	}
	if metadataJSON.Valid {
		_ = json.Unmarshal([]byte(metadataJSON.String), &v.Metadata)
	}
	return v, nil
}

func scanVersionWithConfig(s scanner, id string) (*Version, *schema.Document, error) {
	v := &Version{}
	var metadataJSON sql.NullString
	var configJSON string
	err := s.Scan(&v.Seq, &v.ID, &v.CreatedAt, &v.Actor, &v.Summary, &metadataJSON, &configJSON)
	if err == sql.ErrNoRows {
		return nil, nil, schema.NewErrorf(schema.ErrCodeNotFound, "version %q not found", id)
	}
	if err != nil {
		return nil, nil, schema.NewError(schema.ErrCodeStore, "scan version").WithCause(err)
	}
	if metadataJSON.Valid {
		_ = json.Unmarshal([]byte(metadataJSON.String), &v.Metadata)
	}

	var doc schema.Document
	if err := json.Unmarshal([]byte(configJSON), &doc); err != nil {
		return nil, nil, schema.NewError(schema.ErrCodeStore,
			"stored configuration is not a valid document").WithCause(err)
	}
	return v, &doc, nil
}
