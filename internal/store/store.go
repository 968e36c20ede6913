// Package store implements the persistent store (spec.md C1): an embedded,
// single-process, WAL-mode SQLite database holding jobs, library items,
// subtitle tracks, the speaker registry, subscriptions, and ingest
// provenance. All writes run inside a transaction; migrations are additive
// and applied at open, aborting startup on failure (spec §4.1).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no cgo

	"github.com/Nuntissura/voxvulgi/internal/applog"
)

// Store wraps the engine's single SQLite connection.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the database at path, applying WAL mode
// and a busy timeout so concurrent writers from the runner's worker pool
// never hit "database is locked", then runs schema migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir %s: %w", dir, err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=NORMAL", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	// The engine's own concurrency control serializes writers through the
	// worker pool + dispatcher; one physical connection avoids sqlite's
	// writer-lock contention entirely instead of fighting it with retries.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// migration is one additive schema step, applied in order and recorded in
// schema_migrations so re-opening an up-to-date store is a no-op.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{1, `
		CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);

		CREATE TABLE IF NOT EXISTS library_items (
			id TEXT PRIMARY KEY,
			created_at_ms INTEGER NOT NULL,
			source_type TEXT NOT NULL,
			source_uri TEXT NOT NULL,
			title TEXT NOT NULL,
			media_path TEXT NOT NULL UNIQUE,
			duration_ms INTEGER,
			width INTEGER,
			height INTEGER,
			container TEXT,
			video_codec TEXT,
			audio_codec TEXT,
			thumbnail_path TEXT
		);

		CREATE TABLE IF NOT EXISTS ingest_provenance (
			item_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			source_url TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_provenance_item ON ingest_provenance(item_id);

		CREATE TABLE IF NOT EXISTS subtitle_tracks (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			lang TEXT NOT NULL,
			format TEXT NOT NULL,
			path TEXT NOT NULL,
			created_by TEXT NOT NULL,
			version INTEGER NOT NULL,
			created_at_ms INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tracks_item ON subtitle_tracks(item_id, kind, lang);

		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			item_id TEXT,
			batch_id TEXT,
			job_type TEXT NOT NULL,
			status TEXT NOT NULL,
			progress REAL NOT NULL DEFAULT 0,
			error TEXT,
			params_json TEXT NOT NULL DEFAULT '{}',
			created_at_ms INTEGER NOT NULL,
			started_at_ms INTEGER,
			finished_at_ms INTEGER,
			logs_path TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs(status, created_at_ms, id);
		CREATE INDEX IF NOT EXISTS idx_jobs_item ON jobs(item_id);
		CREATE INDEX IF NOT EXISTS idx_jobs_batch ON jobs(batch_id);

		CREATE TABLE IF NOT EXISTS item_speakers (
			item_id TEXT NOT NULL,
			speaker_key TEXT NOT NULL,
			display_name TEXT,
			tts_voice_id TEXT,
			tts_voice_profile_path TEXT,
			PRIMARY KEY (item_id, speaker_key)
		);

		CREATE TABLE IF NOT EXISTS youtube_subscriptions (
			id TEXT PRIMARY KEY,
			source_url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			folder_map TEXT NOT NULL DEFAULT '',
			output_dir_override TEXT,
			refresh_interval_minutes INTEGER NOT NULL DEFAULT 60,
			last_queued_at_ms INTEGER,
			active INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS runtime_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`},
}

func (s *Store) migrate(ctx context.Context) error {
	log := applog.Base()

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("bootstrap migrations table: %w", err)
	}

	applied := map[int]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
		log.Info().Int("version", m.version).Msg("store.migration.applied")
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error (spec §4.1: "all writes from C4/C5 are transactional").
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
