// Package cardstore persists fetched card documents in SQLite so a fresh
// process can answer lookups without going back to the network.
package cardstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// CurrentDBVersion is the schema version written to the meta table.
const CurrentDBVersion = 1

// FileName is the database file created under the data directory.
const FileName = "cards.db"

// Store is the SQLite-backed card cache.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Stats describes the cache contents.
type Stats struct {
	Cards  int       `json:"cards"`
	Oldest time.Time `json:"oldest,omitzero"`
	Newest time.Time `json:"newest,omitzero"`
}

// Open opens or creates the cache under dir. A database written by an
// incompatible schema version is discarded and recreated.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dir, FileName)
	if _, err := os.Stat(dbPath); err == nil {
		if db, err := sql.Open("sqlite", dbPath); err == nil {
			compatible := isSchemaCompatible(db)
			db.Close()
			if !compatible {
				if err := removeDatabaseFiles(dbPath); err != nil {
					return nil, err
				}
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open card cache: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenInMemory opens an in-memory cache (for testing).
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// Each pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SetClock replaces the time source used for fetched_at and age checks.
func (s *Store) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.now = now
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initialize() error {
	schema := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA busy_timeout = 5000;

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		-- One row per canonical card name; payload is the raw API document
		CREATE TABLE IF NOT EXISTS cards (
			name TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			fetched_at INTEGER NOT NULL  -- Unix seconds
		);

		CREATE INDEX IF NOT EXISTS idx_cards_fetched_at ON cards(fetched_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize card cache schema: %w", err)
	}

	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('version', ?)`,
		strconv.Itoa(CurrentDBVersion))
	if err != nil {
		return fmt.Errorf("failed to set card cache version: %w", err)
	}
	return nil
}

func isSchemaCompatible(db *sql.DB) bool {
	var version string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key = 'version'`).Scan(&version); err != nil {
		return false
	}
	return version == strconv.Itoa(CurrentDBVersion)
}

func removeDatabaseFiles(dbPath string) error {
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

// Get returns the stored payload for name if it was written within maxAge.
// maxAge <= 0 accepts any age.
func (s *Store) Get(ctx context.Context, name string, maxAge time.Duration) ([]byte, bool, error) {
	var payload []byte
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM cards WHERE name = ?`, name).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached card %q: %w", name, err)
	}
	if maxAge > 0 && s.now().Sub(time.Unix(fetchedAt, 0)) > maxAge {
		return nil, false, nil
	}
	return payload, true, nil
}

// Put stores or replaces the payload for name.
func (s *Store) Put(ctx context.Context, name string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cards (name, payload, fetched_at) VALUES (?, ?, ?)`,
		name, payload, s.now().Unix())
	if err != nil {
		return fmt.Errorf("cache card %q: %w", name, err)
	}
	return nil
}

// Prune deletes rows older than maxAge and returns how many were removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune card cache: %w", err)
	}
	return res.RowsAffected()
}

// Stats reports row count and the fetch-time range.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(fetched_at), MAX(fetched_at) FROM cards`).Scan(&st.Cards, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("card cache stats: %w", err)
	}
	if oldest.Valid {
		st.Oldest = time.Unix(oldest.Int64, 0)
	}
	if newest.Valid {
		st.Newest = time.Unix(newest.Int64, 0)
	}
	return st, nil
}
