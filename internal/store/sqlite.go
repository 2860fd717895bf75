package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/finplan/internal/domain"
	"github.com/ashureev/finplan/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS platform_requests (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		category TEXT NOT NULL,
		name TEXT NOT NULL,
		name_key TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_platform_requests_demand ON platform_requests(category, name_key);
	CREATE INDEX IF NOT EXISTS idx_platform_requests_created ON platform_requests(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertPlatformRequest stores a request, retrying briefly on SQLITE_BUSY.
func (s *SQLiteStore) InsertPlatformRequest(ctx context.Context, req *domain.PlatformRequest) error {
	query := `
	INSERT INTO platform_requests (id, session_id, category, name, name_key, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	err := shared.RetryOnSQLiteConflict(ctx, 3, 50*time.Millisecond, func() error {
		_, err := s.db.ExecContext(ctx, query,
			req.ID, req.SessionID, string(req.Category),
			req.Name, nameKey(req.Name), req.CreatedAt.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert platform request: %w", err)
	}
	return nil
}

// TopPlatformRequests aggregates requests case-insensitively by name and
// reports the most recent spelling.
func (s *SQLiteStore) TopPlatformRequests(ctx context.Context, category domain.PlatformCategory, limit int) ([]domain.PlatformDemand, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT
			(SELECT p2.name FROM platform_requests p2
			  WHERE p2.category = p.category AND p2.name_key = p.name_key
			  ORDER BY p2.created_at DESC, p2.rowid DESC LIMIT 1) AS latest_name,
			COUNT(*) AS requests
		FROM platform_requests p
		WHERE p.category = ?
		GROUP BY p.category, p.name_key
		ORDER BY requests DESC, latest_name ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, string(category), limit)
	if err != nil {
		return nil, fmt.Errorf("query platform demand: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Debug("store: failed to close rows", "error", closeErr)
		}
	}()

	var out []domain.PlatformDemand
	for rows.Next() {
		d := domain.PlatformDemand{Category: category}
		if err := rows.Scan(&d.Name, &d.Count); err != nil {
			return nil, fmt.Errorf("scan platform demand row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate platform demand rows: %w", err)
	}
	return out, nil
}

// DeletePlatformRequestsBefore removes requests older than cutoff.
func (s *SQLiteStore) DeletePlatformRequestsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := shared.RetryOnSQLiteConflict(ctx, 3, 100*time.Millisecond, func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM platform_requests WHERE created_at < ?`, cutoff.Unix())
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete platform requests: %w", err)
	}
	return deleted, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
