// Package sqlite provides a file-backed cookie store for single-host
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/DanielPopoola/edge-collector/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cookies (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	domain     TEXT NOT NULL DEFAULT '',
	expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_cookies_expires_at ON cookies (expires_at);
`

type CookieStore struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens the database at path and creates the cookies table if needed.
func Open(path string) (*CookieStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &CookieStore{sqlDB: sqlDB, now: time.Now}, nil
}

func (s *CookieStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *CookieStore) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT name, value FROM cookies WHERE expires_at IS NULL OR expires_at > ?`,
		toMillis(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("query cookies: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan cookie: %w", err)
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cookies: %w", err)
	}
	return out, nil
}

func (s *CookieStore) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value FROM cookies WHERE name = ? AND (expires_at IS NULL OR expires_at > ?)`,
		name, toMillis(s.now()),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cookie %s: %w", name, err)
	}
	return value, true, nil
}

func (s *CookieStore) Set(ctx context.Context, cookie domain.Cookie) error {
	var expiresAt sql.NullInt64
	if cookie.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: toMillis(*cookie.ExpiresAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO cookies (name, value, domain, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   value = excluded.value,
		   domain = excluded.domain,
		   expires_at = excluded.expires_at`,
		cookie.Name, cookie.Value, cookie.Domain, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("store cookie %s: %w", cookie.Name, err)
	}
	return nil
}

func (s *CookieStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM cookies WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		toMillis(now),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired cookies: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted cookies: %w", err)
	}
	return int(n), nil
}
