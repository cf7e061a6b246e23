package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/edge-collector/internal/domain"
	"github.com/jackc/pgx/v5"
)

// CookieRepository stores cookies in the cookies table so several collector
// processes can share one visitor identity.
type CookieRepository struct {
	db  *DB
	now func() time.Time
}

func NewCookieRepository(db *DB) *CookieRepository {
	return &CookieRepository{db: db, now: time.Now}
}

func (r *CookieRepository) All(ctx context.Context) (map[string]string, error) {
	query := `
		SELECT name, value
		FROM cookies
		WHERE expires_at IS NULL OR expires_at > $1
	`

	rows, err := r.db.Pool.Query(ctx, query, r.now())
	if err != nil {
		return nil, fmt.Errorf("failed to query cookies: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan cookie: %w", err)
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cookies: %w", err)
	}
	return out, nil
}

func (r *CookieRepository) Get(ctx context.Context, name string) (string, bool, error) {
	query := `
		SELECT value
		FROM cookies
		WHERE name = $1 AND (expires_at IS NULL OR expires_at > $2)
	`

	var value string
	err := r.db.Pool.QueryRow(ctx, query, name, r.now()).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get cookie %s: %w", name, err)
	}
	return value, true, nil
}

func (r *CookieRepository) Set(ctx context.Context, cookie domain.Cookie) error {
	query := `
		INSERT INTO cookies (name, value, domain, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			value = EXCLUDED.value,
			domain = EXCLUDED.domain,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool.Exec(ctx, query, cookie.Name, cookie.Value, cookie.Domain, cookie.ExpiresAt, r.now())
	if err != nil {
		return fmt.Errorf("failed to store cookie %s: %w", cookie.Name, err)
	}
	return nil
}

func (r *CookieRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM cookies WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cookies: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
