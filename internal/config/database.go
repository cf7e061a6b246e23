package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxConfig creates and returns a pgxpool.Config for the postgres cookie store.
func (c *DatabaseConfig) PgxConfig(ctx context.Context) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(c.ConnString())
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = int32(c.MaxOpenConns)
	cfg.MinConns = int32(c.MaxIdleConns)
	cfg.MaxConnLifetime = c.ConnMaxLifetime
	cfg.MaxConnIdleTime = c.ConnMaxIdleTime
	cfg.HealthCheckPeriod = 30 * time.Second

	return cfg, nil
}

func (c *DatabaseConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// requireForPostgres reports missing connection settings when cookies are
// stored in postgres.
func (c *DatabaseConfig) requireForPostgres() error {
	var missing []error
	if c.Host == "" {
		missing = append(missing, errors.New("database.host is required"))
	}
	if c.Port == 0 {
		missing = append(missing, errors.New("database.port is required"))
	}
	if c.User == "" {
		missing = append(missing, errors.New("database.user is required"))
	}
	if c.Name == "" {
		missing = append(missing, errors.New("database.name is required"))
	}
	return errors.Join(missing...)
}
