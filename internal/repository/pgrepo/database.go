// SPDX-License-Identifier: Apache-2.0

// Package pgrepo is the Postgres-backed Repository implementation,
// grounded on smilemakc-auth-gateway's internal/repository/database.go
// (bun.DB over a pgdriver connector). It is wired into cmd/syncd when a DSN
// is configured; the Reconciler itself only ever depends on the
// repository.Repository interface.
package pgrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Config holds the connection parameters for the Postgres-backed repository.
type Config struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// Database wraps bun.DB with the connection pool settings the teacher's
// repository layer also tracks.
type Database struct {
	*bun.DB
	sqlDB *sql.DB
}

// Open connects to Postgres and registers the repository's models.
func Open(cfg Config) (*Database, error) {
	connector := pgdriver.NewConnector(
		pgdriver.WithNetwork("tcp"),
		pgdriver.WithAddr(fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.DBName),
		pgdriver.WithInsecure(cfg.SSLMode == "disable"),
	)

	sqldb := sql.OpenDB(connector)
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqldb.SetConnMaxLifetime(time.Hour)

	if err := sqldb.Ping(); err != nil {
		return nil, fmt.Errorf("cannot ping postgres: %w", err)
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	bunDB.RegisterModel((*ldapConfigRow)(nil))
	bunDB.RegisterModel((*syncConfigRow)(nil))
	bunDB.RegisterModel((*syncLogRow)(nil))
	bunDB.RegisterModel((*syncLogDetailRow)(nil))

	return &Database{DB: bunDB, sqlDB: sqldb}, nil
}

// Close closes the underlying connection pool.
func (d *Database) Close() error {
	return d.DB.Close()
}

// Health pings the database with a bounded timeout.
func (d *Database) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.DB.PingContext(ctx)
}
