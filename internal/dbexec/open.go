package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// OpenOptions controls how the store handle is opened.
type OpenOptions struct {
	Instrumented bool // wrap the driver with otelsql tracing/metrics
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// Open opens a MySQL handle for the given DSN and verifies connectivity.
func Open(ctx context.Context, dsn string, opts OpenOptions) (*sql.DB, error) {
	var db *sql.DB
	var err error
	if opts.Instrumented {
		db, err = otelsql.Open("mysql", dsn,
			otelsql.WithAttributes(semconv.DBSystemMySQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		)
	} else {
		db, err = sql.Open("mysql", dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.MaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.MaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if opts.Instrumented {
		if _, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(semconv.DBSystemMySQL)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to register db stats metrics: %w", err)
		}
	}
	return db, nil
}
