// Package store persists fire detections and validated fires in Postgres.
//
// Each sensor owns its own detection table keyed by the natural key
// (latitude, longitude, acq_date, acq_time). Reconciliation and the
// area-of-interest guard run as single transactions so a failure can never
// leave a table half-updated.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberwatch/firesync/internal/domain"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies it in
// tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Ping(ctx context.Context) error
}

// Store wraps database access for detections, validated fires, and the
// area-of-interest state.
type Store struct {
	db     DB
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store over an existing connection. Used by tests.
func New(db DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Connect creates a Store backed by a pgx pool.
func Connect(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{db: pool, pool: pool, logger: logger}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping reports database reachability.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// DetectionTable returns the table owning a sensor's detections. Sensor IDs
// come from the domain catalog, never from request input.
func DetectionTable(sensorID string) string {
	return "firesync.det_" + sensorID
}

const validatedTable = "firesync.validated_fires"

// Init creates the schema, one detection table per cataloged sensor, the
// validated-fires table, and the single area-state row.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{`CREATE SCHEMA IF NOT EXISTS firesync`}

	for _, sensor := range domain.Sensors {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    latitude double precision NOT NULL,
    longitude double precision NOT NULL,
    acq_date date NOT NULL,
    acq_time text NOT NULL,
    confidence text,
    payload jsonb,
    acquired_at timestamptz,
    ingested_at timestamptz NOT NULL DEFAULT now(),
    PRIMARY KEY (latitude, longitude, acq_date, acq_time)
)`, DetectionTable(sensor.ID)))
	}

	stmts = append(stmts,
		`CREATE TABLE IF NOT EXISTS firesync.validated_fires (
    latitude double precision NOT NULL,
    longitude double precision NOT NULL,
    acq_date date NOT NULL,
    acq_time text NOT NULL,
    primary_sensor text NOT NULL,
    confidence_level integer NOT NULL,
    validating_sensors text[] NOT NULL,
    confidence text,
    payload jsonb,
    acquired_at timestamptz NOT NULL,
    inserted_at timestamptz NOT NULL DEFAULT now(),
    PRIMARY KEY (latitude, longitude, acq_date, acq_time, primary_sensor)
)`,
		`CREATE TABLE IF NOT EXISTS firesync.area_state (
    id smallint PRIMARY KEY,
    bbox text NOT NULL DEFAULT '',
    updated_at timestamptz NOT NULL DEFAULT now()
)`,
		`INSERT INTO firesync.area_state (id, bbox) VALUES (1, '') ON CONFLICT (id) DO NOTHING`,
	)

	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return &domain.StoreError{Op: "init", Err: err}
		}
	}
	return nil
}
