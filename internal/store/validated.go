package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/emberwatch/firesync/internal/domain"
)

const insertValidatedSQL = `INSERT INTO firesync.validated_fires
    (latitude, longitude, acq_date, acq_time, primary_sensor, confidence_level, validating_sensors, confidence, payload, acquired_at)
VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9::jsonb, $10)
ON CONFLICT (latitude, longitude, acq_date, acq_time, primary_sensor) DO NOTHING`

// PersistValidated inserts validated fires, skipping rows whose key already
// exists, and returns the fires that were actually new. Re-running
// validation over overlapping inputs is therefore idempotent.
func (s *Store) PersistValidated(ctx context.Context, fires []domain.ValidatedFire) ([]domain.ValidatedFire, error) {
	if len(fires) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, f := range fires {
		key := f.Detection.Key()
		payload, err := json.Marshal(f.Detection.Payload)
		if err != nil {
			return nil, &domain.StoreError{
				Sensor: f.PrimarySensor, Table: validatedTable, Op: "encode",
				Err: fmt.Errorf("payload %s: %w", key, err),
			}
		}
		batch.Queue(insertValidatedSQL,
			key.Latitude, key.Longitude, key.AcqDate, key.AcqTime,
			f.PrimarySensor, f.ConfidenceLevel, f.ValidatingSensors,
			f.Detection.Confidence, string(payload), f.AcquiredAt,
		)
	}

	res := s.db.SendBatch(ctx, batch)
	defer res.Close()

	var inserted []domain.ValidatedFire
	for _, f := range fires {
		tag, err := res.Exec()
		if err != nil {
			return inserted, &domain.StoreError{Sensor: f.PrimarySensor, Table: validatedTable, Op: "insert", Err: err}
		}
		if tag.RowsAffected() > 0 {
			inserted = append(inserted, f)
		}
	}
	return inserted, nil
}

// ListValidatedSince returns validated fires acquired at or after since,
// oldest first.
func (s *Store) ListValidatedSince(ctx context.Context, since time.Time) ([]domain.ValidatedFire, error) {
	rows, err := s.db.Query(ctx, `SELECT latitude, longitude, acq_date::text, acq_time, primary_sensor,
    confidence_level, validating_sensors, confidence, payload, acquired_at
FROM firesync.validated_fires
WHERE acquired_at >= $1
ORDER BY acquired_at, primary_sensor`, since)
	if err != nil {
		return nil, &domain.StoreError{Table: validatedTable, Op: "query", Err: err}
	}
	defer rows.Close()

	var fires []domain.ValidatedFire
	for rows.Next() {
		var (
			f       domain.ValidatedFire
			payload []byte
		)
		if err := rows.Scan(
			&f.Detection.Latitude, &f.Detection.Longitude, &f.Detection.AcqDate, &f.Detection.AcqTime,
			&f.PrimarySensor, &f.ConfidenceLevel, &f.ValidatingSensors,
			&f.Detection.Confidence, &payload, &f.AcquiredAt,
		); err != nil {
			return nil, &domain.StoreError{Table: validatedTable, Op: "scan", Err: err}
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &f.Detection.Payload); err != nil {
				return nil, &domain.StoreError{Table: validatedTable, Op: "decode", Err: err}
			}
		}
		f.Detection.SensorID = f.PrimarySensor
		fires = append(fires, f)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Table: validatedTable, Op: "scan", Err: err}
	}
	return fires, nil
}
