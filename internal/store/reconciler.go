package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emberwatch/firesync/internal/domain"
)

// ReconcileReport carries per-sensor counts for observability. It never
// affects control flow.
type ReconcileReport struct {
	Sensor  string `json:"sensor"`
	Fetched int    `json:"fetched"` // rows in the fresh response
	Staged  int    `json:"staged"`  // rows after local dedupe
	Before  int    `json:"before"`  // table rows before the sync
	After   int    `json:"after"`   // table rows after the sync
	Deleted int    `json:"deleted"` // stale rows removed
}

// stagedArrays holds the deduped fresh set in column form for UNNEST staging.
type stagedArrays struct {
	lats       []float64
	lons       []float64
	dates      []string
	times      []string
	confs      []string
	payloads   []string
	acquiredAt []*time.Time
	ingestedAt []time.Time
}

// Reconcile synchronizes one sensor's table with the fresh detection set for
// the current area and recency window. It dedupes the fresh rows by natural
// key, bulk-upserts them through an UNNEST staging set, and removes rows
// inside the recency date window whose key is absent from the fresh set, all
// in a single transaction. Rows dated outside the window are never touched:
// the current fetch says nothing about them.
//
// An empty fresh set is a valid "no active fires" response and still drives
// the stale deletion.
func (s *Store) Reconcile(ctx context.Context, sensor domain.Sensor, fresh []domain.Detection, windowDays int) (rep ReconcileReport, err error) {
	table := DetectionTable(sensor.ID)
	rep = ReconcileReport{Sensor: sensor.ID, Fetched: len(fresh)}

	staged := domain.DedupeByKey(fresh)
	rep.Staged = len(staged)
	arrays, err := buildStagedArrays(staged)
	if err != nil {
		return rep, &domain.StoreError{Sensor: sensor.ID, Table: table, Op: "stage", Err: err}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return rep, &domain.StoreError{Sensor: sensor.ID, Table: table, Op: "begin", Err: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = tx.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&rep.Before); err != nil {
		return rep, &domain.StoreError{Sensor: sensor.ID, Table: table, Op: "count", Err: err}
	}

	if rep.Staged > 0 {
		upsert := fmt.Sprintf(`INSERT INTO %s (latitude, longitude, acq_date, acq_time, confidence, payload, acquired_at, ingested_at)
SELECT u.latitude, u.longitude, u.acq_date, u.acq_time, u.confidence, u.payload::jsonb, u.acquired_at, u.ingested_at
FROM unnest($1::float8[], $2::float8[], $3::date[], $4::text[], $5::text[], $6::text[], $7::timestamptz[], $8::timestamptz[])
    AS u(latitude, longitude, acq_date, acq_time, confidence, payload, acquired_at, ingested_at)
ON CONFLICT (latitude, longitude, acq_date, acq_time) DO UPDATE SET
    confidence = EXCLUDED.confidence,
    payload = EXCLUDED.payload,
    acquired_at = EXCLUDED.acquired_at,
    ingested_at = EXCLUDED.ingested_at`, table)

		if _, err = tx.Exec(ctx, upsert,
			arrays.lats, arrays.lons, arrays.dates, arrays.times,
			arrays.confs, arrays.payloads, arrays.acquiredAt, arrays.ingestedAt); err != nil {
			return rep, &domain.StoreError{Sensor: sensor.ID, Table: table, Op: "upsert", Err: err}
		}
	}

	if window := domain.DateWindow(windowDays); len(window) > 0 {
		del := fmt.Sprintf(`DELETE FROM %s d
WHERE d.acq_date = ANY($1::date[])
AND NOT EXISTS (
    SELECT 1
    FROM unnest($2::float8[], $3::float8[], $4::date[], $5::text[])
        AS f(latitude, longitude, acq_date, acq_time)
    WHERE f.latitude = d.latitude
      AND f.longitude = d.longitude
      AND f.acq_date = d.acq_date
      AND f.acq_time = d.acq_time
)`, table)

		tag, execErr := tx.Exec(ctx, del, window, arrays.lats, arrays.lons, arrays.dates, arrays.times)
		if execErr != nil {
			err = &domain.StoreError{Sensor: sensor.ID, Table: table, Op: "stale-delete", Err: execErr}
			return rep, err
		}
		rep.Deleted = int(tag.RowsAffected())
	}

	if err = tx.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&rep.After); err != nil {
		return rep, &domain.StoreError{Sensor: sensor.ID, Table: table, Op: "count", Err: err}
	}

	if err = tx.Commit(ctx); err != nil {
		err = &domain.StoreError{Sensor: sensor.ID, Table: table, Op: "commit", Err: err}
		return rep, err
	}

	if s.logger != nil {
		s.logger.Info("reconciled sensor table",
			"sensor", sensor.ID,
			"fetched", rep.Fetched,
			"staged", rep.Staged,
			"before", rep.Before,
			"after", rep.After,
			"deleted", rep.Deleted,
		)
	}
	return rep, nil
}

func buildStagedArrays(staged []domain.Detection) (stagedArrays, error) {
	a := stagedArrays{
		lats:       make([]float64, len(staged)),
		lons:       make([]float64, len(staged)),
		dates:      make([]string, len(staged)),
		times:      make([]string, len(staged)),
		confs:      make([]string, len(staged)),
		payloads:   make([]string, len(staged)),
		acquiredAt: make([]*time.Time, len(staged)),
		ingestedAt: make([]time.Time, len(staged)),
	}
	for i, d := range staged {
		key := d.Key()
		a.lats[i] = key.Latitude
		a.lons[i] = key.Longitude
		a.dates[i] = key.AcqDate
		a.times[i] = key.AcqTime
		a.confs[i] = d.Confidence

		payload, err := json.Marshal(d.Payload)
		if err != nil {
			return stagedArrays{}, fmt.Errorf("encode payload %s: %w", key, err)
		}
		a.payloads[i] = string(payload)

		// A row with an unparsable time is still stored; it just cannot
		// participate in time-based queries or matching.
		if at, err := d.AcquiredAt(); err == nil {
			t := at
			a.acquiredAt[i] = &t
		}

		ingested := d.IngestedAt
		if ingested.IsZero() {
			ingested = time.Now().UTC()
		}
		a.ingestedAt[i] = ingested
	}
	return a, nil
}
