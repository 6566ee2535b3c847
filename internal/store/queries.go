package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/emberwatch/firesync/internal/domain"
)

// ListDetections returns every row in a sensor's table. The matcher works on
// the full stored window, not just the rows from the latest fetch.
func (s *Store) ListDetections(ctx context.Context, sensorID string) ([]domain.Detection, error) {
	return s.listDetections(ctx, sensorID, time.Time{})
}

// ListDetectionsSince returns a sensor's rows acquired at or after since.
func (s *Store) ListDetectionsSince(ctx context.Context, sensorID string, since time.Time) ([]domain.Detection, error) {
	return s.listDetections(ctx, sensorID, since)
}

func (s *Store) listDetections(ctx context.Context, sensorID string, since time.Time) ([]domain.Detection, error) {
	table := DetectionTable(sensorID)

	query := `SELECT latitude, longitude, acq_date::text, acq_time, confidence, payload, ingested_at FROM ` + table
	args := []any{}
	if !since.IsZero() {
		query += ` WHERE acquired_at >= $1`
		args = append(args, since)
	}
	query += ` ORDER BY acq_date, acq_time`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, &domain.StoreError{Sensor: sensorID, Table: table, Op: "query", Err: err}
	}
	defer rows.Close()

	var detections []domain.Detection
	for rows.Next() {
		var (
			d       domain.Detection
			payload []byte
		)
		if err := rows.Scan(&d.Latitude, &d.Longitude, &d.AcqDate, &d.AcqTime, &d.Confidence, &payload, &d.IngestedAt); err != nil {
			return nil, &domain.StoreError{Sensor: sensorID, Table: table, Op: "scan", Err: err}
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &d.Payload); err != nil {
				return nil, &domain.StoreError{Sensor: sensorID, Table: table, Op: "decode", Err: err}
			}
		}
		d.SensorID = sensorID
		detections = append(detections, d)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Sensor: sensorID, Table: table, Op: "scan", Err: err}
	}
	return detections, nil
}

// Status summarizes stored state for the status endpoint.
type Status struct {
	Online          bool           `json:"online"`
	Area            string         `json:"area"`
	DetectionCounts map[string]int `json:"detection_counts"`
	ValidatedCount  int            `json:"validated_count"`
}

// Status reports database reachability, the active area, and row counts.
func (s *Store) Status(ctx context.Context) (Status, error) {
	st := Status{DetectionCounts: make(map[string]int, len(domain.Sensors))}

	if err := s.db.Ping(ctx); err != nil {
		return st, &domain.StoreError{Op: "ping", Err: err}
	}
	st.Online = true

	area, err := s.LastArea(ctx)
	if err != nil {
		return st, err
	}
	st.Area = area

	for _, sensor := range domain.Sensors {
		var count int
		if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+DetectionTable(sensor.ID)).Scan(&count); err != nil {
			return st, &domain.StoreError{Sensor: sensor.ID, Table: DetectionTable(sensor.ID), Op: "count", Err: err}
		}
		st.DetectionCounts[sensor.ID] = count
	}

	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+validatedTable).Scan(&st.ValidatedCount); err != nil {
		return st, &domain.StoreError{Table: validatedTable, Op: "count", Err: err}
	}
	return st, nil
}
