package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/emberwatch/firesync/internal/domain"
)

// EnsureArea compares the requested bounding box against the persisted
// last-used value and, when they differ, wipes every sensor table and the
// validated-fires table before persisting the new value. Data fetched for
// one area cannot be reconciled against another area's snapshot, so the wipe
// is all-or-nothing: read, wipe, and persist happen in one transaction with
// the area row locked, which also serializes concurrent runs deciding
// whether a wipe is needed.
//
// Returns whether a wipe occurred.
func (s *Store) EnsureArea(ctx context.Context, requested string) (wiped bool, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, &domain.GuardError{Op: "begin", Err: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var last string
	err = tx.QueryRow(ctx, `SELECT bbox FROM firesync.area_state WHERE id = 1 FOR UPDATE`).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		// Init seeds the row; tolerate a missing one anyway.
		if _, err = tx.Exec(ctx, `INSERT INTO firesync.area_state (id, bbox) VALUES (1, '')`); err != nil {
			err = &domain.GuardError{Op: "seed", Err: err}
			return false, err
		}
		last = ""
	} else if err != nil {
		err = &domain.GuardError{Op: "read", Err: err}
		return false, err
	}

	if requested == last {
		if err = tx.Commit(ctx); err != nil {
			err = &domain.GuardError{Op: "commit", Err: err}
			return false, err
		}
		return false, nil
	}

	for _, sensor := range domain.Sensors {
		if _, err = tx.Exec(ctx, "DELETE FROM "+DetectionTable(sensor.ID)); err != nil {
			err = &domain.GuardError{Op: "wipe " + sensor.ID, Err: err}
			return false, err
		}
	}
	if _, err = tx.Exec(ctx, "DELETE FROM "+validatedTable); err != nil {
		err = &domain.GuardError{Op: "wipe validated", Err: err}
		return false, err
	}

	if _, err = tx.Exec(ctx,
		`UPDATE firesync.area_state SET bbox = $1, updated_at = now() WHERE id = 1`, requested); err != nil {
		err = &domain.GuardError{Op: "persist", Err: err}
		return false, err
	}

	if err = tx.Commit(ctx); err != nil {
		err = &domain.GuardError{Op: "commit", Err: err}
		return false, err
	}

	if s.logger != nil {
		s.logger.Info("area of interest changed, tables wiped", "previous", last, "requested", requested)
	}
	return true, nil
}

// LastArea returns the persisted last-used bounding box, empty when no area
// has been selected yet.
func (s *Store) LastArea(ctx context.Context) (string, error) {
	var bbox string
	err := s.db.QueryRow(ctx, `SELECT bbox FROM firesync.area_state WHERE id = 1`).Scan(&bbox)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", &domain.GuardError{Op: "read", Err: err}
	}
	return bbox, nil
}
