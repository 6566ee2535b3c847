package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberwatch/firesync/internal/domain"
)

var modisSensor = domain.Sensor{ID: "modis", Product: "MODIS_NRT", Family: domain.FamilyMODIS}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock, slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func freshDetection(lat float64, hhmm string) domain.Detection {
	return domain.Detection{
		SensorID:   "modis",
		Latitude:   lat,
		Longitude:  -104.0,
		AcqDate:    "2025-10-27",
		AcqTime:    hhmm,
		Confidence: "80",
		Payload:    map[string]string{"brightness": "330.5", "frp": "12.3"},
		IngestedAt: time.Date(2025, 10, 27, 15, 0, 0, 0, time.UTC),
	}
}

func TestReconcile_UpsertsAndDeletesInOneTransaction(t *testing.T) {
	freezeClock(t, time.Date(2025, 10, 27, 15, 0, 0, 0, time.UTC))
	s, mock := newMockStore(t)

	fresh := []domain.Detection{
		freshDetection(53.50, "1744"),
		freshDetection(53.50, "1744"), // duplicate row within one response
		freshDetection(53.60, "1750"),
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM firesync\.det_modis`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectExec(`INSERT INTO firesync\.det_modis`).
		WithArgs(
			[]float64{53.50, 53.60}, []float64{-104.0, -104.0},
			[]string{"2025-10-27", "2025-10-27"}, []string{"1744", "1750"},
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(`DELETE FROM firesync\.det_modis`).
		WithArgs(
			[]string{"2025-10-27", "2025-10-26", "2025-10-25"},
			[]float64{53.50, 53.60}, []float64{-104.0, -104.0},
			[]string{"2025-10-27", "2025-10-27"}, []string{"1744", "1750"},
		).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM firesync\.det_modis`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectCommit()

	rep, err := s.Reconcile(context.Background(), modisSensor, fresh, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Fetched)
	assert.Equal(t, 2, rep.Staged)
	assert.Equal(t, 5, rep.Before)
	assert.Equal(t, 4, rep.After)
	assert.Equal(t, 3, rep.Deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcile_EmptyFreshSetStillDeletesStaleRows(t *testing.T) {
	freezeClock(t, time.Date(2025, 10, 27, 15, 0, 0, 0, time.UTC))
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))
	// No upsert: nothing staged. Deletion still runs against the empty set,
	// clearing everything inside the window.
	mock.ExpectExec(`DELETE FROM firesync\.det_modis`).
		WithArgs(
			[]string{"2025-10-27", "2025-10-26", "2025-10-25"},
			[]float64{}, []float64{}, []string{}, []string{},
		).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectCommit()

	rep, err := s.Reconcile(context.Background(), modisSensor, nil, 2)
	require.NoError(t, err)

	assert.Zero(t, rep.Staged)
	assert.Equal(t, 5, rep.Deleted)
	assert.Zero(t, rep.After)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcile_ZeroWindowSkipsDeletion(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO firesync\.det_modis`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// No DELETE expected.
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	rep, err := s.Reconcile(context.Background(), modisSensor, []domain.Detection{freshDetection(53.50, "1744")}, 0)
	require.NoError(t, err)

	assert.Zero(t, rep.Deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcile_UpsertFailureRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectExec(`INSERT INTO firesync\.det_modis`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := s.Reconcile(context.Background(), modisSensor, []domain.Detection{freshDetection(53.50, "1744")}, 2)

	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "modis", storeErr.Sensor)
	assert.Equal(t, "upsert", storeErr.Op)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcile_DeleteFailureRollsBack(t *testing.T) {
	freezeClock(t, time.Date(2025, 10, 27, 15, 0, 0, 0, time.UTC))
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectExec(`INSERT INTO firesync\.det_modis`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM firesync\.det_modis`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(),
		).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := s.Reconcile(context.Background(), modisSensor, []domain.Detection{freshDetection(53.50, "1744")}, 2)

	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "stale-delete", storeErr.Op)
	require.NoError(t, mock.ExpectationsWereMet())
}
