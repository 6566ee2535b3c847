package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberwatch/firesync/internal/domain"
)

func validatedFire(lat float64, hhmm string) domain.ValidatedFire {
	return domain.ValidatedFire{
		Detection: domain.Detection{
			SensorID:   "viirs_noaa20",
			Latitude:   lat,
			Longitude:  -104.0,
			AcqDate:    "2025-06-13",
			AcqTime:    hhmm,
			Confidence: "h",
			Payload:    map[string]string{"frp": "8.1"},
		},
		AcquiredAt:        time.Date(2025, 6, 13, 17, 44, 0, 0, time.UTC),
		ConfidenceLevel:   2,
		PrimarySensor:     "viirs_noaa20",
		ValidatingSensors: []string{"goes", "modis"},
	}
}

func TestPersistValidated_ReturnsOnlyNewRows(t *testing.T) {
	s, mock := newMockStore(t)

	eb := mock.ExpectBatch()
	eb.ExpectExec(`INSERT INTO firesync\.validated_fires`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	eb.ExpectExec(`INSERT INTO firesync\.validated_fires`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 0)) // conflict, already persisted

	fires := []domain.ValidatedFire{validatedFire(53.50, "1744"), validatedFire(53.60, "1750")}

	inserted, err := s.PersistValidated(context.Background(), fires)
	require.NoError(t, err)

	require.Len(t, inserted, 1)
	assert.Equal(t, 53.50, inserted[0].Detection.Latitude)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistValidated_EmptyInputIsNoop(t *testing.T) {
	s, mock := newMockStore(t)

	inserted, err := s.PersistValidated(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListValidatedSince(t *testing.T) {
	s, mock := newMockStore(t)
	acquired := time.Date(2025, 6, 13, 17, 44, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT latitude, longitude, acq_date::text, acq_time, primary_sensor`).
		WithArgs(acquired.Add(-time.Hour)).
		WillReturnRows(pgxmock.NewRows([]string{
			"latitude", "longitude", "acq_date", "acq_time", "primary_sensor",
			"confidence_level", "validating_sensors", "confidence", "payload", "acquired_at",
		}).AddRow(
			53.50, -104.0, "2025-06-13", "1744", "viirs_noaa20",
			2, []string{"goes", "modis"}, "h", []byte(`{"frp":"8.1"}`), acquired,
		))

	fires, err := s.ListValidatedSince(context.Background(), acquired.Add(-time.Hour))
	require.NoError(t, err)

	require.Len(t, fires, 1)
	assert.Equal(t, 2, fires[0].ConfidenceLevel)
	assert.Equal(t, []string{"goes", "modis"}, fires[0].ValidatingSensors)
	assert.Equal(t, "8.1", fires[0].Detection.Payload["frp"])
	assert.Equal(t, acquired, fires[0].AcquiredAt)
}

func TestListDetections(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT latitude, longitude, acq_date::text, acq_time, confidence, payload, ingested_at FROM firesync\.det_modis`).
		WillReturnRows(pgxmock.NewRows([]string{
			"latitude", "longitude", "acq_date", "acq_time", "confidence", "payload", "ingested_at",
		}).AddRow(
			53.50, -104.0, "2025-06-13", "1744", "80", []byte(`{"brightness":"330.5"}`), time.Now().UTC(),
		))

	detections, err := s.ListDetections(context.Background(), "modis")
	require.NoError(t, err)

	require.Len(t, detections, 1)
	assert.Equal(t, "modis", detections[0].SensorID)
	assert.Equal(t, "330.5", detections[0].Payload["brightness"])
}

func TestStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectPing()
	mock.ExpectQuery(`SELECT bbox FROM firesync\.area_state`).
		WillReturnRows(pgxmock.NewRows([]string{"bbox"}).AddRow(lastBBox))
	for range domain.Sensors {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM firesync\.det_`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))
	}
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM firesync\.validated_fires`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	st, err := s.Status(context.Background())
	require.NoError(t, err)

	assert.True(t, st.Online)
	assert.Equal(t, lastBBox, st.Area)
	assert.Len(t, st.DetectionCounts, len(domain.Sensors))
	assert.Equal(t, 3, st.ValidatedCount)
}
