// Package match implements cross-sensor validation of fire detections.
//
// Each primary detection is checked against every secondary sensor's
// detection set. A secondary set corroborates the primary when it contains at
// least one detection inside the secondary family's time window and geodesic
// distance threshold; scanning stops at the first such row. The confidence
// level of a validated fire is the number of distinct secondary sensors that
// corroborated it.
//
// The scan is the deliberately naive O(primary x secondary) nested loop. At
// FIRMS area-query volumes (thousands of rows per run) it is well under a
// second, and it doubles as the reference definition any indexed
// reimplementation must reproduce exactly.
package match

import (
	"log/slog"
	"sort"
	"time"

	"github.com/tidwall/geodesic"

	"github.com/emberwatch/firesync/internal/domain"
)

// SecondarySet is one secondary sensor's detections.
type SecondarySet struct {
	SensorID   string
	Detections []domain.Detection
}

// Result reports one validation pass.
type Result struct {
	Fires        []domain.ValidatedFire
	PrimaryTotal int
	// SkippedRows counts detections excluded because their date/time could
	// not be parsed. Diagnostic only; a skipped row never aborts the pass.
	SkippedRows int
}

// Matcher validates primary detections against secondary sensor sets.
type Matcher struct {
	logger *slog.Logger
}

// New creates a Matcher.
func New(logger *slog.Logger) *Matcher {
	return &Matcher{logger: logger}
}

// candidate is a detection with its acquisition timestamp pre-parsed.
type candidate struct {
	det domain.Detection
	at  time.Time
}

// Validate cross-checks every primary detection against the secondary sets
// and returns the detections corroborated by at least one secondary sensor.
func (m *Matcher) Validate(primarySensor string, primary []domain.Detection, secondaries []SecondarySet) Result {
	res := Result{PrimaryTotal: len(primary)}

	sets := make([]struct {
		sensorID   string
		threshold  domain.Threshold
		candidates []candidate
	}, 0, len(secondaries))

	for _, sec := range secondaries {
		cands := make([]candidate, 0, len(sec.Detections))
		for _, d := range sec.Detections {
			at, err := d.AcquiredAt()
			if err != nil {
				res.SkippedRows++
				m.logSkip(&domain.MatchInputError{Sensor: sec.SensorID, Key: d.Key(), Err: err})
				continue
			}
			cands = append(cands, candidate{det: d, at: at})
		}
		sets = append(sets, struct {
			sensorID   string
			threshold  domain.Threshold
			candidates []candidate
		}{sec.SensorID, domain.ThresholdFor(sec.SensorID), cands})
	}

	for _, fire := range primary {
		at, err := fire.AcquiredAt()
		if err != nil {
			res.SkippedRows++
			m.logSkip(&domain.MatchInputError{Sensor: primarySensor, Key: fire.Key(), Err: err})
			continue
		}

		var matched []string
		for _, set := range sets {
			if hasMatch(fire, at, set.threshold, set.candidates) {
				matched = append(matched, set.sensorID)
			}
		}
		if len(matched) == 0 {
			continue
		}

		sort.Strings(matched)
		res.Fires = append(res.Fires, domain.ValidatedFire{
			Detection:         fire,
			AcquiredAt:        at,
			ConfidenceLevel:   len(matched),
			PrimarySensor:     primarySensor,
			ValidatingSensors: matched,
		})
	}

	return res
}

// hasMatch scans one secondary set in order and stops at the first detection
// inside both bounds. Both bounds are inclusive.
func hasMatch(fire domain.Detection, fireAt time.Time, th domain.Threshold, candidates []candidate) bool {
	for _, c := range candidates {
		dt := fireAt.Sub(c.at)
		if dt < 0 {
			dt = -dt
		}
		if dt > th.TimeWindow {
			continue
		}
		if DistanceKm(fire.Latitude, fire.Longitude, c.det.Latitude, c.det.Longitude) <= th.DistanceKm {
			return true
		}
	}
	return false
}

// DistanceKm returns the geodesic distance between two WGS-84 coordinates in
// kilometers.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	var meters float64
	geodesic.WGS84.Inverse(lat1, lon1, lat2, lon2, &meters, nil, nil)
	return meters / 1000.0
}

func (m *Matcher) logSkip(err *domain.MatchInputError) {
	if m.logger == nil {
		return
	}
	m.logger.Warn("skipping unparsable detection", "sensor", err.Sensor, "key", err.Key.String(), "error", err.Err)
}
