package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NaturalKey identifies a unique detection within one sensor's table.
// It is the upsert conflict key and the dedupe key for fresh responses.
type NaturalKey struct {
	Latitude  float64
	Longitude float64
	AcqDate   string // YYYY-MM-DD
	AcqTime   string // HHMM, zero-padded
}

func (k NaturalKey) String() string {
	return fmt.Sprintf("%.5f,%.5f,%s,%s", k.Latitude, k.Longitude, k.AcqDate, k.AcqTime)
}

// Detection is one active-fire reading from a single sensor.
type Detection struct {
	SensorID   string            `json:"sensor"`
	Latitude   float64           `json:"latitude"`
	Longitude  float64           `json:"longitude"`
	AcqDate    string            `json:"acq_date"`
	AcqTime    string            `json:"acq_time"`
	Confidence string            `json:"confidence"`         // sensor-native scale, uninterpreted
	Payload    map[string]string `json:"payload,omitempty"`  // remaining FIRMS columns
	IngestedAt time.Time         `json:"ingested_at"`
}

// Key returns the detection's natural key with the acquisition time normalized
// to four digits.
func (d Detection) Key() NaturalKey {
	return NaturalKey{
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		AcqDate:   d.AcqDate,
		AcqTime:   PadAcqTime(d.AcqTime),
	}
}

// AcquiredAt combines acq_date and acq_time into the UTC acquisition timestamp.
func (d Detection) AcquiredAt() (time.Time, error) {
	return CombineAcquiredAt(d.AcqDate, d.AcqTime)
}

// PadAcqTime left-pads an HHMM time to four digits ("43" → "0043").
func PadAcqTime(t string) string {
	t = strings.TrimSpace(t)
	for len(t) < 4 {
		t = "0" + t
	}
	return t
}

// CombineAcquiredAt parses a YYYY-MM-DD date and HHMM time into a UTC timestamp.
func CombineAcquiredAt(acqDate, acqTime string) (time.Time, error) {
	acqTime = PadAcqTime(acqTime)
	if len(acqTime) != 4 {
		return time.Time{}, fmt.Errorf("combine acquired_at: bad time %q", acqTime)
	}
	hour, errH := strconv.Atoi(acqTime[:2])
	mins, errM := strconv.Atoi(acqTime[2:])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || mins < 0 || mins > 59 {
		return time.Time{}, fmt.Errorf("combine acquired_at: bad time %q", acqTime)
	}

	date, err := time.Parse("2006-01-02", acqDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("combine acquired_at: bad date %q: %w", acqDate, err)
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, mins, 0, 0, time.UTC), nil
}

// DedupeByKey collapses detections sharing a natural key to the first
// occurrence, preserving input order. The FIRMS API has been observed to
// repeat rows within one response.
func DedupeByKey(detections []Detection) []Detection {
	if len(detections) == 0 {
		return detections
	}
	seen := make(map[NaturalKey]struct{}, len(detections))
	out := make([]Detection, 0, len(detections))
	for _, d := range detections {
		k := d.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, d)
	}
	return out
}

// ValidatedFire is a primary detection corroborated by at least one
// secondary sensor.
type ValidatedFire struct {
	Detection         Detection `json:"detection"`
	AcquiredAt        time.Time `json:"acquired_at"`
	ConfidenceLevel   int       `json:"confidence_level"` // count of distinct corroborating sensors
	PrimarySensor     string    `json:"primary_sensor"`
	ValidatingSensors []string  `json:"validating_sensors"`
}
