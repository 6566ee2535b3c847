package domain

import (
	"strings"
	"time"
)

// Threshold bounds a spatiotemporal match against one secondary family.
// Both bounds are inclusive.
type Threshold struct {
	TimeWindow time.Duration
	DistanceKm float64
}

// thresholds maps each family to its match bounds. The values track revisit
// cadence and pixel footprint per platform.
var thresholds = map[Family]Threshold{
	FamilyVIIRS:   {TimeWindow: 360 * time.Minute, DistanceKm: 5.0},
	FamilyMODIS:   {TimeWindow: 180 * time.Minute, DistanceKm: 3.0},
	FamilyLANDSAT: {TimeWindow: 4320 * time.Minute, DistanceKm: 1.0},
	FamilyGOES:    {TimeWindow: 15 * time.Minute, DistanceKm: 10.0},
}

// ThresholdFor returns the match bounds for a family.
func (f Family) Threshold() Threshold {
	if t, ok := thresholds[f]; ok {
		return t
	}
	return thresholds[FamilyVIIRS]
}

// FamilyForSensor maps a sensor table identifier to its family by prefix.
// Unrecognized identifiers fall back to VIIRS; the deliberately loose match
// keeps newly added products validating with sane bounds until they are
// cataloged.
func FamilyForSensor(sensorID string) Family {
	id := strings.ToLower(sensorID)
	switch {
	case strings.HasPrefix(id, "viirs"):
		return FamilyVIIRS
	case strings.HasPrefix(id, "modis"):
		return FamilyMODIS
	case strings.HasPrefix(id, "landsat"):
		return FamilyLANDSAT
	case strings.HasPrefix(id, "goes"):
		return FamilyGOES
	default:
		return FamilyVIIRS
	}
}

// ThresholdFor returns the match bounds for a sensor table identifier.
func ThresholdFor(sensorID string) Threshold {
	return FamilyForSensor(sensorID).Threshold()
}
