package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFamilyForSensor(t *testing.T) {
	tests := []struct {
		sensorID string
		expected Family
	}{
		{"viirs_noaa20", FamilyVIIRS},
		{"viirs_snpp", FamilyVIIRS},
		{"VIIRS_NOAA21", FamilyVIIRS},
		{"modis", FamilyMODIS},
		{"landsat", FamilyLANDSAT},
		{"goes", FamilyGOES},
		{"goes_east", FamilyGOES},
		// Unrecognized identifiers fall back to VIIRS bounds.
		{"sentinel2", FamilyVIIRS},
		{"", FamilyVIIRS},
	}

	for _, tt := range tests {
		t.Run(tt.sensorID, func(t *testing.T) {
			assert.Equal(t, tt.expected, FamilyForSensor(tt.sensorID))
		})
	}
}

func TestThresholdValues(t *testing.T) {
	tests := []struct {
		family     Family
		timeWindow time.Duration
		distanceKm float64
	}{
		{FamilyVIIRS, 360 * time.Minute, 5.0},
		{FamilyMODIS, 180 * time.Minute, 3.0},
		{FamilyLANDSAT, 4320 * time.Minute, 1.0},
		{FamilyGOES, 15 * time.Minute, 10.0},
	}

	for _, tt := range tests {
		t.Run(string(tt.family), func(t *testing.T) {
			th := tt.family.Threshold()
			assert.Equal(t, tt.timeWindow, th.TimeWindow)
			assert.Equal(t, tt.distanceKm, th.DistanceKm)
		})
	}
}

func TestThresholdFor_UnknownSensorUsesVIIRS(t *testing.T) {
	assert.Equal(t, FamilyVIIRS.Threshold(), ThresholdFor("some_future_product"))
}
