package domain

// Family is a satellite sensor family. Matching thresholds are keyed by
// family, not by individual product.
type Family string

const (
	FamilyVIIRS   Family = "viirs"
	FamilyMODIS   Family = "modis"
	FamilyLANDSAT Family = "landsat"
	FamilyGOES    Family = "goes"
)

// Sensor describes one FIRMS product tracked by the service.
type Sensor struct {
	ID      string // table identifier, e.g. "viirs_noaa20"
	Product string // FIRMS product name used in area API URLs
	Family  Family
}

// Sensors lists every product the service syncs. The order is the fetch
// order; each sensor owns its own detection table.
var Sensors = []Sensor{
	{ID: "modis", Product: "MODIS_NRT", Family: FamilyMODIS},
	{ID: "viirs_snpp", Product: "VIIRS_SNPP_NRT", Family: FamilyVIIRS},
	{ID: "viirs_noaa20", Product: "VIIRS_NOAA20_NRT", Family: FamilyVIIRS},
	{ID: "viirs_noaa21", Product: "VIIRS_NOAA21_NRT", Family: FamilyVIIRS},
	{ID: "landsat", Product: "LANDSAT_NRT", Family: FamilyLANDSAT},
	{ID: "goes", Product: "GOES_NRT", Family: FamilyGOES},
}

// PrimarySensorID is the sensor whose detections are cross-validated against
// all the others. NOAA-20 VIIRS has the most reliable NRT latency of the set.
const PrimarySensorID = "viirs_noaa20"

// SensorByID returns the catalog entry for id, or false if unknown.
func SensorByID(id string) (Sensor, bool) {
	for _, s := range Sensors {
		if s.ID == id {
			return s, true
		}
	}
	return Sensor{}, false
}

// SecondarySensors returns every catalog entry except the given primary.
func SecondarySensors(primaryID string) []Sensor {
	out := make([]Sensor, 0, len(Sensors)-1)
	for _, s := range Sensors {
		if s.ID != primaryID {
			out = append(out, s)
		}
	}
	return out
}
