// Package domain models NASA FIRMS active-fire detection data.
//
// # Data Source
//
// Detections originate from the NASA FIRMS area API, which serves
// near-real-time (NRT) active-fire products as CSV, one row per detection:
// https://firms.modaps.eosdis.nasa.gov/api/area/. The service polls the API
// on a fixed interval for a configured bounding box and recency window and
// reconciles each sensor's table against the returned snapshot.
//
// # FIRMS Data Conventions
//
// Acquisition time format:
//
//	HHMM in 24-hour notation, e.g. "0043" = 00:43 UTC.
//	The API zero-pads to four digits, but values that lost their padding
//	upstream ("43" → "0043") are normalized before use. Combined with
//	acq_date (YYYY-MM-DD) to form the full UTC acquisition timestamp.
//
// Confidence encoding (varies by sensor family):
//
//	VIIRS and GOES products use a letter scale: l (low), n (nominal), h (high).
//	MODIS uses an integer 0-100.
//	The value is carried through unchanged; the service never interprets it.
//
// Payload columns:
//
//	Each product carries its own radiometric columns (brightness, bright_ti4,
//	bright_t31, frp, scan, track, daynight, ...). These are opaque to the
//	sync and validation logic and are stored as-is.
//
// # Identity
//
// A detection is identified by (latitude, longitude, acq_date, acq_time)
// within one sensor's table. The upstream API re-serves the same detections
// on every poll inside the recency window, and occasionally duplicates rows
// within one response, so this natural key is both the dedupe key and the
// upsert conflict key.
//
// # Cross-Validation Thresholds
//
// A primary detection is corroborated by a secondary sensor when a detection
// from that sensor lies within the secondary family's time window and
// geodesic distance threshold. The windows reflect each platform's revisit
// cadence and footprint: GOES is geostationary (minutes apart, coarse
// pixels), LANDSAT revisits every few days but resolves small fires, VIIRS
// and MODIS sit in between. See [ThresholdFor].
package domain
