// Package firms fetches active-fire detections from the NASA FIRMS area API.
package firms

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jszwec/csvutil"

	"github.com/emberwatch/firesync/internal/domain"
)

const defaultBaseURL = "https://firms.modaps.eosdis.nasa.gov"

// Client fetches CSV detection snapshots for an area of interest.
type Client struct {
	mapKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a FIRMS area API client. baseURL is overridable for tests;
// empty selects the production endpoint.
func NewClient(mapKey, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		mapKey:     mapKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// csvRow holds the columns every FIRMS product shares. The remaining,
// product-specific columns are captured into the detection payload.
type csvRow struct {
	Latitude   float64 `csv:"latitude"`
	Longitude  float64 `csv:"longitude"`
	AcqDate    string  `csv:"acq_date"`
	AcqTime    string  `csv:"acq_time"`
	Confidence string  `csv:"confidence"`
}

// FetchArea requests the sensor's detections for a bounding box over the last
// days days. An empty response body is a valid "no active fires" result.
// Rows that fail to decode are skipped and logged; they never fail the fetch.
func (c *Client) FetchArea(ctx context.Context, sensor domain.Sensor, bbox string, days int) ([]domain.Detection, error) {
	url := fmt.Sprintf("%s/api/area/csv/%s/%s/%s/%d", c.baseURL, c.mapKey, sensor.Product, bbox, days)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("area request %s: %w", sensor.Product, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("firms API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return c.decode(resp.Body, sensor)
}

func (c *Client) decode(body io.Reader, sensor domain.Sensor) ([]domain.Detection, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(body))
	if errors.Is(err, io.EOF) {
		return nil, nil // empty body: no active fires
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	header := dec.Header()
	if !contains(header, "latitude") || !contains(header, "acq_date") {
		// The API reports errors (bad key, bad bbox) as a plain-text body.
		return nil, fmt.Errorf("malformed response: unexpected header %q", strings.Join(header, ","))
	}

	ingested := time.Now().UTC()
	var (
		detections []domain.Detection
		malformed  int
	)
	for {
		var row csvRow
		if err := dec.Decode(&row); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			malformed++
			continue
		}

		payload := make(map[string]string)
		record := dec.Record()
		for _, i := range dec.Unused() {
			payload[header[i]] = record[i]
		}

		detections = append(detections, domain.Detection{
			SensorID:   sensor.ID,
			Latitude:   row.Latitude,
			Longitude:  row.Longitude,
			AcqDate:    row.AcqDate,
			AcqTime:    domain.PadAcqTime(row.AcqTime),
			Confidence: row.Confidence,
			Payload:    payload,
			IngestedAt: ingested,
		})
	}

	if malformed > 0 && c.logger != nil {
		c.logger.Warn("skipped malformed csv rows", "sensor", sensor.ID, "rows", malformed)
	}
	return detections, nil
}

func contains(header []string, name string) bool {
	for _, h := range header {
		if h == name {
			return true
		}
	}
	return false
}
