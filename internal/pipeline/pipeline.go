package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/emberwatch/firesync/internal/domain"
	"github.com/emberwatch/firesync/internal/match"
	"github.com/emberwatch/firesync/internal/observability"
	"github.com/emberwatch/firesync/internal/store"
)

// ErrRunInProgress is returned when a sync run is requested while another
// run holds the pipeline.
var ErrRunInProgress = errors.New("sync run already in progress")

// Fetcher retrieves active-fire detections for one sensor over an area.
type Fetcher interface {
	FetchArea(ctx context.Context, sensor domain.Sensor, bbox string, days int) ([]domain.Detection, error)
}

// Storage is the persistence surface the pipeline drives.
type Storage interface {
	EnsureArea(ctx context.Context, requested string) (wiped bool, err error)
	LastArea(ctx context.Context) (string, error)
	Reconcile(ctx context.Context, sensor domain.Sensor, fresh []domain.Detection, windowDays int) (store.ReconcileReport, error)
	ListDetections(ctx context.Context, sensorID string) ([]domain.Detection, error)
	PersistValidated(ctx context.Context, fires []domain.ValidatedFire) ([]domain.ValidatedFire, error)
}

// Validator cross-checks primary-sensor detections against secondary sets.
type Validator interface {
	Validate(primarySensor string, primary []domain.Detection, secondaries []match.SecondarySet) match.Result
}

// AlertPublisher pushes newly validated fires downstream.
type AlertPublisher interface {
	PublishFires(ctx context.Context, fires []domain.ValidatedFire) error
}

// RunReport summarizes one completed sync run.
type RunReport struct {
	Area           string                  `json:"area"`
	AreaWiped      bool                    `json:"area_wiped"`
	Reconciled     []store.ReconcileReport `json:"reconciled,omitempty"`
	PrimaryTotal   int                     `json:"primary_total"`
	SkippedRows    int                     `json:"skipped_rows"`
	FiresValidated int                     `json:"fires_validated"`
	FiresInserted  int                     `json:"fires_inserted"`
	Duration       time.Duration           `json:"duration"`
}

// Pipeline orchestrates one sync cycle: area guard, per-sensor fetch and
// reconcile, cross-sensor validation, and the validated-fire sink.
type Pipeline struct {
	fetcher Fetcher
	storage Storage
	matcher Validator
	alerts  AlertPublisher // nil disables alert publishing
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock

	defaultBBox string
	days        int

	mu    sync.Mutex
	ready atomic.Bool
}

// New creates a Pipeline. A nil alerts publisher disables alerting.
func New(fetcher Fetcher, storage Storage, matcher Validator, alerts AlertPublisher,
	defaultBBox string, days int, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:     fetcher,
		storage:     storage,
		matcher:     matcher,
		alerts:      alerts,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		defaultBBox: defaultBBox,
		days:        days,
	}
}

// SetClock replaces the pipeline's clock. Tests use a fake to drive the
// periodic scheduler.
func (p *Pipeline) SetClock(c clockwork.Clock) {
	p.clock = c
}

// CheckReadiness returns nil once the pipeline has completed at least one
// sync run.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no sync run has completed yet")
	}
	return nil
}

// RunOnce executes a single sync run for the given bounding box, or for the
// configured default when bbox is empty. Returns ErrRunInProgress if another
// run is active.
func (p *Pipeline) RunOnce(ctx context.Context, bbox string) (RunReport, error) {
	if !p.mu.TryLock() {
		p.metrics.RunsRejected.Inc()
		return RunReport{}, ErrRunInProgress
	}
	defer p.mu.Unlock()
	return p.run(ctx, bbox)
}

// TryStart launches a sync run in the background, detached from the caller's
// cancellation. It reports false when a run is already active.
func (p *Pipeline) TryStart(ctx context.Context, bbox string) bool {
	if !p.mu.TryLock() {
		p.metrics.RunsRejected.Inc()
		return false
	}
	go func() {
		defer p.mu.Unlock()
		if _, err := p.run(context.WithoutCancel(ctx), bbox); err != nil {
			p.logger.Error("background sync run failed", "error", err)
		}
	}()
	return true
}

func (p *Pipeline) run(ctx context.Context, bbox string) (RunReport, error) {
	if bbox == "" {
		bbox = p.defaultBBox
	}
	start := p.clock.Now()
	p.metrics.RunInProgress.Set(1)
	defer p.metrics.RunInProgress.Set(0)

	rep := RunReport{Area: bbox}
	p.logger.Info("sync run started", "area", bbox, "days", p.days)

	wiped, err := p.storage.EnsureArea(ctx, bbox)
	if err != nil {
		return rep, err
	}
	rep.AreaWiped = wiped
	if wiped {
		p.metrics.AreaWipes.Inc()
		p.logger.Warn("area of interest changed, stores wiped", "area", bbox)
	}

	if bbox == "" {
		// Nothing to sync without an area of interest.
		p.logger.Info("no area of interest configured, skipping fetch")
		p.finish(&rep, start)
		return rep, nil
	}

	rep.Reconciled, err = p.syncSensors(ctx, bbox)
	if err != nil {
		return rep, err
	}

	if err := p.validate(ctx, &rep); err != nil {
		return rep, err
	}

	p.finish(&rep, start)
	p.ready.Store(true)
	p.logger.Info("sync run finished",
		"area", rep.Area,
		"primary_total", rep.PrimaryTotal,
		"fires_validated", rep.FiresValidated,
		"fires_inserted", rep.FiresInserted,
		"duration", rep.Duration,
	)
	return rep, nil
}

func (p *Pipeline) finish(rep *RunReport, start time.Time) {
	rep.Duration = p.clock.Since(start)
	p.metrics.RunDuration.Observe(rep.Duration.Seconds())
}

// syncSensors fetches and reconciles every sensor concurrently. A failing
// sensor does not block the others; its error is joined into the result.
func (p *Pipeline) syncSensors(ctx context.Context, bbox string) ([]store.ReconcileReport, error) {
	var (
		wg      sync.WaitGroup
		resMu   sync.Mutex
		reports []store.ReconcileReport
		errs    []error
	)

	for _, sensor := range domain.Sensors {
		wg.Add(1)
		go func(sensor domain.Sensor) {
			defer wg.Done()
			rep, err := p.syncSensor(ctx, sensor, bbox)
			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			reports = append(reports, rep)
		}(sensor)
	}
	wg.Wait()

	sort.Slice(reports, func(i, j int) bool { return reports[i].Sensor < reports[j].Sensor })
	return reports, errors.Join(errs...)
}

func (p *Pipeline) syncSensor(ctx context.Context, sensor domain.Sensor, bbox string) (store.ReconcileReport, error) {
	fresh, err := p.fetcher.FetchArea(ctx, sensor, bbox, p.days)
	if err != nil {
		p.metrics.FetchErrors.WithLabelValues(sensor.ID).Inc()
		p.logger.Error("fetch failed", "sensor", sensor.ID, "error", err)
		return store.ReconcileReport{}, &domain.FetchError{Sensor: sensor.ID, Err: err}
	}
	p.metrics.RowsFetched.WithLabelValues(sensor.ID).Add(float64(len(fresh)))

	rep, err := p.storage.Reconcile(ctx, sensor, fresh, p.days)
	if err != nil {
		p.metrics.StoreErrors.WithLabelValues(sensor.ID).Inc()
		p.logger.Error("reconcile failed", "sensor", sensor.ID, "error", err)
		return store.ReconcileReport{}, err
	}
	p.metrics.RowsUpserted.WithLabelValues(sensor.ID).Add(float64(rep.Staged))
	p.metrics.RowsDeleted.WithLabelValues(sensor.ID).Add(float64(rep.Deleted))

	p.logger.Debug("sensor reconciled",
		"sensor", sensor.ID,
		"fetched", rep.Fetched,
		"staged", rep.Staged,
		"deleted", rep.Deleted,
		"rows", rep.After,
	)
	return rep, nil
}

// validate reads the reconciled stores back and runs cross-sensor
// validation over the full stored window.
func (p *Pipeline) validate(ctx context.Context, rep *RunReport) error {
	primary, err := p.storage.ListDetections(ctx, domain.PrimarySensorID)
	if err != nil {
		return err
	}

	secondaries := make([]match.SecondarySet, 0, len(domain.Sensors)-1)
	for _, sensor := range domain.SecondarySensors(domain.PrimarySensorID) {
		dets, err := p.storage.ListDetections(ctx, sensor.ID)
		if err != nil {
			return err
		}
		secondaries = append(secondaries, match.SecondarySet{SensorID: sensor.ID, Detections: dets})
	}

	result := p.matcher.Validate(domain.PrimarySensorID, primary, secondaries)
	rep.PrimaryTotal = result.PrimaryTotal
	rep.SkippedRows = result.SkippedRows
	rep.FiresValidated = len(result.Fires)
	p.metrics.FiresValidated.Add(float64(len(result.Fires)))
	p.metrics.RowsSkipped.Add(float64(result.SkippedRows))

	inserted, err := p.storage.PersistValidated(ctx, result.Fires)
	if err != nil {
		return err
	}
	rep.FiresInserted = len(inserted)
	p.metrics.FiresInserted.Add(float64(len(inserted)))

	if p.alerts != nil && len(inserted) > 0 {
		// Alerts are best effort; a broker outage must not fail the run.
		if err := p.alerts.PublishFires(ctx, inserted); err != nil {
			p.logger.Error("publish fire alerts failed", "error", err, "count", len(inserted))
		}
	}
	return nil
}

// RunPeriodic executes sync runs on a fixed interval until the context is
// cancelled. Each tick re-reads the persisted area so runs triggered over
// HTTP with a new bounding box carry forward.
func (p *Pipeline) RunPeriodic(ctx context.Context, interval time.Duration) error {
	p.logger.Info("scheduler started", "interval", interval)
	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		bbox, err := p.storage.LastArea(ctx)
		if err != nil {
			p.logger.Error("read last area failed", "error", err)
			bbox = ""
		}
		if bbox == "" {
			bbox = p.defaultBBox
		}

		if _, err := p.RunOnce(ctx, bbox); err != nil && !errors.Is(err, ErrRunInProgress) {
			p.logger.Error("sync run failed", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}
