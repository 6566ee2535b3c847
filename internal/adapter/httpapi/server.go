package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emberwatch/firesync/internal/domain"
	"github.com/emberwatch/firesync/internal/store"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Runner accepts sync-run requests.
type Runner interface {
	TryStart(ctx context.Context, bbox string) bool
}

// Query is the read surface the API serves from.
type Query interface {
	ListValidatedSince(ctx context.Context, since time.Time) ([]domain.ValidatedFire, error)
	ListDetections(ctx context.Context, sensorID string) ([]domain.Detection, error)
	ListDetectionsSince(ctx context.Context, sensorID string, since time.Time) ([]domain.Detection, error)
	Status(ctx context.Context) (store.Status, error)
}

// Server exposes the REST API plus health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	query      Query
	runner     Runner
	logger     *slog.Logger
}

// NewServer wires routes onto a gin engine behind the usual server timeouts.
func NewServer(addr string, query Query, runner Runner, ready ReadinessChecker, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine: engine,
		query:  query,
		runner: runner,
		logger: logger,
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	engine.GET("/readyz", handleReady(ready))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/api/v1")
	{
		v1.GET("/fires", s.handleListFires)
		v1.GET("/detections/:sensor", s.handleListDetections)
		v1.GET("/status", s.handleStatus)
		v1.POST("/run", s.handleRun)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func handleReady(checker ReadinessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// handleListFires returns validated fires, optionally filtered by acquisition
// time.
// GET /api/v1/fires?since=RFC3339
func (s *Server) handleListFires(c *gin.Context) {
	since, ok := parseSince(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	fires, err := s.query.ListValidatedSince(ctx, since)
	if err != nil {
		s.logger.Error("list fires failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": fires,
		"meta": gin.H{"count": len(fires)},
	})
}

// handleListDetections returns the stored rows for one sensor.
// GET /api/v1/detections/:sensor?since=RFC3339
func (s *Server) handleListDetections(c *gin.Context) {
	sensorID := c.Param("sensor")
	if _, ok := domain.SensorByID(sensorID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown sensor: " + sensorID})
		return
	}

	since, ok := parseSince(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	var (
		detections []domain.Detection
		err        error
	)
	if since.IsZero() {
		detections, err = s.query.ListDetections(ctx, sensorID)
	} else {
		detections, err = s.query.ListDetectionsSince(ctx, sensorID, since)
	}
	if err != nil {
		s.logger.Error("list detections failed", "sensor", sensorID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": detections,
		"meta": gin.H{"sensor": sensorID, "count": len(detections)},
	})
}

// handleStatus reports database reachability, the active area, and row counts.
// GET /api/v1/status
func (s *Server) handleStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	st, err := s.query.Status(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "status": st})
		return
	}
	c.JSON(http.StatusOK, st)
}

type runRequest struct {
	BBox string `json:"bbox"`
}

// handleRun triggers a background sync run. Responds 202 when the run was
// accepted and 409 when one is already active.
// POST /api/v1/run
func (s *Server) handleRun(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	if !s.runner.TryStart(c.Request.Context(), req.BBox) {
		c.JSON(http.StatusConflict, gin.H{"error": "a sync run is already in progress"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "bbox": req.BBox})
}

func parseSince(c *gin.Context) (time.Time, bool) {
	raw := c.Query("since")
	if raw == "" {
		return time.Time{}, true
	}
	since, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since, expected RFC3339: " + raw})
		return time.Time{}, false
	}
	return since, true
}
