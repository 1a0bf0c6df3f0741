package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kestrelnode/kestrel/config"
	"github.com/kestrelnode/kestrel/runtime"
	"github.com/kestrelnode/kestrel/telemetry"
)

// TelemetryServer exposes the metric registry over HTTP: the prometheus
// exposition format at /metrics and a flat JSON snapshot keyed by label
// path at /metrics/snapshot.
type TelemetryServer struct {
	rc       *runtime.Context
	registry *telemetry.Registry

	http *http.Server
}

// NewTelemetryServer builds the telemetry HTTP server.
func NewTelemetryServer(rc *runtime.Context, cfg config.TelemetryConfig, registry *telemetry.Registry) *TelemetryServer {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &TelemetryServer{
		rc:       rc,
		registry: registry,
		http: &http.Server{
			Addr:              cfg.Address,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "kestrel-telemetry",
		})
	})
	router.GET("/metrics", gin.WrapH(registry.Handler()))
	router.GET("/metrics/snapshot", s.handleSnapshot)

	return s
}

// Name implements Service.
func (s *TelemetryServer) Name() string {
	return "telemetry-server"
}

// Start implements Service. The listener runs as a fatal-policy task, so a
// serve error other than a clean close takes the whole node down, the same
// way the ingest server treats its listener.
func (s *TelemetryServer) Start(ctx context.Context) error {
	s.rc.Spawn("listener", runtime.Fatal, func(rc *runtime.Context) error {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("telemetry server failed: %w", err)
		}
		return nil
	})
	s.rc.Logger().Info().Str("addr", s.http.Addr).Msg("telemetry server listening")
	return nil
}

// Stop implements Service.
func (s *TelemetryServer) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleSnapshot serves the registry as a flat "path/name" to value map.
func (s *TelemetryServer) handleSnapshot(c *gin.Context) {
	snap, err := s.registry.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": snap})
}
