package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kestrelnode/kestrel/config"
	"github.com/kestrelnode/kestrel/runtime"
	"github.com/kestrelnode/kestrel/seqalloc"
)

// Server exposes the submission boundary over HTTP. It also mounts the
// embedded sequence allocator routes when one is provided, so a node can
// serve as allocator for its peers.
type Server struct {
	rc       *runtime.Context
	pipeline *Pipeline
	maxBody  int64

	http *http.Server
}

// NewServer builds the ingestion HTTP server.
func NewServer(rc *runtime.Context, cfg config.IngestConfig, pipeline *Pipeline, store *seqalloc.Store) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	s := &Server{
		rc:       rc,
		pipeline: pipeline,
		maxBody:  cfg.MaxBodyBytes,
		http: &http.Server{
			Addr:              cfg.Address,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "kestrel-ingest",
		})
	})
	router.POST("/v1/submit", s.handleSubmit)

	if store != nil {
		seqalloc.RegisterRoutes(router, store)
	}

	return s
}

// Name implements the lifecycle service interface.
func (s *Server) Name() string {
	return "ingest-server"
}

// Start begins serving. It returns immediately; the listener runs as a
// fatal-policy task, so a serve error other than a clean close takes the
// whole node down.
func (s *Server) Start(ctx context.Context) error {
	s.rc.Spawn("listener", runtime.Fatal, func(rc *runtime.Context) error {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ingest server failed: %w", err)
		}
		return nil
	})
	s.rc.Logger().Info().Str("addr", s.http.Addr).Msg("ingest server listening")
	return nil
}

// Stop shuts the server down, honoring ctx as a deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleSubmit is the single ingestion operation: submit(bytes). The
// response never carries diagnostics beyond accepted or rejected.
func (s *Server) handleSubmit(c *gin.Context) {
	reader := http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)
	data, err := io.ReadAll(reader)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"result": Rejected.String()})
		return
	}

	if s.pipeline.Submit(c.Request.Context(), data) == Accepted {
		c.JSON(http.StatusAccepted, gin.H{"result": Accepted.String()})
		return
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{"result": Rejected.String()})
}
