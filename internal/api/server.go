// Package api exposes the relay's HTTP surface: registration, pairing, the
// pending-command mailbox, capture uploads, and chat.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hollandm/glimpse/internal/analyze"
	"github.com/hollandm/glimpse/internal/blob"
	"github.com/hollandm/glimpse/internal/models"
	"github.com/hollandm/glimpse/internal/pipeline"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// MaxUploadBytes caps a single capture upload.
var MaxUploadBytes int64 = 64 << 20

// StartOpts holds configuration for the relay server.
type StartOpts struct {
	DB       *gorm.DB
	Blobs    blob.Store
	Analyzer analyze.Analyzer
	Log      *slog.Logger
	Port     int

	// Retention for processed commands.
	ProcessedTTL  time.Duration
	PurgeSchedule string
}

// Server wires the relay's dependencies into HTTP handlers.
type Server struct {
	db       *gorm.DB
	blobs    blob.Store
	pipeline *pipeline.Pipeline
	log      *slog.Logger

	// Degraded-mode sessions, kept when the session store is unreachable
	// at registration time. Chat and media stay unusable for these until
	// the store returns; registration itself must not block the desktop.
	mu  sync.Mutex
	mem map[string]*models.Session // by desktopID
}

// NewServer builds a Server from its dependencies.
func NewServer(opts StartOpts) (*Server, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("api: db is required")
	}
	if opts.Blobs == nil {
		return nil, fmt.Errorf("api: blob store is required")
	}
	if opts.Analyzer == nil {
		return nil, fmt.Errorf("api: analyzer is required")
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		db:    opts.DB,
		blobs: opts.Blobs,
		pipeline: &pipeline.Pipeline{
			DB:       opts.DB,
			Blobs:    opts.Blobs,
			Analyzer: opts.Analyzer,
			Log:      log,
		},
		log: log,
		mem: make(map[string]*models.Session),
	}, nil
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s.registerRoutes(router)
	return router
}

// Start launches the relay HTTP server and the retention cron job. It
// blocks until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	srv, err := NewServer(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	// Retention: periodically drop processed commands past their TTL.
	var c *cron.Cron
	if opts.ProcessedTTL > 0 && opts.PurgeSchedule != "" {
		c = cron.New()
		if _, err := c.AddFunc(opts.PurgeSchedule, func() {
			srv.purgeProcessed(opts.ProcessedTTL)
		}); err != nil {
			return fmt.Errorf("api: purge schedule %q: %w", opts.PurgeSchedule, err)
		}
		c.Start()
		defer c.Stop()
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: srv.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	srv.log.Info("relay listening", "port", opts.Port)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	srv.pipeline.Wait()
	return nil
}
