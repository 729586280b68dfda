// Package server exposes the balance ingest and dashboard HTTP API.
package server

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pumbayo1/quiltracker/internal/loader"
	"github.com/pumbayo1/quiltracker/internal/oracle"
	"github.com/pumbayo1/quiltracker/internal/store"
)

//go:embed templates/dashboard.html.tmpl
var templatesFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templatesFS, "templates/*.tmpl"))

// Options parameterise the HTTP server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves balance reports coming in and metrics going out.
type Server struct {
	opts    Options
	store   store.ObservationStore
	loader  *loader.Loader
	quotes  *oracle.Client
	logger  zerolog.Logger
	engine  *gin.Engine
	httpSrv *http.Server
}

// New wires the HTTP routes around the given store, loader and price client.
func New(opts Options, st store.ObservationStore, ld *loader.Loader, quotes *oracle.Client, logger zerolog.Logger) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		// chart rendering happens inside the request
		opts.WriteTimeout = 30 * time.Second
	}

	s := &Server{
		opts:   opts,
		store:  st,
		loader: ld,
		quotes: quotes,
		logger: logger.With().Str("component", "server").Logger(),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(requestLogger(s.logger), gin.Recovery())
	engine.SetHTMLTemplate(dashboardTemplate)

	engine.GET("/", s.handleDashboard)
	engine.POST("/update_balance", s.handleUpdateBalance)
	engine.GET("/api/metrics", s.handleMetrics)
	engine.GET("/charts/:chart", s.handleChart)
	engine.GET("/healthz", s.handleHealthz)

	s.engine = engine
	s.httpSrv = &http.Server{
		Addr:         opts.Addr,
		Handler:      engine,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Handler exposes the route tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and blocks until ctx is cancelled
// or the listener fails. Cancellation triggers a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Str("addr", s.opts.Addr).Msg("http server listening")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("http server stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// requestLogger emits one structured line per request.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}
