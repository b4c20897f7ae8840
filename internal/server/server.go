// Package server is the browser UI: a form for the pricer inputs, the
// computed price and the generated heatmap, plus a small JSON API.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contactkeval/option-surface/internal/display"
	"github.com/contactkeval/option-surface/internal/logger"
	"github.com/contactkeval/option-surface/internal/market"
	"github.com/contactkeval/option-surface/internal/pricing"
	"github.com/contactkeval/option-surface/internal/surface"
)

//go:embed templates/*.html
var templates embed.FS

// Options configures a Server.
type Options struct {
	OutputPath     string
	ValidateInputs bool
	Defaults       pricing.Input // values shown in an empty form
	Lookback       time.Duration // realized volatility window for /api/spot
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Server serves the UI. Heatmap generation is serialized: one computation
// at a time, others wait.
type Server struct {
	gen     *surface.Generator
	viewer  *display.Viewer
	market  market.Provider
	opts    Options
	metrics *Metrics
	engine  *gin.Engine

	genMu sync.Mutex
}

// New builds the routes. prov may be nil, which disables /api/spot.
func New(gen *surface.Generator, prov market.Provider, opts Options) (*Server, error) {
	if gen == nil {
		return nil, errors.New("server: nil generator")
	}
	if opts.OutputPath == "" {
		return nil, errors.New("server: empty heatmap output path")
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 90 * 24 * time.Hour
	}
	tmpl, err := template.ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		gen:     gen,
		viewer:  &display.Viewer{},
		market:  prov,
		opts:    opts,
		metrics: NewMetrics(),
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(s.metrics))
	r.SetHTMLTemplate(tmpl)

	r.GET("/", s.index)
	r.POST("/", s.submit)
	r.GET("/heatmap.png", s.heatmapImage)
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	{
		api.GET("/price", s.apiPrice)
		api.POST("/heatmap", s.apiHeatmap)
		api.GET("/spot/:ticker", s.apiSpot)
	}

	s.engine = r
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Viewer returns the heatmap view state.
func (s *Server) Viewer() *display.Viewer { return s.viewer }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server starting on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Infof("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// generate renders a heatmap for in and loads it into the viewer. It
// returns the grid and the loaded image size.
func (s *Server) generate(in pricing.Input) (grid *surface.Grid, width, height int, err error) {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	s.metrics.HeatmapGenerations.Set(1)
	defer s.metrics.HeatmapGenerations.Set(0)

	start := time.Now()
	grid, err = s.gen.Generate(in, s.opts.OutputPath)
	if err != nil {
		stage := "write"
		if errors.Is(err, surface.ErrRenderFailed) {
			stage = "render"
		}
		s.metrics.HeatmapFailures.WithLabelValues(stage).Inc()
		return nil, 0, 0, err
	}
	s.metrics.HeatmapDuration.Observe(time.Since(start).Seconds())

	if err := s.viewer.Reload(s.opts.OutputPath); err != nil {
		s.metrics.HeatmapFailures.WithLabelValues("decode").Inc()
		return nil, 0, 0, err
	}
	s.metrics.HeatmapsTotal.Inc()
	width, height = s.viewer.Texture().Size()
	return grid, width, height, nil
}
