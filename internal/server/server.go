// Package server exposes enrichment over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/matsen/bibfix/internal/enrich"
	"github.com/matsen/bibfix/internal/metrics"
)

// MaxBodySize limits request bodies, inline BibTeX included.
const MaxBodySize = "10M"

// Server is the HTTP transport around an Enricher.
type Server struct {
	echo     *echo.Echo
	enricher *enrich.Enricher
	metrics  *metrics.Metrics
	logger   *zap.Logger
	root     string
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves m's registry at /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRoot confines file requests to paths under dir. Relative paths are
// resolved against it.
func WithRoot(dir string) Option {
	return func(s *Server) {
		s.root = dir
	}
}

// New builds the server and its routes.
func New(en *enrich.Enricher, opts ...Option) *Server {
	s := &Server{
		echo:     echo.New(),
		enricher: en,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.BodyLimit(MaxBodySize))
	s.echo.Use(s.requestLogger())
	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	s.echo.GET("/healthz", s.Health)

	v1 := s.echo.Group("/v1")
	v1.POST("/enrich/entry", s.EnrichEntry)
	v1.POST("/enrich/file", s.EnrichFile)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
	}
}

// requestLogger logs one line per request.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				s.logger.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			s.logger.Info("request", fields...)
			return nil
		},
	})
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
