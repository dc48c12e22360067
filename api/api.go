package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/caesium-cloud/hera/api/rest/v1"
	"github.com/caesium-cloud/hera/internal/center"
	"github.com/caesium-cloud/hera/internal/heartbeat"
	"github.com/caesium-cloud/hera/internal/link"
	"github.com/caesium-cloud/hera/pkg/log"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	Port      int
	Center    *center.Center
	Slot      *link.Slot
	Heartbeat *heartbeat.Monitor
	// Registry receives the HTTP metrics; nil uses the default
	// prometheus registry.
	Registry *prometheus.Registry
}

// Server is hera's HTTP API.
type Server struct {
	echo      *echo.Echo
	port      int
	slot      *link.Slot
	heartbeat *heartbeat.Monitor
}

func New(cfg Config) *Server {
	s := &Server{
		echo:      echo.New(),
		port:      cfg.Port,
		slot:      cfg.Slot,
		heartbeat: cfg.Heartbeat,
	}
	e := s.echo
	e.HideBanner = true
	e.HidePort = true

	// metrics
	mwConfig := echoprometheus.MiddlewareConfig{Subsystem: "hera"}
	handlerConfig := echoprometheus.HandlerConfig{}
	if cfg.Registry != nil {
		mwConfig.Registerer = cfg.Registry
		handlerConfig.Gatherer = cfg.Registry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(mwConfig))
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(handlerConfig))

	// health
	e.GET("/health", s.health)

	// REST
	rest.Bind(e.Group("/v1"), cfg.Center)

	return s
}

// ServeHTTP exposes the router, mostly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		log.Info("api listening", "port", s.port)
		errs <- s.echo.Start(fmt.Sprintf(":%v", s.port))
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
