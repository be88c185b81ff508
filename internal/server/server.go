// Package server exposes runs, settings and history over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"hostpin/internal/runner"
	"hostpin/internal/storage/models"
)

// Store is the slice of storage the API reads and edits.
type Store interface {
	LoadSettings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, settings *models.Settings) error
	LoadAssignment(ctx context.Context) (models.Assignment, error)
	GetLastRunTime(ctx context.Context) (*time.Time, error)
	GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error)
	GetRecentRuns(ctx context.Context, limit int) ([]*models.Run, error)
}

// Runner executes runs.
type Runner interface {
	Run(ctx context.Context, req runner.Request) *runner.Result
	State() runner.State
}

// Scheduler reports and changes the automatic run interval.
type Scheduler interface {
	Interval() time.Duration
	NextRun() (time.Time, bool)
	Reschedule(interval time.Duration) error
}

// HostsReader reads the current hosts document.
type HostsReader interface {
	Read() (string, error)
}

// Config wires the API. Scheduler, Hosts and Metrics are optional.
type Config struct {
	Store     Store
	Runner    Runner
	Scheduler Scheduler
	Hosts     HostsReader
	Metrics   http.Handler
	Logger    *zap.Logger
}

type Server struct {
	config Config
	echo   *echo.Echo
	log    *zap.Logger
}

func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	srv := &Server{config: cfg, log: log.Named("api")}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			srv.log.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))

	api := e.Group("/api")
	api.GET("/status", srv.getStatus)
	api.GET("/settings", srv.getSettings)
	api.PUT("/settings", srv.putSettings)
	api.POST("/run", srv.postRun)
	api.GET("/events", srv.getEvents)
	api.GET("/runs", srv.getRuns)

	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics))
	}

	srv.echo = e
	return srv
}

// Handler returns the API as an http.Handler.
func (srv *Server) Handler() http.Handler {
	return srv.echo
}

// Start serves on addr until Shutdown is called.
func (srv *Server) Start(addr string) error {
	srv.log.Info("listening", zap.String("addr", addr))
	err := srv.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (srv *Server) Shutdown(ctx context.Context) error {
	return srv.echo.Shutdown(ctx)
}
