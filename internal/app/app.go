package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hostpin/internal/config"
	"hostpin/internal/hosts"
	"hostpin/internal/logging"
	"hostpin/internal/metrics"
	"hostpin/internal/paths"
	"hostpin/internal/privilege"
	"hostpin/internal/probe"
	"hostpin/internal/runner"
	"hostpin/internal/scheduler"
	"hostpin/internal/server"
	"hostpin/internal/storage"
	"hostpin/internal/storage/sqlite"
)

// App represents the application context
type App struct {
	Config     *config.Config
	ConfigPath string // empty when running on defaults
	Logger     *zap.Logger
	Storage    storage.Storage
	Hosts      *hosts.File
	Metrics    *metrics.Metrics
	Runner     *runner.Runner
}

// Options override values from the config file. Zero values keep the file's.
type Options struct {
	ConfigPath string
	DBPath     string
	HostsPath  string
	LogLevel   string
	Console    bool // human-readable logs instead of JSON
}

// New creates a new application instance
func New(opts Options) (*App, error) {
	cfg, cfgPath, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.HostsPath != "" {
		cfg.HostsPath = opts.HostsPath
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	log, err := logging.New(cfg.LogLevel, opts.Console)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		if dbPath, err = paths.DBPath(); err != nil {
			return nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}
	}
	store, err := sqlite.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	paths.ChownToRealUser(dbPath)

	if err := store.SeedSettings(context.Background(), cfg.SeedSettings()); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	}

	hostsFile := hosts.NewFile(cfg.HostsPath, paths.LockPath())
	m := metrics.New()

	check := privilege.Check
	if !cfg.PrivilegeCheckEnabled() {
		check = privilege.Skip
	}

	r := runner.New(runner.Config{
		Store:     store,
		Hosts:     hostsFile,
		Privilege: check,
		Observer:  m,
		Recorder:  m,
		Logger:    log,
		NewStrategy: func(name string) (probe.Strategy, error) {
			return probe.NewStrategy(name, probe.Options{})
		},
	})

	log.Debug("application initialized",
		zap.String("config", cfgPath),
		zap.String("db", dbPath),
		zap.String("hosts", hostsFile.Path))

	return &App{
		Config:     cfg,
		ConfigPath: cfgPath,
		Logger:     log,
		Storage:    store,
		Hosts:      hostsFile,
		Metrics:    m,
		Runner:     r,
	}, nil
}

// NewScheduler returns a scheduler that runs with the stored settings every
// stored interval.
func (a *App) NewScheduler() (*scheduler.Scheduler, error) {
	return scheduler.New(
		func(ctx context.Context) {
			a.Runner.Run(ctx, runner.Request{})
		},
		scheduler.Options{
			Interval: func(ctx context.Context) (time.Duration, error) {
				s, err := a.Storage.LoadSettings(ctx)
				if err != nil {
					return 0, err
				}
				return s.Interval, nil
			},
			Logger: a.Logger,
		},
	)
}

// NewServer returns the HTTP API backed by this application.
func (a *App) NewServer(sched *scheduler.Scheduler) *server.Server {
	cfg := server.Config{
		Store:   a.Storage,
		Runner:  a.Runner,
		Hosts:   a.Hosts,
		Metrics: a.Metrics.Handler(a.Logger),
		Logger:  a.Logger,
	}
	if sched != nil {
		cfg.Scheduler = sched
	}
	return server.New(cfg)
}

// Close closes the application and releases resources
func (a *App) Close() error {
	a.Logger.Sync()
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}
