// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/admissions-rank/internal/admission"
	"github.com/JakeFAU/admissions-rank/internal/clock/system"
	"github.com/JakeFAU/admissions-rank/internal/config"
	collyfetcher "github.com/JakeFAU/admissions-rank/internal/fetcher/colly"
	"github.com/JakeFAU/admissions-rank/internal/fetcher/headless"
	"github.com/JakeFAU/admissions-rank/internal/headless/detector"
	"github.com/JakeFAU/admissions-rank/internal/id/uuid"
	"github.com/JakeFAU/admissions-rank/internal/logging"
	"github.com/JakeFAU/admissions-rank/internal/metrics"
	"github.com/JakeFAU/admissions-rank/internal/parser"
	"github.com/JakeFAU/admissions-rank/internal/policy/ratelimit"
	"github.com/JakeFAU/admissions-rank/internal/report"
	"github.com/JakeFAU/admissions-rank/internal/supervisor"
	"github.com/JakeFAU/admissions-rank/internal/worker"
)

// App holds the configuration, the logger, and the optional metrics server
// shared by every command.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	metricsSrv    *metrics.Server
	metricsCancel context.CancelFunc
	metricsDone   chan error
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the validated configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// MetricsAddr returns the metrics listener address, or "" when disabled.
func (a *App) MetricsAddr() string {
	if a.metricsSrv == nil {
		return ""
	}
	return a.metricsSrv.Addr()
}

// NewApp builds the logger and, when configured, starts the metrics server.
// It fails fast if either cannot be initialized.
func NewApp(_ context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Verbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}
	if cfg.Metrics.ListenAddr != "" {
		srv, err := metrics.Listen(cfg.Metrics.ListenAddr, logger)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithCancel(context.Background())
		a.metricsSrv = srv
		a.metricsCancel = cancel
		a.metricsDone = make(chan error, 1)
		go func() { a.metricsDone <- srv.Serve(ctx) }()
	}
	return a, nil
}

// NewWorker wires the check pipeline, writing reports to out.
func (a *App) NewWorker(out io.Writer) (*worker.Worker, error) {
	clock := system.New()

	launcher := headless.NewChromedpLauncher(a.cfg.Chromedp())
	driver := headless.NewDriver(launcher, a.cfg.Driver(), clock, a.logger.Named("browser"))
	sup, err := supervisor.New(driver, a.cfg.Supervisor(),
		supervisor.WithClock(clock),
		supervisor.WithLogger(a.logger.Named("supervisor")),
		supervisor.WithObserver(metrics.ObserveAttempt),
		supervisor.WithPacer(ratelimit.New(a.cfg.RateLimit())),
	)
	if err != nil {
		return nil, fmt.Errorf("init supervisor: %w", err)
	}

	var (
		static *collyfetcher.Fetcher
		probe  worker.Detector
	)
	if a.cfg.HTTP.StaticProbe {
		static = collyfetcher.New(a.cfg.Static(), clock, a.logger.Named("static"))
		probe = detector.NewHeuristic()
	}

	return worker.New(
		sup,
		staticFetcher(static),
		probe,
		parser.NewPatternFacts(),
		report.New(out, report.Options{ShowTable: a.cfg.Report.ShowTable}),
		uuid.New(),
		worker.Config{
			ApplicantID: a.cfg.Check.ApplicantID,
			StaticProbe: a.cfg.HTTP.StaticProbe,
		},
		a.logger,
	), nil
}

// Close stops the metrics server and flushes the logger.
func (a *App) Close() {
	if a.metricsCancel != nil {
		a.metricsCancel()
		if err := <-a.metricsDone; err != nil {
			a.logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}
	// Sync fails on terminals; best effort.
	_ = a.logger.Sync()
}

// staticFetcher keeps a nil *collyfetcher.Fetcher from becoming a non-nil interface.
func staticFetcher(f *collyfetcher.Fetcher) admission.StaticFetcher {
	if f == nil {
		return nil
	}
	return f
}
