package server

import (
	"context"
	"errors"
	"fmt"

	"SignalDesk/internal/usecase"
	"SignalDesk/pkg/config"
	xhttp "SignalDesk/pkg/http"
	applogger "SignalDesk/pkg/logger"
	"SignalDesk/pkg/scheduler"
)

const pollJob = "signals-poll"

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	httpServer *xhttp.Server
	runner     *scheduler.Runner
	pipeline   *usecase.SignalPipeline
	stream     *usecase.PriceStream
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	runner *scheduler.Runner,
	pipeline *usecase.SignalPipeline,
	stream *usecase.PriceStream,
) *App {
	return &App{
		cfg:        cfg,
		logger:     l,
		httpServer: httpServer,
		runner:     runner,
		pipeline:   pipeline,
		stream:     stream,
	}
}

// PollNow triggers one poll outside the schedule.
func (a *App) PollNow() {
	a.runner.RunNow(pollJob, a.cfg.Poll.TickTimeout, a.pipeline.Run)
}

// Run starts every component and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if _, err := a.runner.Every(a.cfg.Poll.Interval, pollJob, a.cfg.Poll.TickTimeout, a.pipeline.Run); err != nil {
		return fmt.Errorf("schedule poll: %w", err)
	}

	if a.cfg.Ticker.Enabled {
		if err := a.stream.Start(ctx); err != nil && !errors.Is(err, usecase.ErrStreamRunning) {
			return fmt.Errorf("start price stream: %w", err)
		}
		a.logger.Info("price stream started", applogger.String("symbol", a.cfg.Ticker.Symbol))
	}

	// first poll runs immediately rather than one interval after startup
	a.PollNow()
	a.runner.Start()
	a.logger.Info("poller started",
		applogger.String("table", string(a.pipeline.Dataset())),
		applogger.Strings("datasets", a.cfg.Datasets.Supported),
		applogger.Duration("interval", a.cfg.Poll.Interval),
	)

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		a.shutdown()
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	a.shutdown()
	return nil
}

// shutdown gracefully stops all services.
func (a *App) shutdown() {
	a.logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	a.runner.Stop()
	a.stream.Stop()

	a.logger.Info("shutdown complete")
}
