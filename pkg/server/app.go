package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CoilScan/internal/usecase"
	pkgch "CoilScan/pkg/clickhouse"
	"CoilScan/pkg/config"
	xhttp "CoilScan/pkg/http"
	applogger "CoilScan/pkg/logger"
)

// App encapsulates the entire application lifecycle: the periodic scan
// scheduler, the optional live candle tail, and the HTTP API.
type App struct {
	cfg        *config.Config
	scanner    *usecase.Scanner
	tail       *usecase.TailCollector
	chClient   *pkgch.Client
	httpServer *xhttp.Server
	logger     *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	scanner *usecase.Scanner,
	tail *usecase.TailCollector,
	chClient *pkgch.Client,
	handler xhttp.Handler,
	lgr *applogger.Logger,
) *App {
	httpServer := xhttp.NewServer(handler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
	)
	return &App{
		cfg:        cfg,
		scanner:    scanner,
		tail:       tail,
		chClient:   chClient,
		httpServer: httpServer,
		logger:     lgr,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	if a.tail != nil && a.cfg.Binance.StreamEnabled {
		if err := a.tail.Start(ctx); err != nil {
			a.logger.Warn("candle tail start error", applogger.Error(err))
		} else {
			a.logger.Info("candle tail started")
		}
	}

	go a.schedule(ctx)

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// schedule runs a scan immediately and then on every interval tick.
func (a *App) schedule(ctx context.Context) {
	a.runOnce(ctx)

	ticker := time.NewTicker(a.cfg.Scan.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runOnce(ctx)
		}
	}
}

func (a *App) runOnce(ctx context.Context) {
	summary, err := a.scanner.Run(ctx, false)
	if err != nil {
		if errors.Is(err, usecase.ErrScanInProgress) {
			a.logger.Warn("scheduled scan skipped, run in progress")
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		a.logger.Error("scheduled scan failed", applogger.Error(err))
		return
	}
	a.logger.Info("scheduled scan complete",
		applogger.String("scan_id", summary.ScanID),
		applogger.Int("overall_passes", summary.OverallPasses),
	)
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	if a.tail != nil {
		if err := a.tail.Stop(); err != nil {
			a.logger.Warn("candle tail stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
