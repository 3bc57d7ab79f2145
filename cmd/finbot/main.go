package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finbot/internal/backend"
	"finbot/internal/cli"
	"finbot/internal/config"
	"finbot/internal/gemini"
	apphttp "finbot/internal/http"
	"finbot/internal/intake"
	"finbot/internal/log"
	"finbot/internal/metrics"
	"finbot/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentApp)
	logger.Info("Starting finbot")

	cfg := cli.LoadAndValidateConfig(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("finbot stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	m := metrics.New()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("backend config: %w", err)
	}
	res, err := backend.NewFactory(logger, m).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldOperation, log.OpShutdown, log.FieldError, err)
		}
	}()

	clock := services.LocalClock(cfg.Location())

	var reconciler *services.Reconciler
	if res.Remote.Source != nil {
		reconciler = services.NewReconciler(res.Remote.Source, res.Store, logger, m)
	}
	ledgerSvc := services.NewLedgerService(res.Store, res.Pusher, reconciler, clock, logger, m)

	// A failed start-up pull leaves the persisted ledger in place.
	if ledgerSvc.Pull(ctx) {
		logger.Info("Start-up pull applied", log.FieldOperation, log.OpStartup)
	}

	var (
		parser  intake.Parser
		advisor intake.Advisor
	)
	if cfg.GeminiAPIKey != "" {
		client, err := gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel}, logger)
		if err != nil {
			return fmt.Errorf("create gemini client: %w", err)
		}
		parser, advisor = client, client
	} else {
		logger.Warn("GEMINI_API_KEY not set, chat intake will answer with a connection error")
	}
	pipeline := intake.NewPipeline(parser, advisor, ledgerSvc, res.Store, logger, m)

	scheduler := services.NewNotificationScheduler(
		res.Store,
		res.Remote.Notifier,
		clock,
		services.NotificationSchedulerConfig{Interval: cfg.NotifyInterval},
		logger,
		m,
	)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:   ledgerSvc,
		Intake:   pipeline,
		Chat:     res.Store,
		Notifier: scheduler,
		Backup:   services.NewBackup(res.Store, clock, logger),
	}, apphttp.Options{}, logger, m)

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 90 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting finbot server",
			"port", cfg.Port,
			"data_backend", cfg.DataBackend,
			"remote_backend", cfg.RemoteBackend,
			"push_mode", cfg.PushMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
