package main

import (
	"errors"
	"fmt"
	"os"

	"finbot/internal/amqp"
	"finbot/internal/backend"
	"finbot/internal/cli"
	"finbot/internal/config"
	"finbot/internal/ledger"
	"finbot/internal/log"
	"finbot/internal/metrics"
	"finbot/internal/worker"
)

var errNoSink = errors.New("remote backend has no sink: set REMOTE_BACKEND to webapp or sheets")

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting finbot-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("finbot-worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	m := metrics.New()
	factory := backend.NewFactory(logger, m)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("backend config: %w", err)
	}

	// The settings are only read to resolve the web app endpoint when
	// REMOTE_URL is not set.
	kv, kvCleanup, err := factory.CreateKV(backendCfg)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer kvCleanup()
	store := ledger.New(kv, logger)
	store.Load(ctx)

	rem, err := factory.CreateRemote(ctx, backendCfg, store.Settings)
	if err != nil {
		return fmt.Errorf("create remote: %w", err)
	}
	if rem.Sink == nil {
		return errNoSink
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("connect AMQP: %w", err)
	}
	defer amqpClient.Close()

	w := worker.NewPushWorker(rem.Sink, cfg.RemoteTimeout, logger, m)
	return w.Run(ctx, amqpClient)
}
