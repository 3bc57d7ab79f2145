package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finbot/internal/amqp"
	"finbot/internal/core"
	"finbot/internal/ledger"
	"finbot/internal/log"
	"finbot/internal/metrics"
	"finbot/internal/remote"
	"finbot/internal/services"
	gsheet "finbot/internal/sheets/google"
	"finbot/internal/storage"
	"finbot/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger, m *metrics.Metrics) *DefaultFactory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{
		logger:  logger.WithComponent(log.ComponentBackend),
		metrics: m,
	}
}

var _ Factory = (*DefaultFactory)(nil)

// CreateBackend implements Factory.CreateBackend. The returned store has
// already been loaded from the local backend.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var cleanups []CleanupFunc
	cleanup := func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i]())
		}
		return errors.Join(errs...)
	}

	kv, kvCleanup, err := f.CreateKV(config)
	if err != nil {
		return nil, err
	}
	cleanups = append(cleanups, kvCleanup)

	store := ledger.New(kv, f.logger)
	store.Load(ctx)

	rem, err := f.CreateRemote(ctx, config, store.Settings)
	if err != nil {
		_ = cleanup()
		return nil, err
	}

	pusher, pushCleanup, err := f.CreatePusher(config, rem)
	if err != nil {
		_ = cleanup()
		return nil, err
	}
	cleanups = append(cleanups, pushCleanup)

	f.logger.InfoContext(ctx, "Backend ready",
		"data_backend", config.KV.String(),
		"remote_backend", config.Remote.String(),
		"push_mode", config.Push.String())

	return &Result{
		Store:   store,
		Remote:  rem,
		Pusher:  pusher,
		Cleanup: cleanup,
	}, nil
}

// CreateKV opens the local key-value backend.
func (f *DefaultFactory) CreateKV(config Config) (ledger.KV, CleanupFunc, error) {
	switch config.KV {
	case SQLiteKV:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, repo.Close, nil
	case MemoryKV:
		f.logger.Info("Initialized memory backend")
		return memory.New(), noCleanup, nil
	default:
		return nil, nil, fmt.Errorf("unsupported data backend: %s", config.KV)
	}
}

// CreateRemote builds the remote adapter. settings supplies the current
// ledger settings so the web app endpoint can follow appScriptUrl changes.
func (f *DefaultFactory) CreateRemote(ctx context.Context, config Config, settings SettingsFunc) (Remote, error) {
	switch config.Remote {
	case NoRemote:
		f.logger.Info("No remote backend configured")
		return Remote{}, nil
	case WebAppRemote:
		client := remote.NewClient(nil, endpointURL(config.RemoteURL, settings), config.RemoteTimeout, f.logger)
		f.logger.Info("Initialized web app remote", "url_override", config.RemoteURL != "")
		return Remote{Source: client, Sink: client, Notifier: client}, nil
	case SheetsRemote:
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			SheetName:       config.GoogleSheetName,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
		}, f.logger)
		if err != nil {
			return Remote{}, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets remote", "spreadsheet_id", config.GoogleSpreadsheetID)
		return Remote{Source: client, Sink: client}, nil
	default:
		return Remote{}, fmt.Errorf("unsupported remote backend: %s", config.Remote)
	}
}

// CreatePusher picks how mutations reach the remote.
func (f *DefaultFactory) CreatePusher(config Config, rem Remote) (services.Pusher, CleanupFunc, error) {
	if rem.Sink == nil {
		return services.NopPusher{}, noCleanup, nil
	}
	switch config.Push {
	case DirectPush:
		p := services.NewDirectPusher(rem.Sink, config.RemoteTimeout, f.logger, f.metrics)
		return p, func() error { p.Wait(); return nil }, nil
	case AMQPPush:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		f.logger.Info("Initialized AMQP push queue",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		return services.NewQueuePusher(client, f.logger, f.metrics), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported push mode: %s", config.Push)
	}
}

// SettingsFunc returns the current ledger settings.
type SettingsFunc func() core.Settings

// endpointURL resolves the web app endpoint on every call: the configured
// override when set, otherwise the appScriptUrl setting.
func endpointURL(override string, settings SettingsFunc) remote.URLFunc {
	if u := strings.TrimSpace(override); u != "" {
		return remote.StaticURL(u)
	}
	return func() string {
		if settings == nil {
			return ""
		}
		return settings().AppScriptURL
	}
}

func noCleanup() error { return nil }
