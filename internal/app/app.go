// Package app initializes and holds long-lived services, acting as the
// dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"go.uber.org/zap"

	"github.com/eduardolzevallos/backup-websites/internal/config"
	"github.com/eduardolzevallos/backup-websites/internal/history"
	"github.com/eduardolzevallos/backup-websites/internal/logging"
	"github.com/eduardolzevallos/backup-websites/internal/notify"
	"github.com/eduardolzevallos/backup-websites/internal/storage"
	"github.com/eduardolzevallos/backup-websites/internal/storage/gcs"
	"github.com/eduardolzevallos/backup-websites/internal/storage/local"
)

// App holds the shared services built from configuration: the logger,
// the archive blob store, the run-history provider, and the notifier.
// It is created once at startup and torn down by Close.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    storage.BlobStore
	history  history.Provider
	notifier notify.Notifier

	gcsStore     *gcs.BlobStore
	pubsubClient *pubsub.Client
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the archive blob store.
func (a *App) Store() storage.BlobStore { return a.store }

// History returns the run-history provider.
func (a *App) History() history.Provider { return a.history }

// Notifier returns the run notifier.
func (a *App) Notifier() notify.Notifier { return a.notifier }

// New builds all services from cfg, failing fast if any backend is
// misconfigured or unreachable.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.File)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{cfg: cfg, logger: logger}

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initHistory(ctx); err != nil {
		return nil, err
	}
	if err := a.initNotifier(ctx); err != nil {
		return nil, err
	}

	logger.Info("application services initialized",
		zap.String("storage", cfg.Storage.Provider),
		zap.String("history", cfg.History.Provider),
		zap.String("notify", cfg.Notify.Provider))
	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	switch a.cfg.Storage.Provider {
	case "gcs":
		store, err := gcs.New(ctx, gcs.Config{Bucket: a.cfg.Storage.GCS.Bucket})
		if err != nil {
			return fmt.Errorf("init gcs storage: %w", err)
		}
		a.gcsStore = store
		a.store = store
	case "local":
		store, err := local.New(local.Config{BaseDir: a.cfg.Storage.Local.BaseDir})
		if err != nil {
			return fmt.Errorf("init local storage: %w", err)
		}
		a.store = store
	case "noop":
		a.logger.Warn("using no-op storage provider; archives will be discarded")
		a.store = storage.NoOpStore{}
	default:
		return fmt.Errorf("unknown storage provider %q", a.cfg.Storage.Provider)
	}
	return nil
}

func (a *App) initHistory(ctx context.Context) error {
	switch a.cfg.History.Provider {
	case "postgres":
		provider, err := history.NewPostgresProvider(ctx, history.PostgresConfig{
			DSN:   a.cfg.History.DSN,
			Table: a.cfg.History.Table,
		})
		if err != nil {
			return fmt.Errorf("init history store: %w", err)
		}
		a.history = provider
	case "noop":
		a.history = history.NoOpProvider{}
	default:
		return fmt.Errorf("unknown history provider %q", a.cfg.History.Provider)
	}
	return nil
}

func (a *App) initNotifier(ctx context.Context) error {
	switch a.cfg.Notify.Provider {
	case "mail":
		notifier, err := notify.NewMail(a.cfg.Notify.Mail.Command, a.cfg.Notify.Mail.To, a.logger)
		if err != nil {
			return fmt.Errorf("init mail notifier: %w", err)
		}
		a.notifier = notifier
	case "pubsub":
		client, err := pubsub.NewClient(ctx, a.cfg.Notify.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		publisher := client.Publisher(notify.TopicName(a.cfg.Notify.PubSub.ProjectID, a.cfg.Notify.PubSub.Topic))
		notifier, err := notify.NewPubSub(publisher)
		if err != nil {
			closeErr := client.Close()
			if closeErr != nil {
				a.logger.Warn("failed to close pubsub client", zap.Error(closeErr))
			}
			return fmt.Errorf("init pubsub notifier: %w", err)
		}
		a.pubsubClient = client
		a.notifier = notifier
	case "noop":
		a.notifier = notify.NoOpNotifier{}
	default:
		return fmt.Errorf("unknown notify provider %q", a.cfg.Notify.Provider)
	}
	return nil
}

// Close shuts down every service the App owns.
func (a *App) Close() {
	if a.history != nil {
		a.history.Close()
	}
	if a.gcsStore != nil {
		if err := a.gcsStore.Close(); err != nil {
			a.logger.Warn("error closing gcs client", zap.Error(err))
		}
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("error closing pubsub client", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
