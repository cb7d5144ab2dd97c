package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduardolzevallos/backup-websites/internal/config"
	"github.com/eduardolzevallos/backup-websites/internal/history"
	"github.com/eduardolzevallos/backup-websites/internal/notify"
	"github.com/eduardolzevallos/backup-websites/internal/storage"
	"github.com/eduardolzevallos/backup-websites/internal/storage/local"
)

func baseConfig() config.Config {
	cfg := config.Config{}
	cfg.Storage.Provider = "noop"
	cfg.History.Provider = "noop"
	cfg.Notify.Provider = "noop"
	cfg.Logging.Development = true
	return cfg
}

func TestNewWithNoOpProviders(t *testing.T) {
	app, err := New(context.Background(), baseConfig())
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Logger())
	assert.IsType(t, storage.NoOpStore{}, app.Store())
	assert.IsType(t, history.NoOpProvider{}, app.History())
	assert.IsType(t, notify.NoOpNotifier{}, app.Notifier())
}

func TestNewWithLocalStorage(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage.Provider = "local"
	cfg.Storage.Local.BaseDir = t.TempDir()

	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.IsType(t, &local.BlobStore{}, app.Store())
}

func TestNewWithMailNotifier(t *testing.T) {
	cfg := baseConfig()
	cfg.Notify.Provider = "mail"
	cfg.Notify.Mail.To = "ops@example.org"

	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.IsType(t, &notify.MailNotifier{}, app.Notifier())
}

func TestNewRejectsUnknownProviders(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"storage", func(c *config.Config) { c.Storage.Provider = "s3" }},
		{"history", func(c *config.Config) { c.History.Provider = "mysql" }},
		{"notify", func(c *config.Config) { c.Notify.Provider = "sms" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			_, err := New(context.Background(), cfg)
			assert.Error(t, err)
		})
	}
}
