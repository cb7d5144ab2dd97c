// Package cmd defines and implements the CLI commands for the
// backup-websites executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eduardolzevallos/backup-websites/internal/app"
	"github.com/eduardolzevallos/backup-websites/internal/config"
	"github.com/eduardolzevallos/backup-websites/internal/history"
	"github.com/eduardolzevallos/backup-websites/internal/notify"
	"github.com/eduardolzevallos/backup-websites/internal/storage"
)

var cfgFile string

const defaultConfigFile = "backup.yaml"

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the slice of the application container the commands use.
// An interface so tests can inject a mock app.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Store() storage.BlobStore
	History() history.Provider
	Notifier() notify.Notifier
}

// newApp is the application factory. A variable so tests can replace
// it with a mock factory.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command. Configuration is
// loaded and the service container built in PersistentPreRunE, so every
// subcommand finds a ready App in its context.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup-websites",
		Short: "Mirrors websites with wget and archives them to remote storage.",
		Long: `backup-websites runs one backup pipeline per configured site: mirror
the site with wget, wait for the mirror's completion marker, then upload
the mirrored tree to the archive store under the site's namespace. Sites
run concurrently and a failure in one never stops the others.`,

		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path := cfgFile
			if path == "" {
				if _, err := os.Stat(defaultConfigFile); err == nil {
					path = defaultConfigFile
				}
			}

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./backup.yaml)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newWaitCmd())

	return cmd
}

// Execute is the main entry point. It returns a non-nil error when any
// command fails, which main turns into a non-zero exit.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
