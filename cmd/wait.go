package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eduardolzevallos/backup-websites/internal/clock/system"
	"github.com/eduardolzevallos/backup-websites/internal/config"
	"github.com/eduardolzevallos/backup-websites/internal/watch"
)

// newWaitCmd creates the 'wait' subcommand, which blocks until a
// mirror's completion marker appears. Lets external schedulers gate
// follow-up work on a crawl they did not start themselves.
func newWaitCmd() *cobra.Command {
	var (
		downloadDir  string
		siteName     string
		timeout      time.Duration
		pollInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Waits for a mirror's completion marker",
		Long: `Polls the given download directory until the completion marker file
appears, then exits 0. Exits non-zero if the marker does not appear
before the timeout.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()
			logger := appInstance.Logger()

			if downloadDir == "" {
				site, ok := findSite(appInstance, siteName)
				if !ok {
					return fmt.Errorf("no site named %q in configuration", siteName)
				}
				downloadDir = site.DownloadDir
			}
			if timeout <= 0 {
				timeout = cfg.Watch.Timeout
			}
			if pollInterval <= 0 {
				pollInterval = cfg.Watch.PollInterval
			}

			watcher, err := watch.New(watch.Config{
				Marker:       cfg.Watch.Marker,
				Timeout:      timeout,
				PollInterval: pollInterval,
				GraceWindow:  cfg.Watch.GraceWindow,
			}, system.New(), logger)
			if err != nil {
				return fmt.Errorf("init watcher: %w", err)
			}

			if err := watcher.Await(cmd.Context(), downloadDir); err != nil {
				if errors.Is(err, watch.ErrTimeout) {
					return fmt.Errorf("wait for %s: %w", downloadDir, err)
				}
				return err
			}
			cmd.Printf("completion marker found in %s\n", downloadDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&downloadDir, "download-dir", "", "directory to watch (overrides --name)")
	cmd.Flags().StringVar(&siteName, "name", "", "configured site whose download directory to watch")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "override the configured wait timeout")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "override the configured poll interval")

	return cmd
}

func findSite(appInstance App, name string) (config.SiteSpec, bool) {
	for _, site := range appInstance.Config().Sites {
		if site.Name == name {
			return site, true
		}
	}
	return config.SiteSpec{}, false
}
