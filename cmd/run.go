package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eduardolzevallos/backup-websites/internal/api"
	"github.com/eduardolzevallos/backup-websites/internal/backup"
	"github.com/eduardolzevallos/backup-websites/internal/clock/system"
	"github.com/eduardolzevallos/backup-websites/internal/config"
	"github.com/eduardolzevallos/backup-websites/internal/crawl"
	"github.com/eduardolzevallos/backup-websites/internal/history"
	"github.com/eduardolzevallos/backup-websites/internal/id/uuid"
	"github.com/eduardolzevallos/backup-websites/internal/metrics"
	"github.com/eduardolzevallos/backup-websites/internal/notify"
	"github.com/eduardolzevallos/backup-websites/internal/upload"
	"github.com/eduardolzevallos/backup-websites/internal/watch"
)

// newRunCmd creates the 'run' subcommand, which executes the full
// backup: every configured site is mirrored, watched for completion,
// and archived, all concurrently.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Backs up every configured site",
		Long: `Runs the crawl, wait, and upload pipeline for every site in the
configuration, with one concurrent pipeline per site. Exits non-zero if
any site's pipeline failed.`,

		RunE: runRunCommand,
	}
}

func runRunCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	metrics.Init()
	if cfg.Server.Enabled {
		server := api.NewServer(cfg.Server.Port, logger)
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("server shutdown error", zap.Error(err))
			}
		}()
	}

	runID, err := uuid.New().NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}

	orchestrator, err := buildOrchestrator(appInstance)
	if err != nil {
		return err
	}

	sites := make([]backup.SiteSpec, len(cfg.Sites))
	for i, s := range cfg.Sites {
		sites[i] = backup.SiteSpec{Name: s.Name, URL: s.URL, DownloadDir: s.DownloadDir}
	}

	clk := system.New()
	started := clk.Now()
	logger.Info("backup run starting",
		zap.String("run_id", runID),
		zap.Int("sites", len(sites)))

	results := orchestrator.RunAll(cmd.Context(), runID, sites)

	saveHistory(cmd.Context(), appInstance.History(), runID, results, logger)

	report := notify.BuildReport(runID, started, results)
	if err := appInstance.Notifier().Notify(cmd.Context(), report); err != nil {
		logger.Error("notification failed", zap.Error(err))
	}

	printSummary(cmd, report)

	if !report.AllSucceeded() {
		return fmt.Errorf("backup run %s: %d of %d sites failed",
			runID, failedCount(results), len(results))
	}
	return nil
}

// buildOrchestrator wires the pipeline stages from configuration.
func buildOrchestrator(appInstance App) (*backup.Orchestrator, error) {
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	crawler := crawl.New(crawl.Config{
		Binary:          cfg.Crawl.Binary,
		TimeoutSeconds:  cfg.Crawl.TimeoutSeconds,
		WaitRetrySec:    cfg.Crawl.WaitRetrySec,
		Tries:           cfg.Crawl.Tries,
		RateLimit:       cfg.Crawl.RateLimit,
		RecursionLevel:  cfg.Crawl.RecursionLevel,
		ForceRedownload: cfg.Crawl.ForceRedownload,
	}, nil, logger)

	var pipelineCrawler backup.Crawler = crawler
	if len(cfg.Crawl.NodeRecovery.Sections) > 0 {
		recovery, err := buildNodeRecovery(cfg.Crawl.NodeRecovery, crawler, logger)
		if err != nil {
			return nil, err
		}
		pipelineCrawler = &recoveringCrawler{crawler: crawler, recovery: recovery, logger: logger}
	}

	watcher, err := watch.New(watch.Config{
		Marker:       cfg.Watch.Marker,
		Timeout:      cfg.Watch.Timeout,
		PollInterval: cfg.Watch.PollInterval,
		GraceWindow:  cfg.Watch.GraceWindow,
	}, system.New(), logger)
	if err != nil {
		return nil, fmt.Errorf("init watcher: %w", err)
	}

	uploader := upload.New(appInstance.Store(), upload.Config{
		Prefix:    cfg.Storage.Prefix,
		SkipNames: []string{cfg.Watch.Marker},
	}, logger)

	runner := backup.NewRunner(pipelineCrawler, watcher, uploader, system.New(), logger)
	return backup.NewOrchestrator(runner, logger), nil
}

func buildNodeRecovery(cfg config.NodeRecoveryConfig, fetcher crawl.NodeFetcher, logger *zap.Logger) (*crawl.NodeRecovery, error) {
	probeTimeout, err := time.ParseDuration(cfg.ProbeTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse crawl.node_recovery.probe_timeout: %w", err)
	}
	return crawl.NewNodeRecovery(crawl.NodeRecoveryConfig{
		Sections:       cfg.Sections,
		ProbeTimeout:   probeTimeout,
		MaxForwardScan: cfg.MaxForwardScan,
	}, fetcher, nil, logger), nil
}

// recoveringCrawler runs the Drupal node-gap repair pass after the
// mirror. Recovery problems are logged, never fatal to the crawl stage.
type recoveringCrawler struct {
	crawler  *crawl.Crawler
	recovery *crawl.NodeRecovery
	logger   *zap.Logger
}

func (c *recoveringCrawler) Crawl(ctx context.Context, url, downloadDir string) error {
	if err := c.crawler.Crawl(ctx, url, downloadDir); err != nil {
		return err
	}
	if err := c.recovery.Run(ctx, url, downloadDir); err != nil {
		c.logger.Warn("node recovery failed",
			zap.String("url", url), zap.Error(err))
	}
	return nil
}

func saveHistory(ctx context.Context, provider history.Provider, runID string, results map[string]backup.Result, logger *zap.Logger) {
	for name, result := range results {
		rec := history.Record{
			RunID:         runID,
			Site:          name,
			URL:           result.Site.URL,
			Status:        string(result.Status),
			FailedStage:   string(result.FailedStage),
			StartedAt:     result.StartedAt,
			FinishedAt:    result.FinishedAt,
			UploadedFiles: result.UploadedFiles,
			UploadedBytes: result.UploadedBytes,
		}
		if result.Err != nil {
			rec.Error = result.Err.Error()
		}
		if err := provider.SaveResult(ctx, rec); err != nil {
			logger.Error("failed to save run history",
				zap.String("site", name), zap.Error(err))
		}
	}
}

func printSummary(cmd *cobra.Command, report notify.Report) {
	cmd.Println(report.Subject())
	cmd.Println(report.Body())
}

func failedCount(results map[string]backup.Result) int {
	failed := 0
	for _, r := range results {
		if !r.Succeeded() {
			failed++
		}
	}
	return failed
}
