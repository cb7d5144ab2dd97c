package backup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eduardolzevallos/backup-websites/internal/metrics"
	"github.com/eduardolzevallos/backup-websites/internal/upload"
)

// Crawler mirrors a site into its download directory. The production
// implementation shells out to wget.
type Crawler interface {
	Crawl(ctx context.Context, url, downloadDir string) error
}

// Watcher blocks until the crawl's completion marker appears or the
// wait times out.
type Watcher interface {
	Await(ctx context.Context, dir string) error
}

// Uploader archives a mirrored tree under a remote namespace.
type Uploader interface {
	UploadTree(ctx context.Context, localDir, namespace string) (upload.Summary, error)
}

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}

// Runner drives one site through crawl, wait, and upload. A stage
// failure is terminal for the site's run and short-circuits the
// stages after it; nothing escapes to sibling pipelines.
type Runner struct {
	crawler  Crawler
	watcher  Watcher
	uploader Uploader
	clock    Clock
	logger   *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(crawler Crawler, watcher Watcher, uploader Uploader, clock Clock, logger *zap.Logger) *Runner {
	return &Runner{
		crawler:  crawler,
		watcher:  watcher,
		uploader: uploader,
		clock:    clock,
		logger:   logger,
	}
}

// Run executes the pipeline for one site and returns its terminal
// Result. The returned Result always carries a terminal status; errors
// are recorded in it rather than returned.
func (r *Runner) Run(ctx context.Context, runID string, site SiteSpec) Result {
	logger := r.logger.With(
		zap.String("site", site.Name),
		zap.String("run_id", runID),
	)

	result := Result{
		RunID:     runID,
		Site:      site,
		Status:    StatusPending,
		StartedAt: r.clock.Now(),
	}
	logger.Info("pipeline started", zap.String("url", site.URL))

	result = r.crawlStage(ctx, logger, result)
	if result.Status == StatusCrawling {
		result = r.waitStage(ctx, logger, result)
	}
	if result.Status == StatusAwaitingCompletion {
		result = r.uploadStage(ctx, logger, result)
	}
	if result.Status == StatusUploading {
		result.Status = StatusSucceeded
	}

	result.FinishedAt = r.clock.Now()
	metrics.PipelineFinished(site.Name, string(result.Status), result.Duration())

	if result.Succeeded() {
		logger.Info("pipeline result",
			zap.String("status", string(result.Status)),
			zap.Duration("duration", result.Duration()))
	} else {
		logger.Error("pipeline result",
			zap.String("status", string(result.Status)),
			zap.String("failed_stage", string(result.FailedStage)),
			zap.Duration("duration", result.Duration()),
			zap.Error(result.Err))
	}
	return result
}

func (r *Runner) crawlStage(ctx context.Context, logger *zap.Logger, result Result) Result {
	result.Status = StatusCrawling
	logger.Info("stage transition", zap.String("stage", string(StageCrawl)))

	if err := r.crawler.Crawl(ctx, result.Site.URL, result.Site.DownloadDir); err != nil {
		return r.fail(result, StageCrawl, fmt.Errorf("crawl %s: %w", result.Site.URL, err))
	}
	return result
}

func (r *Runner) waitStage(ctx context.Context, logger *zap.Logger, result Result) Result {
	result.Status = StatusAwaitingCompletion
	logger.Info("stage transition", zap.String("stage", string(StageWait)))

	waitStart := r.clock.Now()
	if err := r.watcher.Await(ctx, result.Site.DownloadDir); err != nil {
		return r.fail(result, StageWait, err)
	}
	metrics.WaitObserved(result.Site.Name, r.clock.Now().Sub(waitStart))
	return result
}

func (r *Runner) uploadStage(ctx context.Context, logger *zap.Logger, result Result) Result {
	result.Status = StatusUploading
	logger.Info("stage transition", zap.String("stage", string(StageUpload)))

	summary, err := r.uploader.UploadTree(ctx, result.Site.DownloadDir, result.Site.Name)
	result.UploadedFiles = summary.Uploaded
	result.UploadedBytes = summary.Bytes
	metrics.UploadFinished(result.Site.Name, summary.Uploaded, summary.Bytes)
	if err != nil {
		return r.fail(result, StageUpload, err)
	}
	return result
}

func (r *Runner) fail(result Result, stage Stage, err error) Result {
	result.Status = StatusFailed
	result.FailedStage = stage
	result.Err = err
	metrics.StageFailed(result.Site.Name, string(stage))
	return result
}
