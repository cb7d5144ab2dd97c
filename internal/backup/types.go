// Package backup implements the per-site mirror-and-archive pipeline
// and the orchestrator that runs every configured site concurrently.
package backup

import (
	"time"
)

// SiteSpec identifies one site to back up. Name is unique and doubles
// as the remote namespace and log tag; DownloadDir is exclusively
// owned by the site's pipeline for the duration of a run.
type SiteSpec struct {
	Name        string
	URL         string
	DownloadDir string
}

// Stage names the pipeline stage a failure occurred in.
type Stage string

// Pipeline stages, in execution order.
const (
	StageCrawl  Stage = "crawl"
	StageWait   Stage = "wait"
	StageUpload Stage = "upload"
)

// Status is a pipeline's lifecycle state.
type Status string

// Pipeline states. Pending through Uploading are transient; Succeeded
// and Failed are terminal.
const (
	StatusPending            Status = "pending"
	StatusCrawling           Status = "crawling"
	StatusAwaitingCompletion Status = "awaiting_completion"
	StatusUploading          Status = "uploading"
	StatusSucceeded          Status = "succeeded"
	StatusFailed             Status = "failed"
)

// Result is the terminal record of one site's pipeline. It is owned
// by the runner that produced it and aggregated, never shared, by the
// orchestrator.
type Result struct {
	RunID       string
	Site        SiteSpec
	Status      Status
	FailedStage Stage
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
	// UploadedFiles and UploadedBytes are populated when the upload
	// stage ran, even if it partially failed.
	UploadedFiles int
	UploadedBytes int64
}

// Succeeded reports whether the pipeline reached its terminal success
// state.
func (r Result) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Duration is the pipeline's wall-clock time.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
