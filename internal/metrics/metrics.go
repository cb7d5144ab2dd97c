// Package metrics exposes Prometheus collectors for the backup service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backupPipelinesTotal  *prometheus.CounterVec
	backupStageFailures   *prometheus.CounterVec
	backupUploadFiles     *prometheus.CounterVec
	backupUploadBytes     *prometheus.CounterVec
	backupWaitSeconds     *prometheus.HistogramVec
	backupPipelineSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the Prometheus collectors. Safe to call more than
// once.
func Init() {
	once.Do(func() {
		backupPipelinesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backup_pipelines_total",
				Help: "Total site pipelines run, labeled by site and terminal status.",
			},
			[]string{"site", "status"},
		)

		backupStageFailures = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backup_stage_failures_total",
				Help: "Total stage failures, labeled by site and stage.",
			},
			[]string{"site", "stage"},
		)

		backupUploadFiles = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backup_upload_files_total",
				Help: "Files uploaded to the archive store, labeled by site.",
			},
			[]string{"site"},
		)

		backupUploadBytes = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backup_upload_bytes_total",
				Help: "Bytes uploaded to the archive store, labeled by site.",
			},
			[]string{"site"},
		)

		backupWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backup_wait_seconds",
				Help:    "Time spent waiting for crawl completion markers, labeled by site.",
				Buckets: []float64{1, 5, 15, 60, 300, 600, 1800},
			},
			[]string{"site"},
		)

		backupPipelineSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backup_pipeline_seconds",
				Help:    "End-to-end pipeline duration, labeled by site.",
				Buckets: []float64{60, 300, 900, 1800, 3600, 7200},
			},
			[]string{"site"},
		)
	})
}

// PipelineFinished records a pipeline's terminal status.
func PipelineFinished(site, status string, duration time.Duration) {
	if backupPipelinesTotal == nil {
		return
	}
	backupPipelinesTotal.WithLabelValues(site, status).Inc()
	backupPipelineSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// StageFailed records a stage failure.
func StageFailed(site, stage string) {
	if backupStageFailures == nil {
		return
	}
	backupStageFailures.WithLabelValues(site, stage).Inc()
}

// UploadFinished records upload volume for a site.
func UploadFinished(site string, files int, bytes int64) {
	if backupUploadFiles == nil {
		return
	}
	backupUploadFiles.WithLabelValues(site).Add(float64(files))
	backupUploadBytes.WithLabelValues(site).Add(float64(bytes))
}

// WaitObserved records how long a completion wait took.
func WaitObserved(site string, duration time.Duration) {
	if backupWaitSeconds == nil {
		return
	}
	backupWaitSeconds.WithLabelValues(site).Observe(duration.Seconds())
}
