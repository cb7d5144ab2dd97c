package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
	assert.NotNil(t, backupPipelinesTotal)
}

func TestCollectorsRecord(t *testing.T) {
	Init()

	PipelineFinished("example", "succeeded", 90*time.Second)
	PipelineFinished("example", "succeeded", 30*time.Second)
	StageFailed("example", "upload")
	UploadFinished("example", 3, 1024)
	WaitObserved("example", 5*time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(backupPipelinesTotal.WithLabelValues("example", "succeeded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(backupStageFailures.WithLabelValues("example", "upload")))
	assert.Equal(t, float64(3), testutil.ToFloat64(backupUploadFiles.WithLabelValues("example")))
	assert.Equal(t, float64(1024), testutil.ToFloat64(backupUploadBytes.WithLabelValues("example")))
}
