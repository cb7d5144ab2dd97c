// Package history persists one row per site pipeline so operators can
// audit past backup runs. The interface keeps the orchestrator
// independent of the backend; runs work fine with history disabled.
package history

import (
	"context"
	"time"
)

// Record is one site's terminal pipeline outcome.
type Record struct {
	RunID         string
	Site          string
	URL           string
	Status        string
	FailedStage   string
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
	UploadedFiles int
	UploadedBytes int64
}

// Provider stores pipeline records.
type Provider interface {
	// SaveResult persists one record.
	SaveResult(ctx context.Context, rec Record) error
	// Close releases backend resources.
	Close()
}

// NoOpProvider discards records. Used when no history backend is
// configured.
type NoOpProvider struct{}

// SaveResult does nothing.
func (NoOpProvider) SaveResult(_ context.Context, _ Record) error { return nil }

// Close does nothing.
func (NoOpProvider) Close() {}
