// Package watch polls a download directory for the completion marker
// the external crawl process writes when it has fully finished,
// including any follow-up fetch passes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// ErrTimeout reports that the marker never appeared within the
// configured timeout.
var ErrTimeout = errors.New("completion marker not found before timeout")

// How often the watcher logs that it is still waiting.
const statusInterval = 30 * time.Second

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}

// Config controls marker polling.
type Config struct {
	// Marker is the file name the crawl writes into the download
	// directory when it is done.
	Marker string
	// Timeout bounds the total wait. Mandatory.
	Timeout time.Duration
	// PollInterval is the sleep between marker checks.
	PollInterval time.Duration
	// GraceWindow, when > 0, lets a timed-out wait pass anyway if the
	// download directory was modified within the window. This covers
	// crawls that finished but failed to write the marker. Zero
	// disables the fallback.
	GraceWindow time.Duration
}

// Watcher waits for a site's completion marker.
type Watcher struct {
	cfg    Config
	clock  Clock
	logger *zap.Logger
}

// New constructs a Watcher.
func New(cfg Config, clock Clock, logger *zap.Logger) (*Watcher, error) {
	if cfg.Marker == "" {
		return nil, fmt.Errorf("marker name is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be > 0")
	}
	return &Watcher{
		cfg:    cfg,
		clock:  clock,
		logger: logger,
	}, nil
}

// Await blocks until the marker appears in dir, the timeout elapses,
// or ctx is canceled. The marker is only observed, never removed, so
// an external re-run can see it too. Returns nil on success and an
// error wrapping ErrTimeout when the wait expires without the grace
// fallback applying.
func (w *Watcher) Await(ctx context.Context, dir string) error {
	marker := filepath.Join(dir, w.cfg.Marker)
	started := w.clock.Now()

	// The crawl may have finished before we started watching.
	if w.markerPresent(marker) {
		w.logger.Info("completion marker found", zap.String("dir", dir))
		return nil
	}

	deadline := time.NewTimer(w.cfg.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	lastStatus := started
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for marker in %s: %w", dir, ctx.Err())
		case <-deadline.C:
			return w.onTimeout(dir)
		case <-ticker.C:
			if w.markerPresent(marker) {
				w.logger.Info("completion marker found",
					zap.String("dir", dir),
					zap.Duration("waited", w.clock.Now().Sub(started)))
				return nil
			}
			if now := w.clock.Now(); now.Sub(lastStatus) >= statusInterval {
				w.logger.Info("still waiting for completion marker",
					zap.String("dir", dir),
					zap.Duration("elapsed", now.Sub(started)))
				lastStatus = now
			}
		}
	}
}

func (w *Watcher) markerPresent(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (w *Watcher) onTimeout(dir string) error {
	if w.cfg.GraceWindow > 0 {
		if info, err := os.Stat(dir); err == nil {
			age := w.clock.Now().Sub(info.ModTime())
			if age >= 0 && age < w.cfg.GraceWindow {
				w.logger.Warn("no completion marker, but download directory was modified recently; treating crawl as complete",
					zap.String("dir", dir),
					zap.Duration("modified_ago", age))
				return nil
			}
		}
	}
	return fmt.Errorf("wait for marker in %s after %s: %w", dir, w.cfg.Timeout, ErrTimeout)
}
