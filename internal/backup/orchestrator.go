package backup

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Orchestrator fans one pipeline out per site and joins on all of
// them. Sites run fully independently: no ordering between them, and
// one site's failure never aborts another's in-flight run.
type Orchestrator struct {
	runner *Runner
	logger *zap.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(runner *Runner, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		runner: runner,
		logger: logger,
	}
}

// RunAll launches one pipeline per site concurrently and blocks until
// every one has reached a terminal state. The returned map has
// exactly one Result per site, keyed by site name. A panicking
// pipeline is converted into a failed Result for that site only.
func (o *Orchestrator) RunAll(ctx context.Context, runID string, sites []SiteSpec) map[string]Result {
	results := make([]Result, len(sites))

	var wg sync.WaitGroup
	for i, site := range sites {
		wg.Add(1)
		go func(slot int, site SiteSpec) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					o.logger.Error("pipeline panicked",
						zap.String("site", site.Name),
						zap.Any("panic", rec))
					results[slot] = Result{
						RunID:  runID,
						Site:   site,
						Status: StatusFailed,
						Err:    fmt.Errorf("pipeline panic: %v", rec),
					}
				}
			}()
			results[slot] = o.runner.Run(ctx, runID, site)
		}(i, site)
	}
	wg.Wait()

	report := make(map[string]Result, len(sites))
	failed := 0
	for _, res := range results {
		report[res.Site.Name] = res
		if !res.Succeeded() {
			failed++
		}
	}
	o.logger.Info("run finished",
		zap.String("run_id", runID),
		zap.Int("sites", len(sites)),
		zap.Int("failed", failed))
	return report
}
