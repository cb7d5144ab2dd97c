// Package notify delivers the end-of-run summary. Delivery failures
// are the caller's to log; they never fail the run itself.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eduardolzevallos/backup-websites/internal/backup"
)

// Report summarizes one orchestrator run for delivery.
type Report struct {
	RunID    string            `json:"run_id"`
	Date     time.Time         `json:"date"`
	Sites    []SiteOutcome     `json:"sites"`
	Statuses map[string]string `json:"statuses"`
}

// SiteOutcome is one site's terminal state in human-readable form.
type SiteOutcome struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	FailedStage string `json:"failed_stage,omitempty"`
	Error       string `json:"error,omitempty"`
	Duration    string `json:"duration"`
}

// Notifier delivers a run report.
type Notifier interface {
	Notify(ctx context.Context, report Report) error
}

// NoOpNotifier discards reports.
type NoOpNotifier struct{}

// Notify does nothing.
func (NoOpNotifier) Notify(_ context.Context, _ Report) error { return nil }

// BuildReport flattens orchestrator results into a Report with sites
// in stable name order.
func BuildReport(runID string, date time.Time, results map[string]backup.Result) Report {
	report := Report{
		RunID:    runID,
		Date:     date,
		Statuses: make(map[string]string, len(results)),
	}
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		res := results[name]
		outcome := SiteOutcome{
			Name:     name,
			Status:   string(res.Status),
			Duration: res.Duration().Round(time.Second).String(),
		}
		if !res.Succeeded() {
			outcome.FailedStage = string(res.FailedStage)
			if res.Err != nil {
				outcome.Error = res.Err.Error()
			}
		}
		report.Sites = append(report.Sites, outcome)
		report.Statuses[name] = string(res.Status)
	}
	return report
}

// AllSucceeded reports whether every site reached success.
func (r Report) AllSucceeded() bool {
	for _, site := range r.Sites {
		if site.Status != string(backup.StatusSucceeded) {
			return false
		}
	}
	return true
}

// Subject renders the notification subject line.
func (r Report) Subject() string {
	day := r.Date.Format("2006-01-02")
	if r.AllSucceeded() {
		return fmt.Sprintf("Website Backup Successful - %s", day)
	}
	return fmt.Sprintf("Website Backup Failed - %s", day)
}

// Body renders the plain-text per-site summary.
func (r Report) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backup run %s\n\n", r.RunID)
	for _, site := range r.Sites {
		if site.FailedStage != "" {
			fmt.Fprintf(&b, "- %s: %s (stage: %s) %s [%s]\n",
				site.Name, site.Status, site.FailedStage, site.Error, site.Duration)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s [%s]\n", site.Name, site.Status, site.Duration)
	}
	return b.String()
}
