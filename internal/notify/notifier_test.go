package notify

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduardolzevallos/backup-websites/internal/backup"
)

func sampleResults() map[string]backup.Result {
	started := time.Date(2026, 8, 30, 3, 0, 0, 0, time.UTC)
	return map[string]backup.Result{
		"beta": {
			Site:        backup.SiteSpec{Name: "beta"},
			Status:      backup.StatusFailed,
			FailedStage: backup.StageWait,
			Err:         errors.New("marker not found"),
			StartedAt:   started,
			FinishedAt:  started.Add(10 * time.Minute),
		},
		"alpha": {
			Site:       backup.SiteSpec{Name: "alpha"},
			Status:     backup.StatusSucceeded,
			StartedAt:  started,
			FinishedAt: started.Add(25 * time.Minute),
		},
	}
}

func TestBuildReport(t *testing.T) {
	t.Parallel()

	report := BuildReport("run-1", time.Date(2026, 8, 30, 4, 0, 0, 0, time.UTC), sampleResults())

	require.Len(t, report.Sites, 2)
	assert.Equal(t, "alpha", report.Sites[0].Name, "sites sorted by name")
	assert.Equal(t, "beta", report.Sites[1].Name)
	assert.Equal(t, "wait", report.Sites[1].FailedStage)
	assert.Equal(t, "marker not found", report.Sites[1].Error)
	assert.False(t, report.AllSucceeded())
	assert.Equal(t, "Website Backup Failed - 2026-08-30", report.Subject())

	body := report.Body()
	assert.Contains(t, body, "alpha: succeeded")
	assert.Contains(t, body, "beta: failed (stage: wait)")
}

func TestReportAllSucceeded(t *testing.T) {
	t.Parallel()

	results := map[string]backup.Result{
		"alpha": {Site: backup.SiteSpec{Name: "alpha"}, Status: backup.StatusSucceeded},
	}
	report := BuildReport("run-1", time.Date(2026, 8, 30, 4, 0, 0, 0, time.UTC), results)
	assert.True(t, report.AllSucceeded())
	assert.Equal(t, "Website Backup Successful - 2026-08-30", report.Subject())
}

type fakeMailExec struct {
	name  string
	args  []string
	stdin string
	err   error
}

func (f *fakeMailExec) Run(_ context.Context, name string, args []string, stdin io.Reader) error {
	f.name = name
	f.args = args
	body, _ := io.ReadAll(stdin)
	f.stdin = string(body)
	return f.err
}

func TestMailNotifier(t *testing.T) {
	t.Parallel()

	m, err := NewMail("mail", "ops@example.org", zap.NewNop())
	require.NoError(t, err)
	exec := &fakeMailExec{}
	m.executor = exec

	report := BuildReport("run-1", time.Date(2026, 8, 30, 4, 0, 0, 0, time.UTC), sampleResults())
	require.NoError(t, m.Notify(context.Background(), report))

	assert.Equal(t, "mail", exec.name)
	assert.Equal(t, []string{"-s", "Website Backup Failed - 2026-08-30", "ops@example.org"}, exec.args)
	assert.True(t, strings.Contains(exec.stdin, "beta: failed"))
}

func TestMailNotifierExecFailure(t *testing.T) {
	t.Parallel()

	m, err := NewMail("", "ops@example.org", zap.NewNop())
	require.NoError(t, err)
	m.executor = &fakeMailExec{err: errors.New("no MTA")}

	err = m.Notify(context.Background(), Report{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no MTA")
}

func TestNewMailRequiresRecipient(t *testing.T) {
	t.Parallel()

	_, err := NewMail("mail", "", zap.NewNop())
	assert.Error(t, err)
}

func TestTopicName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "projects/p/topics/t", TopicName("p", "t"))
}

func TestNewPubSubRequiresPublisher(t *testing.T) {
	t.Parallel()

	_, err := NewPubSub(nil)
	assert.Error(t, err)
}
