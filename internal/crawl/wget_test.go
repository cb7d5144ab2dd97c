package crawl

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	name string
	args []string
	code int
	err  error
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string) (int, error) {
	f.name = name
	f.args = args
	return f.code, f.err
}

func testConfig() Config {
	return Config{
		Binary:         "wget",
		TimeoutSeconds: 60,
		WaitRetrySec:   30,
		Tries:          5,
		RateLimit:      "100k",
		RecursionLevel: 15,
	}
}

func TestArgs(t *testing.T) {
	t.Parallel()

	c := New(testConfig(), &fakeRunner{}, zap.NewNop())
	args := c.Args("https://example.org", "/srv/mirror")

	assert.Contains(t, args, "--recursive")
	assert.Contains(t, args, "--level=15")
	assert.Contains(t, args, "--limit-rate=100k")
	assert.Contains(t, args, "--directory-prefix=/srv/mirror")
	assert.Contains(t, args, "--timestamping")
	assert.Contains(t, args, "--continue")
	assert.NotContains(t, args, "--force-directories")
	assert.Equal(t, "https://example.org", args[len(args)-1])
}

func TestArgsForceRedownload(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.ForceRedownload = true
	c := New(cfg, &fakeRunner{}, zap.NewNop())
	args := c.Args("https://example.org", "/srv/mirror")

	assert.Contains(t, args, "--no-timestamping")
	assert.Contains(t, args, "--force-directories")
	assert.NotContains(t, args, "--timestamping")
	assert.NotContains(t, args, "--continue")
}

func TestCrawlCreatesDownloadDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "mirror")
	runner := &fakeRunner{}
	c := New(testConfig(), runner, zap.NewNop())

	require.NoError(t, c.Crawl(context.Background(), "https://example.org", dir))
	assert.DirExists(t, dir)
	assert.Equal(t, "wget", runner.name)
}

func TestCrawlExitCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    int
		wantErr bool
	}{
		{name: "Success", code: 0, wantErr: false},
		{name: "ServerErrorTolerated", code: 8, wantErr: false},
		{name: "NetworkFailure", code: 4, wantErr: true},
		{name: "GenericFailure", code: 1, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := New(testConfig(), &fakeRunner{code: tc.code}, zap.NewNop())
			err := c.Crawl(context.Background(), "https://example.org", t.TempDir())
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCrawlRunnerError(t *testing.T) {
	t.Parallel()

	c := New(testConfig(), &fakeRunner{code: -1, err: errors.New("binary not found")}, zap.NewNop())
	err := c.Crawl(context.Background(), "https://example.org", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binary not found")
}
