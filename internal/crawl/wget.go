// Package crawl invokes the external mirroring process for one site.
// The actual page fetching is wget's job; this package only builds the
// invocation, owns the download directory, and maps exit codes onto
// pipeline semantics.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"go.uber.org/zap"
)

// wget exit code 8 means "server issued an error response" for at
// least one URL. Deep mirrors always trip a few 404s, so a code-8 run
// still counts as a successful crawl.
const exitServerError = 8

// CommandRunner executes an external command and returns its exit
// code. The seam exists so tests can run without wget installed.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string) (exitCode int, err error)
}

// ExecRunner runs commands with os/exec, inheriting stdout/stderr so
// wget progress ends up in the run log stream.
type ExecRunner struct{}

// Run executes the command and returns its exit code.
func (ExecRunner) Run(ctx context.Context, name string, args []string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("run %s: %w", name, err)
}

// Config mirrors the wget flag set the backup depends on.
type Config struct {
	Binary          string
	TimeoutSeconds  int
	WaitRetrySec    int
	Tries           int
	RateLimit       string
	RecursionLevel  int
	ForceRedownload bool
}

// Crawler shells out to wget to mirror one site into its download
// directory.
type Crawler struct {
	cfg    Config
	runner CommandRunner
	logger *zap.Logger
}

// New constructs a Crawler.
func New(cfg Config, runner CommandRunner, logger *zap.Logger) *Crawler {
	if cfg.Binary == "" {
		cfg.Binary = "wget"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Crawler{
		cfg:    cfg,
		runner: runner,
		logger: logger,
	}
}

// Crawl mirrors url into downloadDir. The directory is created if
// absent (idempotent). A non-zero wget exit other than the tolerated
// server-error code fails the crawl.
func (c *Crawler) Crawl(ctx context.Context, url, downloadDir string) error {
	if err := os.MkdirAll(downloadDir, 0o750); err != nil {
		return fmt.Errorf("create download dir %s: %w", downloadDir, err)
	}

	args := c.Args(url, downloadDir)
	c.logger.Info("starting wget mirror",
		zap.String("url", url),
		zap.String("download_dir", downloadDir))

	code, err := c.runner.Run(ctx, c.cfg.Binary, args)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", c.cfg.Binary, err)
	}
	switch code {
	case 0:
		c.logger.Info("wget completed", zap.String("url", url))
		return nil
	case exitServerError:
		c.logger.Warn("wget reported server-side errors; continuing",
			zap.String("url", url), zap.Int("exit_code", code))
		return nil
	default:
		return fmt.Errorf("%s exited with code %d for %s", c.cfg.Binary, code, url)
	}
}

// Args builds the wget argument list for one mirror pass.
func (c *Crawler) Args(url, downloadDir string) []string {
	args := []string{
		"-e", "robots=off",
		"--timeout=" + strconv.Itoa(c.cfg.TimeoutSeconds),
		"--waitretry=" + strconv.Itoa(c.cfg.WaitRetrySec),
		"--tries=" + strconv.Itoa(c.cfg.Tries),
		"--limit-rate=" + c.cfg.RateLimit,
		"--recursive",
		"--level=" + strconv.Itoa(c.cfg.RecursionLevel),
		"--no-parent",
		"--span-hosts",
		"--page-requisites",
		"--adjust-extension",
		"--convert-links",
		"--directory-prefix=" + downloadDir,
		"--cut-dirs=0",
	}
	if c.cfg.ForceRedownload {
		args = append(args, "--no-timestamping", "--force-directories")
	} else {
		args = append(args, "--continue", "--timestamping")
	}
	args = append(args, "--show-progress", url)
	return args
}
