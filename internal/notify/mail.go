package notify

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// mailExecutor runs the mail command with the message body on stdin.
// The seam lets tests run without a configured MTA.
type mailExecutor interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader) error
}

type execMailer struct{}

func (execMailer) Run(ctx context.Context, name string, args []string, stdin io.Reader) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("run %s: %w (%s)", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// MailNotifier sends the report through the system mail command, the
// same channel the cron-driven setup reads its success/failure mail
// from.
type MailNotifier struct {
	command  string
	to       string
	executor mailExecutor
	logger   *zap.Logger
}

// NewMail constructs a MailNotifier.
func NewMail(command, to string, logger *zap.Logger) (*MailNotifier, error) {
	if to == "" {
		return nil, fmt.Errorf("recipient address is required")
	}
	if command == "" {
		command = "mail"
	}
	return &MailNotifier{
		command:  command,
		to:       to,
		executor: execMailer{},
		logger:   logger,
	}, nil
}

// Notify pipes the report body to `mail -s SUBJECT TO`.
func (m *MailNotifier) Notify(ctx context.Context, report Report) error {
	args := []string{"-s", report.Subject(), m.to}
	if err := m.executor.Run(ctx, m.command, args, strings.NewReader(report.Body())); err != nil {
		return fmt.Errorf("send notification mail: %w", err)
	}
	m.logger.Info("notification mail sent",
		zap.String("to", m.to),
		zap.String("subject", report.Subject()))
	return nil
}
