// The main package for the backup-websites executable.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eduardolzevallos/backup-websites/cmd"
)

// main is the entry point of the application. It defers all execution
// to the Cobra CLI library and maps a failed command onto a non-zero
// exit code.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
