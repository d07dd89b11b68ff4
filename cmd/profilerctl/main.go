// Command profilerctl drives and maintains a profiler deployment: it
// simulates players against a running service, trains predictor artifacts
// offline and prints the hall of fame from the feedback sink.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/profiler/pkg/logger"
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
