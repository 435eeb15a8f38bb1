// Package shutdown centralizes signal handling for process lifecycle.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"chatsync/pkg/logger"
)

// SetupSignalHandler returns a context canceled on SIGINT or SIGTERM.
// A second signal exits immediately.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigc := make(chan os.Signal, 2)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal_received", "signal", s.String())
		cancel()
		s = <-sigc
		logger.Warn("second_signal_forcing_exit", "signal", s.String())
		os.Exit(1)
	}()
	return ctx, cancel
}
