// Package signals turns termination signals into context cancellation for
// the long-running commands.
package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/endorses/paycat/internal/pkg/constants"
	"github.com/endorses/paycat/internal/pkg/logger"
)

// Shutdown are the signals that start a graceful shutdown
var Shutdown = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}

// exit is replaced in tests
var exit = os.Exit

// SetupHandler cancels ctx via cancel on the first shutdown signal. A second
// signal while the shutdown is still draining exits the process immediately.
// The returned cleanup stops signal delivery.
func SetupHandler(ctx context.Context, cancel context.CancelFunc) (cleanup func()) {
	sigCh := make(chan os.Signal, constants.SignalChannelBuffer)
	signal.Notify(sigCh, Shutdown...)
	stop := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("Received signal, initiating shutdown", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		case <-stop:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("Received second signal, exiting without draining", "signal", sig.String())
			exit(1)
		case <-stop:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(stop)
	}
}
