package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var ErrSignal = errors.New("shell: exit with signal")

// WaitSignal blocks until SIGINT, SIGTERM or the context is done
func WaitSignal(ctx context.Context) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case sig := <-sigs:
		return fmt.Errorf("%w: %s", ErrSignal, sig)
	case <-ctx.Done():
		return nil
	}
}
