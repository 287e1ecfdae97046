package shell

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReplaceEnvVars(t *testing.T) {
	t.Setenv("A2DP_ROLE", "sink")

	tests := []struct {
		name, in, out string
	}{
		{"set", "role: ${A2DP_ROLE}", "role: sink"},
		{"set with default", "role: ${A2DP_ROLE:source}", "role: sink"},
		{"default", "listen: ${A2DP_LISTEN_UNSET::1985}", "listen: :1985"},
		{"unknown", "level: ${A2DP_LEVEL_UNSET}", "level: ${A2DP_LEVEL_UNSET}"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.out, ReplaceEnvVars(test.in))
		})
	}
}

func TestWaitSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, WaitSignal(ctx))

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
	}()

	require.ErrorIs(t, WaitSignal(ctx), ErrSignal)
}
