package binance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	drepo "CoilScan/internal/domain/repository"
)

func TestReconnectAbortsOnCancelledContext(t *testing.T) {
	s := NewStream("ws://127.0.0.1:1", []string{"BTCUSDT"}, drepo.TF1h,
		time.Hour, time.Minute, newClientTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// An hour-long reconnect delay must not block a cancelled caller.
	done := make(chan error, 1)
	go func() { done <- s.Reconnect(ctx) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Reconnect did not honor context cancellation")
	}
}
