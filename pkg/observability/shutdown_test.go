package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownManager_ReverseOrder(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), time.Second)
	var order []string
	for _, name := range []string{"store", "scheduler", "http"} {
		name := name
		sm.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, sm.Shutdown())
	assert.Equal(t, []string{"http", "scheduler", "store"}, order)

	// cleanups run once
	require.NoError(t, sm.Shutdown())
	assert.Len(t, order, 3)
}

func TestShutdownManager_ErrorsAreCollected(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), time.Second)
	ran := false
	sm.Register("store", func(context.Context) error { ran = true; return nil })
	sm.Register("redis", func(context.Context) error { return errors.New("connection reset") })

	err := sm.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: connection reset")
	assert.True(t, ran)
}

func TestShutdownManager_Timeout(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), 20*time.Millisecond)
	sm.Register("store", func(context.Context) error { return nil })
	sm.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := sm.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow")
	assert.Contains(t, err.Error(), "store: shutdown timeout reached")
}

func TestShutdownManager_WaitReturnsOnContext(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), time.Second)
	closed := false
	sm.Register("store", func(context.Context) error { closed = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, sm.Wait(ctx))
	assert.True(t, closed)
}
