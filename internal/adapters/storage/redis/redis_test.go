package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_KeyPrefix(t *testing.T) {
	s := &Store{prefix: "qotd:"}

	assert.Equal(t, "qotd:favorite-quotes", s.key("favorite-quotes"))
	assert.Equal(t, "plain", (&Store{}).key("plain"))
}

func TestOpen_UnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Port 1 on loopback refuses connections immediately.
	_, err := Open(ctx, Config{
		Addr:         "127.0.0.1:1",
		DialTimeout:  200 * time.Millisecond,
		ConnectRetry: 2,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestOpen_ContextCancelledDuringRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, Config{
		Addr:         "127.0.0.1:1",
		DialTimeout:  200 * time.Millisecond,
		ConnectRetry: 5,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
