package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iredis "github.com/technotrac/authcore/internal/redis"
)

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client := iredis.NewClient(iredis.Config{
		Addr:    mr.Addr(),
		Timeout: 2 * time.Second,
	})
	t.Cleanup(func() {
		require.NoError(t, client.Close())
	})

	require.NotNil(t, client.RDB, "client.RDB must be non-nil")
	require.NoError(t, client.Ping(context.Background()))

	// Verify that RDB satisfies the Cmdable interface.
	var _ iredis.Cmdable = client.RDB
}

func TestPing_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client := iredis.NewClient(iredis.Config{Addr: addr, Timeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	err := client.Ping(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func TestIsNil(t *testing.T) {
	mr := miniredis.RunT(t)
	client := iredis.NewClient(iredis.Config{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	_, err := client.RDB.Get(context.Background(), "missing").Result()

	assert.True(t, iredis.IsNil(err))
	assert.False(t, iredis.IsNil(nil))
}
