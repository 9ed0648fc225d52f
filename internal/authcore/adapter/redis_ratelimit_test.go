package adapter_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technotrac/authcore/internal/authcore/adapter"
	"github.com/technotrac/authcore/internal/domain"
)

var perMinute = domain.RateRule{Name: domain.RuleOTPPhoneMinute, Limit: 3, Window: time.Minute}

func TestRateLimiter_Admit(t *testing.T) {
	ctx := context.Background()

	t.Run("allows exactly up to the limit", func(t *testing.T) {
		client, _ := newTestRedis(t)
		rl := adapter.NewRateLimiter(client.RDB, discardLogger())

		for i := 0; i < perMinute.Limit; i++ {
			require.NoError(t, rl.Admit(ctx, perMinute, testPhone), "request %d", i+1)
		}
	})

	t.Run("rejects the request after the limit with retry-after", func(t *testing.T) {
		client, mr := newTestRedis(t)
		rl := adapter.NewRateLimiter(client.RDB, discardLogger())

		for i := 0; i < perMinute.Limit; i++ {
			require.NoError(t, rl.Admit(ctx, perMinute, testPhone))
		}
		mr.FastForward(20 * time.Second)

		err := rl.Admit(ctx, perMinute, testPhone)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRateLimited)
		var rle *domain.RateLimitError
		require.True(t, errors.As(err, &rle))
		assert.Equal(t, domain.RuleOTPPhoneMinute, rle.Rule)
		assert.Equal(t, 40*time.Second, rle.RetryAfter)
	})

	t.Run("sets TTL on first hit only", func(t *testing.T) {
		client, mr := newTestRedis(t)
		rl := adapter.NewRateLimiter(client.RDB, discardLogger())
		key := "rl:otp_phone_minute:" + testPhone

		require.NoError(t, rl.Admit(ctx, perMinute, testPhone))
		assert.Equal(t, time.Minute, mr.TTL(key))

		mr.FastForward(25 * time.Second)
		require.NoError(t, rl.Admit(ctx, perMinute, testPhone))
		assert.Equal(t, 35*time.Second, mr.TTL(key), "window must not slide")
	})

	t.Run("counter resets after window expires", func(t *testing.T) {
		client, mr := newTestRedis(t)
		rl := adapter.NewRateLimiter(client.RDB, discardLogger())

		for i := 0; i <= perMinute.Limit; i++ {
			_ = rl.Admit(ctx, perMinute, testPhone)
		}
		mr.FastForward(61 * time.Second)

		assert.NoError(t, rl.Admit(ctx, perMinute, testPhone))
	})

	t.Run("rules and subjects are independent", func(t *testing.T) {
		client, _ := newTestRedis(t)
		rl := adapter.NewRateLimiter(client.RDB, discardLogger())
		one := domain.RateRule{Name: "one", Limit: 1, Window: time.Minute}
		other := domain.RateRule{Name: "other", Limit: 1, Window: time.Minute}

		require.NoError(t, rl.Admit(ctx, one, "a"))
		assert.NoError(t, rl.Admit(ctx, one, "b"))
		assert.NoError(t, rl.Admit(ctx, other, "a"))
		assert.Error(t, rl.Admit(ctx, one, "a"))
	})

	t.Run("store down fails open and logs degraded", func(t *testing.T) {
		client, mr := newTestRedis(t)
		var buf bytes.Buffer
		rl := adapter.NewRateLimiter(client.RDB, slog.New(slog.NewJSONHandler(&buf, nil)))
		mr.Close()

		err := rl.Admit(ctx, perMinute, testPhone)

		assert.NoError(t, err)
		assert.Contains(t, buf.String(), "ratelimit.degraded")
		assert.Contains(t, buf.String(), domain.RuleOTPPhoneMinute)
		assert.NotContains(t, buf.String(), testPhone)
	})
}

func TestRateLimiter_ClaimCooldown(t *testing.T) {
	ctx := context.Background()

	t.Run("first claim succeeds", func(t *testing.T) {
		client, mr := newTestRedis(t)
		rl := adapter.NewRateLimiter(client.RDB, discardLogger())

		require.NoError(t, rl.ClaimCooldown(ctx, testPhone, time.Minute))
		assert.Equal(t, time.Minute, mr.TTL("issue-recent:"+testPhone))
	})

	t.Run("second claim inside the window is rejected with remaining time", func(t *testing.T) {
		client, mr := newTestRedis(t)
		rl := adapter.NewRateLimiter(client.RDB, discardLogger())

		require.NoError(t, rl.ClaimCooldown(ctx, testPhone, time.Minute))
		mr.FastForward(15 * time.Second)

		err := rl.ClaimCooldown(ctx, testPhone, time.Minute)

		var rle *domain.RateLimitError
		require.True(t, errors.As(err, &rle))
		assert.Equal(t, domain.RuleOTPCooldown, rle.Rule)
		assert.Equal(t, 45*time.Second, rle.RetryAfter)
	})

	t.Run("claim succeeds again after the window", func(t *testing.T) {
		client, mr := newTestRedis(t)
		rl := adapter.NewRateLimiter(client.RDB, discardLogger())

		require.NoError(t, rl.ClaimCooldown(ctx, testPhone, time.Minute))
		mr.FastForward(61 * time.Second)

		assert.NoError(t, rl.ClaimCooldown(ctx, testPhone, time.Minute))
	})

	t.Run("store down fails open", func(t *testing.T) {
		client, mr := newTestRedis(t)
		rl := adapter.NewRateLimiter(client.RDB, discardLogger())
		mr.Close()

		assert.NoError(t, rl.ClaimCooldown(ctx, testPhone, time.Minute))
	})
}
