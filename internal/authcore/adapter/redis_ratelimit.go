package adapter

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/technotrac/authcore/internal/domain"
	redisclient "github.com/technotrac/authcore/internal/redis"
)

const (
	rateLimitKeyPrefix = "rl:"
	cooldownKeyPrefix  = "issue-recent:"
)

// rateLimitScript increments a fixed-window counter, setting the window's
// expiry only on its first hit, and returns {count, ttl_seconds}.
// A counter that somehow lost its TTL gets one rather than living forever.
var rateLimitScript = redisclient.NewScript(`
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('TTL', KEYS[1])
if count == 1 or ttl < 0 then
  redis.call('EXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RateLimiter implements fixed-window rate limiting backed by Redis.
//
// It fails open: when Redis cannot be reached the request is admitted, a
// ratelimit.degraded warning is logged and security_ratelimit_degraded_total
// is incremented.
type RateLimiter struct {
	cmd    redisclient.Cmdable
	logger *slog.Logger
}

// NewRateLimiter creates a RateLimiter that uses cmd for Redis operations.
func NewRateLimiter(cmd redisclient.Cmdable, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{cmd: cmd, logger: logger}
}

// Admit counts one request for subject under rule. It returns a
// *domain.RateLimitError once the window's count exceeds rule.Limit.
func (r *RateLimiter) Admit(ctx context.Context, rule domain.RateRule, subject string) error {
	ctx, span := tracer.Start(ctx, "redis.ratelimit.admit")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "EVALSHA"),
		attribute.String("ratelimit.rule", rule.Name),
	)

	key := rateLimitKeyPrefix + rule.Name + ":" + subject
	windowSeconds := int(rule.Window / time.Second)

	res, err := rateLimitScript.Run(ctx, r.cmd, []string{key}, windowSeconds).Int64Slice()
	if err != nil || len(res) != 2 {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limit store unavailable")
		r.degraded(ctx, rule.Name, err)
		return nil
	}

	count, ttl := res[0], res[1]
	if count > int64(rule.Limit) {
		span.SetAttributes(attribute.Bool("ratelimit.rejected", true))
		return &domain.RateLimitError{Rule: rule.Name, RetryAfter: time.Duration(ttl) * time.Second}
	}
	return nil
}

// ClaimCooldown marks the phone as recently issued for ttl. If the mark is
// already present the request is rejected outright, regardless of counts.
func (r *RateLimiter) ClaimCooldown(ctx context.Context, phone string, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "redis.ratelimit.claim_cooldown")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "SET"),
	)

	key := cooldownKeyPrefix + phone

	claimed, err := r.cmd.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limit store unavailable")
		r.degraded(ctx, domain.RuleOTPCooldown, err)
		return nil
	}
	if claimed {
		return nil
	}

	retryAfter := ttl
	if remaining, err := r.cmd.TTL(ctx, key).Result(); err == nil && remaining > 0 {
		retryAfter = remaining
	}
	span.SetAttributes(attribute.Bool("ratelimit.rejected", true))
	return &domain.RateLimitError{Rule: domain.RuleOTPCooldown, RetryAfter: retryAfter}
}

func (r *RateLimiter) degraded(ctx context.Context, rule string, err error) {
	rateLimitDegradedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
	r.logger.WarnContext(ctx, "ratelimit.degraded",
		slog.String("rule", rule),
		slog.Any("error", err),
	)
}
