package adapter

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/technotrac/authcore/internal/domain"
	redisclient "github.com/technotrac/authcore/internal/redis"
)

// secretKeyPrefix namespaces the per-phone OTP hash.
const secretKeyPrefix = "otp:secret:"

// verifyScript checks a submitted code and mutates the secret in one step,
// so concurrent submissions for a phone are serialised by Redis.
// KEYS[1] = secret hash, ARGV[1] = submitted code, ARGV[2] = max attempts.
// Returns a domain.VerifyOutcome value. HINCRBY leaves the key's TTL alone.
var verifyScript = redisclient.NewScript(`
local vals = redis.call('HMGET', KEYS[1], 'code', 'attempts')
local code = vals[1]
if not code then
  return 0
end
local max = tonumber(ARGV[2])
local attempts = tonumber(vals[2]) or 0
if attempts >= max then
  redis.call('DEL', KEYS[1])
  return 2
end
if code ~= ARGV[1] then
  attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
  if attempts >= max then
    redis.call('DEL', KEYS[1])
    return 2
  end
  return 1
end
redis.call('DEL', KEYS[1])
return 3
`)

// SecretStore keeps the ephemeral OTP state for each phone in a Redis hash
// that expires with the code.
type SecretStore struct {
	cmd redisclient.Cmdable
}

// NewSecretStore creates a SecretStore that uses cmd for Redis operations.
func NewSecretStore(cmd redisclient.Cmdable) *SecretStore {
	return &SecretStore{cmd: cmd}
}

func secretKey(phone string) string { return secretKeyPrefix + phone }

// Put replaces any secret for the phone with a fresh one (attempts = 0)
// that expires after ttl.
func (s *SecretStore) Put(ctx context.Context, secret domain.OTPSecret, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "redis.otp_secret.put")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "MULTI"),
	)

	key := secretKey(secret.Phone)
	_, err := s.cmd.TxPipelined(ctx, func(pipe redisclient.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code", secret.Code,
			"attempts", 0,
			"issued_at", secret.IssuedAt.Unix(),
			"expires_at", secret.ExpiresAt.Unix(),
		)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("secret store: put: %w: %w", domain.ErrStoreUnavailable, err)
	}

	return nil
}

// Verify atomically checks code against the stored secret. A match or a
// lockout deletes the secret; a mismatch counts an attempt.
func (s *SecretStore) Verify(ctx context.Context, phone, code string, maxAttempts int) (domain.VerifyOutcome, error) {
	ctx, span := tracer.Start(ctx, "redis.otp_secret.verify")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "EVALSHA"),
	)

	n, err := verifyScript.Run(ctx, s.cmd, []string{secretKey(phone)}, code, maxAttempts).Int64()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.OutcomeNoSecret, fmt.Errorf("secret store: verify: %w: %w", domain.ErrStoreUnavailable, err)
	}

	outcome := domain.VerifyOutcome(n)
	span.SetAttributes(attribute.String("otp.outcome", outcome.String()))
	return outcome, nil
}
