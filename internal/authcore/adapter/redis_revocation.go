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

// revokedSessionPrefix namespaces revoked token IDs: session:revoked:{jti}.
const revokedSessionPrefix = "session:revoked:"

// RevocationStore records logged-out session tokens until they would have
// expired anyway. Reads fail closed: a Redis error is reported to the caller,
// which must deny the token.
type RevocationStore struct {
	cmd redisclient.Cmdable
}

// NewRevocationStore creates a RevocationStore that uses cmd for Redis operations.
func NewRevocationStore(cmd redisclient.Cmdable) *RevocationStore {
	return &RevocationStore{cmd: cmd}
}

// Revoke marks jti as revoked for ttl, the token's remaining lifetime.
// A non-positive ttl is a no-op since the token is already expired.
func (s *RevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "redis.revocation.revoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "SET"),
	)

	if err := s.cmd.Set(ctx, revokedSessionPrefix+jti, "1", ttl).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("revoke session: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether jti has been revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.revocation.is_revoked")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "EXISTS"),
	)

	n, err := s.cmd.Exists(ctx, revokedSessionPrefix+jti).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return true, fmt.Errorf("check revocation: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return n > 0, nil
}
