package app

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/technotrac/authcore/internal/auth"
	"github.com/technotrac/authcore/internal/domain"
)

// IssueSession mints a session token binding userID and role.
func (s *AuthService) IssueSession(ctx context.Context, userID domain.UserID, role domain.Role) (auth.MintResult, error) {
	ctx, span := tracer.Start(ctx, "auth.issue_session")
	defer span.End()

	res, err := s.minter.MintSessionToken(userID, role)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return auth.MintResult{}, fmt.Errorf("issue session: %w", err)
	}

	tokenMintedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role.String())))
	return res, nil
}

// Authenticate validates a session token and returns the caller's identity.
// Every failure matches domain.ErrInvalidToken.
func (s *AuthService) Authenticate(ctx context.Context, token string) (auth.Session, error) {
	ctx, span := tracer.Start(ctx, "auth.authenticate")
	defer span.End()

	session, err := s.validator.Validate(token)
	if err != nil {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "invalid_token")))
		span.SetStatus(codes.Error, "invalid token")
		return auth.Session{}, err
	}

	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, session.ID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return auth.Session{}, err
		}
		if revoked {
			authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "revoked")))
			span.SetStatus(codes.Error, "revoked token")
			return auth.Session{}, fmt.Errorf("%w: session revoked", domain.ErrInvalidToken)
		}
	}
	return session, nil
}

// Logout revokes token for the rest of its lifetime. Later Authenticate
// calls with it fail with domain.ErrInvalidToken.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if s.revocations == nil {
		return fmt.Errorf("logout: %w: revocation disabled", domain.ErrStoreUnavailable)
	}

	ttl := session.ExpiresAt.Sub(s.clock.Now())
	if err := s.revocations.Revoke(ctx, session.ID, ttl); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	s.logger.InfoContext(ctx, "auth.session_revoked",
		slog.String("user_id", session.UserID.String()),
	)
	return nil
}

// Authorize authenticates token and checks that its role may perform op.
// Unknown operations are denied with domain.ErrForbidden.
func (s *AuthService) Authorize(ctx context.Context, token string, op domain.Operation) (auth.Session, error) {
	session, err := s.Authenticate(ctx, token)
	if err != nil {
		return auth.Session{}, err
	}
	if err := domain.Authorize(session.Role, op); err != nil {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "forbidden")))
		return auth.Session{}, err
	}
	return session, nil
}
