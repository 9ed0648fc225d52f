package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/technotrac/authcore/internal/domain"
	"github.com/technotrac/authcore/internal/observability"
)

// VerifyOTP checks a submitted code against the live secret for the phone.
// On a match the secret is consumed and the caller's user is looked up,
// or created with rawRole when this is the phone's first verification.
// An existing user keeps their stored role.
//
// rawRole must be a self-registration role and is validated before the
// secret is touched.
func (s *AuthService) VerifyOTP(ctx context.Context, rawPhone, code, rawRole string) (*VerifyOTPResult, error) {
	ctx, span := tracer.Start(ctx, "auth.verify_otp")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	// 1. Validate inputs.
	phone, err := domain.NewPhoneNumber(rawPhone)
	if err != nil {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "invalid_phone")))
		span.SetStatus(codes.Error, "invalid phone")
		return nil, err
	}
	role, err := domain.ParseRegistrationRole(rawRole)
	if err != nil {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "invalid_role")))
		span.SetStatus(codes.Error, "invalid role")
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		span.SetStatus(codes.Error, "empty code")
		return nil, fmt.Errorf("code is required: %w", domain.ErrInvalidInput)
	}

	// 2. Atomic check-and-consume.
	outcome, err := s.secrets.Verify(ctx, phone.String(), code, s.policy.MaxAttempts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("verify otp: %w", err)
	}

	otpVerificationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.String())))
	span.SetAttributes(attribute.String("otp.outcome", outcome.String()))

	switch outcome {
	case domain.OutcomeMatched:
	case domain.OutcomeLockedOut:
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "otp_locked_out")))
		span.SetStatus(codes.Error, "locked out")
		logger.WarnContext(ctx, "auth.otp_locked_out", slog.Any("phone", phone))
		return nil, domain.ErrTooManyAttempts
	default:
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "invalid_otp")))
		span.SetStatus(codes.Error, "invalid code")
		return nil, domain.ErrInvalidCode
	}

	// 3. Resolve or create the user.
	user, err := s.userStore.FindByPhone(ctx, phone)
	if err == nil {
		logger.InfoContext(ctx, "auth.otp_verified",
			slog.Any("phone", phone),
			slog.String("user_id", user.ID.String()),
		)
		return &VerifyOTPResult{NewUser: false, UserID: user.ID, Role: user.Role}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("find user by phone: %w", err)
	}

	newUser := domain.User{
		ID:        domain.GenerateUserID(),
		Phone:     phone,
		Role:      role,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.userStore.Create(ctx, newUser); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Another verification registered this phone first.
			existing, findErr := s.userStore.FindByPhone(ctx, phone)
			if findErr == nil {
				logger.InfoContext(ctx, "auth.otp_verified",
					slog.Any("phone", phone),
					slog.String("user_id", existing.ID.String()),
				)
				return &VerifyOTPResult{NewUser: false, UserID: existing.ID, Role: existing.Role}, nil
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create user: %w", err)
	}

	usersCreatedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role.String())))
	logger.InfoContext(ctx, "auth.user_created",
		slog.Any("phone", phone),
		slog.String("user_id", newUser.ID.String()),
		slog.String("role", role.String()),
	)

	return &VerifyOTPResult{NewUser: true, UserID: newUser.ID, Role: role}, nil
}
