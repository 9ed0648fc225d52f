package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/technotrac/authcore/internal/auth"
	"github.com/technotrac/authcore/internal/domain"
	"github.com/technotrac/authcore/internal/observability"
)

// RequestOTP validates the phone, applies the request limits and the issue
// cooldown, stores a fresh code (replacing any live one), records the
// issuance and delivers the code.
//
// A delivery failure returns domain.ErrDeliveryFailed; the stored code and
// the audit record are kept.
func (s *AuthService) RequestOTP(ctx context.Context, rawPhone, clientIP string) (*RequestOTPResult, error) {
	ctx, span := tracer.Start(ctx, "auth.request_otp")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	// 1. Validate E.164 phone number.
	phone, err := domain.NewPhoneNumber(rawPhone)
	if err != nil {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "invalid_phone")))
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid phone")
		return nil, err
	}

	// 2. Request limits, cooldown, hourly cap.
	if err := s.admitIssue(ctx, phone, clientIP); err != nil {
		span.SetStatus(codes.Error, "rate limited")
		logger.InfoContext(ctx, "auth.otp_rate_limited", slog.Any("phone", phone), slog.String("reason", ruleOf(err)))
		return nil, err
	}

	// 3. Generate and store the code.
	code, err := auth.GenerateCode()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := s.clock.Now().UTC()
	expiresAt := now.Add(s.policy.CodeTTL)

	secret := domain.OTPSecret{
		Phone:     phone.String(),
		Code:      code,
		Attempts:  0,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}
	if err := s.secrets.Put(ctx, secret, s.policy.CodeTTL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("store otp secret: %w", err)
	}

	// 4. Durable audit record with a hash of the code.
	codeHash, err := s.hasher.Hash(code)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("hash otp: %w", err)
	}
	record := domain.OTPAuditRecord{
		ID:        uuid.NewString(),
		Phone:     phone.String(),
		CodeHash:  codeHash,
		ExpiresAt: expiresAt,
		Attempts:  0,
		CreatedAt: now,
	}
	if err := s.audit.RecordIssuance(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("record otp issuance: %w", err)
	}

	// 5. Deliver.
	deliverCtx, cancel := context.WithTimeout(ctx, domain.DeliveryTimeout)
	defer cancel()

	message := auth.FormatOTPMessage(code, s.policy.CodeTTL)
	if err := s.delivery.Send(deliverCtx, phone, message); err != nil {
		otpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "delivery_failed")))
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		logger.ErrorContext(ctx, "auth.otp_delivery_failed", slog.Any("phone", phone), slog.Any("error", err))
		return nil, fmt.Errorf("deliver otp: %w: %w", domain.ErrDeliveryFailed, err)
	}

	otpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	logger.InfoContext(ctx, "auth.otp_requested", slog.Any("phone", phone))

	return &RequestOTPResult{
		ExpiresAt:         expiresAt,
		RetryAfterSeconds: int(s.policy.IssueCooldown.Seconds()),
	}, nil
}

// admitIssue applies, in order: per-phone and per-IP minute limits, the
// issue cooldown, then the hourly cap. The first rejection wins.
func (s *AuthService) admitIssue(ctx context.Context, phone domain.PhoneNumber, clientIP string) error {
	if err := s.rateLimiter.Admit(ctx, s.policy.phoneMinuteRule(), phone.String()); err != nil {
		return s.rateLimited(ctx, err)
	}
	if clientIP != "" {
		if err := s.rateLimiter.Admit(ctx, s.policy.ipMinuteRule(), clientIP); err != nil {
			return s.rateLimited(ctx, err)
		}
	}
	if err := s.rateLimiter.ClaimCooldown(ctx, phone.String(), s.policy.IssueCooldown); err != nil {
		return s.rateLimited(ctx, err)
	}
	if err := s.rateLimiter.Admit(ctx, s.policy.phoneHourRule(), phone.String()); err != nil {
		return s.rateLimited(ctx, err)
	}
	return nil
}

func (s *AuthService) rateLimited(ctx context.Context, err error) error {
	rateLimitsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", "request_otp"),
		attribute.String("rule", ruleOf(err)),
	))
	return fmt.Errorf("request otp: %w", err)
}

func ruleOf(err error) string {
	var rle *domain.RateLimitError
	if errors.As(err, &rle) {
		return rle.Rule
	}
	return "unknown"
}
