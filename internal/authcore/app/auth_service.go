// Package app orchestrates the authentication flows: code issuance, code
// verification, session issuance and token checks.
package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/technotrac/authcore/internal/auth"
	"github.com/technotrac/authcore/internal/domain"
)

var tracer = otel.Tracer("authcore/app")

var (
	otpRequestsTotal      metric.Int64Counter
	otpVerificationsTotal metric.Int64Counter
	tokenMintedTotal      metric.Int64Counter
	usersCreatedTotal     metric.Int64Counter
	authFailuresTotal     metric.Int64Counter
	rateLimitsTotal       metric.Int64Counter
)

func init() {
	m := otel.Meter("authcore/app")

	otpRequestsTotal, _ = m.Int64Counter("auth_otp_requests_total",
		metric.WithDescription("Total OTP requests"))
	otpVerificationsTotal, _ = m.Int64Counter("auth_otp_verifications_total",
		metric.WithDescription("Total OTP verification attempts by outcome"))
	tokenMintedTotal, _ = m.Int64Counter("auth_token_minted_total",
		metric.WithDescription("Total session tokens minted"))
	usersCreatedTotal, _ = m.Int64Counter("auth_users_created_total",
		metric.WithDescription("Total users created on first verification"))
	authFailuresTotal, _ = m.Int64Counter("security_auth_failures_total",
		metric.WithDescription("Total authentication failures"))
	rateLimitsTotal, _ = m.Int64Counter("security_rate_limits_total",
		metric.WithDescription("Total rate limit hits"))
}

// SecretStore holds the single live code per phone.
type SecretStore interface {
	Put(ctx context.Context, secret domain.OTPSecret, ttl time.Duration) error
	Verify(ctx context.Context, phone, code string, maxAttempts int) (domain.VerifyOutcome, error)
}

// RateLimiter enforces fixed-window limits and the per-phone issue cooldown.
// Both methods return *domain.RateLimitError on rejection.
type RateLimiter interface {
	Admit(ctx context.Context, rule domain.RateRule, subject string) error
	ClaimCooldown(ctx context.Context, phone string, ttl time.Duration) error
}

// UserStore finds users by phone and creates them on first verification.
type UserStore interface {
	FindByPhone(ctx context.Context, phone domain.PhoneNumber) (*domain.User, error)
	Create(ctx context.Context, user domain.User) error
}

// RevocationStore tracks logged-out session tokens by jti. IsRevoked
// reports true alongside any error.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuditSink durably records every issuance.
type AuditSink interface {
	RecordIssuance(ctx context.Context, rec domain.OTPAuditRecord) error
}

// Policy holds the tunable issuance and verification limits.
type Policy struct {
	CodeTTL        time.Duration
	MaxAttempts    int
	IssueCooldown  time.Duration
	HourlyCap      int
	PhonePerMinute int
	IPPerMinute    int
}

// DefaultPolicy returns the compiled defaults.
func DefaultPolicy() Policy {
	return Policy{
		CodeTTL:        domain.OTPValidityDuration,
		MaxAttempts:    domain.MaxOTPVerifyAttempts,
		IssueCooldown:  domain.OTPIssueCooldown,
		HourlyCap:      domain.OTPHourlyCap,
		PhonePerMinute: domain.OTPRequestRateLimitPerPhone,
		IPPerMinute:    domain.OTPRequestRateLimitPerIP,
	}
}

func (p Policy) phoneMinuteRule() domain.RateRule {
	return domain.RateRule{Name: domain.RuleOTPPhoneMinute, Limit: p.PhonePerMinute, Window: domain.OTPRequestRateLimitWindow}
}

func (p Policy) ipMinuteRule() domain.RateRule {
	return domain.RateRule{Name: domain.RuleOTPIPMinute, Limit: p.IPPerMinute, Window: domain.OTPRequestRateLimitWindow}
}

func (p Policy) phoneHourRule() domain.RateRule {
	return domain.RateRule{Name: domain.RuleOTPPhoneHour, Limit: p.HourlyCap, Window: domain.OTPHourlyWindow}
}

// RequestOTPResult is returned by RequestOTP on success.
type RequestOTPResult struct {
	ExpiresAt         time.Time
	RetryAfterSeconds int
}

// VerifyOTPResult is returned by VerifyOTP on success.
type VerifyOTPResult struct {
	NewUser bool
	UserID  domain.UserID
	Role    domain.Role
}

// AuthServiceConfig holds the dependencies for AuthService.
type AuthServiceConfig struct {
	Secrets     SecretStore
	RateLimiter RateLimiter
	UserStore   UserStore
	Audit       AuditSink
	Delivery    auth.DeliveryChannel
	Hasher      *auth.CodeHasher
	Minter      *auth.Minter
	Validator   *auth.Validator
	Clock       domain.Clock
	Policy      Policy
	Logger      *slog.Logger

	// Revocations enables logout. Nil disables revocation checks.
	Revocations RevocationStore
}

// AuthService orchestrates OTP issuance and verification and the session
// token operations built on top of them.
type AuthService struct {
	secrets     SecretStore
	rateLimiter RateLimiter
	userStore   UserStore
	audit       AuditSink
	delivery    auth.DeliveryChannel
	hasher      *auth.CodeHasher
	minter      *auth.Minter
	validator   *auth.Validator
	clock       domain.Clock
	policy      Policy
	logger      *slog.Logger
	revocations RevocationStore
}

// NewAuthService creates a new AuthService with the given dependencies.
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	return &AuthService{
		secrets:     cfg.Secrets,
		rateLimiter: cfg.RateLimiter,
		userStore:   cfg.UserStore,
		audit:       cfg.Audit,
		delivery:    cfg.Delivery,
		hasher:      cfg.Hasher,
		minter:      cfg.Minter,
		validator:   cfg.Validator,
		clock:       cfg.Clock,
		policy:      cfg.Policy,
		logger:      cfg.Logger,
		revocations: cfg.Revocations,
	}
}
