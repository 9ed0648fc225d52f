package domain

import "time"

// Compiled defaults for the authentication core. Every value here can be
// overridden through configuration.
const (
	// OTP policy
	OTPCodeLength        = 6
	OTPValidityDuration  = 300 * time.Second
	MaxOTPVerifyAttempts = 5
	OTPIssueCooldown     = 60 * time.Second
	OTPHourlyCap         = 5
	OTPHourlyWindow      = time.Hour

	// Request rate limits
	OTPRequestRateLimitPerPhone = 5
	OTPRequestRateLimitPerIP    = 20
	OTPRequestRateLimitWindow   = time.Minute

	// Session tokens
	SessionTokenLifetime = 24 * time.Hour

	// Timeout contracts
	DynamoDBTimeout     = 5 * time.Second
	KafkaProduceTimeout = 10 * time.Second
	RedisTimeout        = 2 * time.Second
	PostgresTimeout     = 5 * time.Second
	DeliveryTimeout     = 10 * time.Second

	// Graceful shutdown
	GracefulShutdownTimeout = 30 * time.Second
	ShutdownDrainDelay      = 2 * time.Second
	ShutdownHTTPTimeout     = 15 * time.Second
	ShutdownOTELTimeout     = 5 * time.Second
)

// Rate-limit rule names. They form part of the Redis key and appear in logs
// and metrics, so they never carry the subject (phone or IP).
const (
	RuleOTPPhoneMinute = "otp_phone_minute"
	RuleOTPIPMinute    = "otp_ip_minute"
	RuleOTPPhoneHour   = "otp_phone_hour"
	RuleOTPCooldown    = "otp_issue_cooldown"
)

// RateRule is a fixed-window limit: at most Limit requests per Window.
type RateRule struct {
	Name   string
	Limit  int
	Window time.Duration
}
