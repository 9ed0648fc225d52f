package domain

import "log/slog"

const redacted = "[REDACTED]"

// SecretString wraps a sensitive string such as a vendor API key.
// It prints and logs as [REDACTED]; call Expose at the point of use.
type SecretString string

func (s SecretString) String() string       { return redacted }
func (s SecretString) LogValue() slog.Value { return slog.StringValue(redacted) }

// Expose returns the actual secret value.
func (s SecretString) Expose() string { return string(s) }

// IsEmpty returns true if the secret is empty.
func (s SecretString) IsEmpty() bool { return len(s) == 0 }

// SecretBytes wraps sensitive key material such as an HMAC signing key.
type SecretBytes []byte

func (s SecretBytes) String() string       { return redacted }
func (s SecretBytes) LogValue() slog.Value { return slog.StringValue(redacted) }

// Expose returns the actual secret bytes.
func (s SecretBytes) Expose() []byte { return []byte(s) }

// IsEmpty returns true if the secret is empty.
func (s SecretBytes) IsEmpty() bool { return len(s) == 0 }

var (
	_ slog.LogValuer = SecretString("")
	_ slog.LogValuer = SecretBytes{}
)
