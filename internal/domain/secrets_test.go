package domain_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/technotrac/authcore/internal/domain"
)

func TestSecretString(t *testing.T) {
	secret := domain.SecretString("msg91-auth-key")

	t.Run("String and fmt never show the value", func(t *testing.T) {
		assert.Equal(t, "[REDACTED]", secret.String())
		assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", secret))
	})

	t.Run("Expose returns actual value", func(t *testing.T) {
		assert.Equal(t, "msg91-auth-key", secret.Expose())
		assert.False(t, secret.IsEmpty())
		assert.True(t, domain.SecretString("").IsEmpty())
	})

	t.Run("slog output contains REDACTED", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		logger.Info("test", "vendor", secret)

		assert.Contains(t, buf.String(), "[REDACTED]")
		assert.NotContains(t, buf.String(), "msg91-auth-key")
	})
}

func TestSecretBytes(t *testing.T) {
	secret := domain.SecretBytes("hmac-signing-key")

	t.Run("String returns REDACTED", func(t *testing.T) {
		assert.Equal(t, "[REDACTED]", secret.String())
	})

	t.Run("Expose returns actual bytes", func(t *testing.T) {
		assert.Equal(t, []byte("hmac-signing-key"), secret.Expose())
		assert.True(t, domain.SecretBytes(nil).IsEmpty())
	})

	t.Run("slog output contains REDACTED", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		logger.Info("test", "material", secret)

		assert.Contains(t, buf.String(), "[REDACTED]")
		assert.NotContains(t, buf.String(), "hmac-signing-key")
	})
}
