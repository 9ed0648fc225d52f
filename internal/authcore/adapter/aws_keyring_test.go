package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technotrac/authcore/internal/auth"
	"github.com/technotrac/authcore/internal/domain"
)

type stubSM struct {
	getSecretValueFn func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func (s *stubSM) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return s.getSecretValueFn(ctx, params, optFns...)
}

var _ smClient = (*stubSM)(nil)

func secretReturning(secret *string, err error) *stubSM {
	return &stubSM{
		getSecretValueFn: func(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			if err != nil {
				return nil, err
			}
			return &secretsmanager.GetSecretValueOutput{SecretString: secret}, nil
		},
	}
}

func TestLoadKeyRing(t *testing.T) {
	newKey := strings.Repeat("n", auth.MinSigningKeyLength)
	oldKey := strings.Repeat("o", auth.MinSigningKeyLength)

	t.Run("ordered keys, newest signs", func(t *testing.T) {
		var gotID string
		sm := &stubSM{
			getSecretValueFn: func(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
				gotID = *params.SecretId
				return &secretsmanager.GetSecretValueOutput{
					SecretString: aws.String(`["` + newKey + `","` + oldKey + `"]`),
				}, nil
			},
		}

		ring, err := LoadKeyRing(context.Background(), sm, "auth/signing-keys")

		require.NoError(t, err)
		assert.Equal(t, "auth/signing-keys", gotID)
		require.Len(t, ring.Keys(), 2)
		assert.Equal(t, []byte(newKey), ring.Signing().Secret.Expose())
		assert.Equal(t, []byte(oldKey), ring.Keys()[1].Secret.Expose())
	})

	t.Run("fetch error", func(t *testing.T) {
		_, err := LoadKeyRing(context.Background(), secretReturning(nil, errors.New("access denied")), "id")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Secrets Manager")
	})

	t.Run("missing secret string", func(t *testing.T) {
		_, err := LoadKeyRing(context.Background(), secretReturning(nil, nil), "id")
		require.Error(t, err)
	})

	t.Run("malformed json does not echo the secret", func(t *testing.T) {
		_, err := LoadKeyRing(context.Background(), secretReturning(aws.String(newKey), nil), "id")
		require.Error(t, err)
		assert.NotContains(t, err.Error(), newKey)
	})

	t.Run("empty array", func(t *testing.T) {
		_, err := LoadKeyRing(context.Background(), secretReturning(aws.String(`[]`), nil), "id")
		assert.ErrorIs(t, err, auth.ErrNoSigningKeys)
	})

	t.Run("short key", func(t *testing.T) {
		_, err := LoadKeyRing(context.Background(), secretReturning(aws.String(`["short"]`), nil), "id")
		assert.ErrorIs(t, err, domain.ErrConfigInvalid)
	})
}
