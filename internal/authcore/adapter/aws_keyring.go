package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/technotrac/authcore/internal/auth"
)

// smClient is the narrow consumer-defined interface for Secrets Manager operations.
type smClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// LoadKeyRing reads the session signing keys from a Secrets Manager secret.
// The secret string is a JSON array of keys, newest first:
//
//	["<current key>", "<previous key>"]
//
// Rotation is done by prepending a key to the array and, once every token
// signed with the oldest key has expired, removing it. The service must not
// start without a key, so every failure here is fatal to the caller.
func LoadKeyRing(ctx context.Context, sm smClient, secretID string) (*auth.KeyRing, error) {
	out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching signing keys %q from Secrets Manager: %w", secretID, err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("signing keys %q have no secret string", secretID)
	}

	var keys []string
	if err := json.Unmarshal([]byte(*out.SecretString), &keys); err != nil {
		return nil, fmt.Errorf("parsing signing keys %q: expected a JSON array of strings", secretID)
	}

	ring, err := auth.NewKeyRingFromStrings(keys)
	if err != nil {
		return nil, fmt.Errorf("signing keys %q: %w", secretID, err)
	}
	return ring, nil
}
