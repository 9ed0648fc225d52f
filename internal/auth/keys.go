package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/technotrac/authcore/internal/domain"
)

// MinSigningKeyLength is the shortest HMAC key accepted.
const MinSigningKeyLength = 32

// ErrNoSigningKeys is returned when a key ring would be empty.
var ErrNoSigningKeys = errors.New("no session signing keys configured")

// SigningKey is one HS256 secret with its derived key ID.
type SigningKey struct {
	ID     string
	Secret domain.SecretBytes
}

// KeyRing holds the ordered session signing keys. The first key signs new
// tokens; every key is accepted for verification so older keys keep
// outstanding sessions valid during rotation.
type KeyRing struct {
	keys []SigningKey
}

// NewKeyRing builds a key ring from raw secrets, newest first.
func NewKeyRing(secrets ...[]byte) (*KeyRing, error) {
	if len(secrets) == 0 {
		return nil, ErrNoSigningKeys
	}

	keys := make([]SigningKey, 0, len(secrets))
	for i, s := range secrets {
		if len(s) < MinSigningKeyLength {
			return nil, fmt.Errorf("signing key %d shorter than %d bytes: %w", i, MinSigningKeyLength, domain.ErrConfigInvalid)
		}
		keys = append(keys, SigningKey{ID: keyID(s), Secret: domain.SecretBytes(s)})
	}
	return &KeyRing{keys: keys}, nil
}

// NewKeyRingFromStrings is NewKeyRing for configuration values.
func NewKeyRingFromStrings(secrets []string) (*KeyRing, error) {
	raw := make([][]byte, len(secrets))
	for i, s := range secrets {
		raw[i] = []byte(s)
	}
	return NewKeyRing(raw...)
}

// Signing returns the key used to sign new tokens.
func (r *KeyRing) Signing() SigningKey { return r.keys[0] }

// Keys returns every verification key in order.
func (r *KeyRing) Keys() []SigningKey { return r.keys }

// GenerateEphemeralKey returns a random key for local development, where
// sessions need not survive a restart.
func GenerateEphemeralKey() ([]byte, error) {
	b := make([]byte, MinSigningKeyLength)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return b, nil
}

// keyID is a short, non-reversible fingerprint used as the JWT kid header.
func keyID(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:4])
}
