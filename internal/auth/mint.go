package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/technotrac/authcore/internal/domain"
)

// MintResult holds the result of minting a session token.
type MintResult struct {
	Token     string
	ExpiresAt time.Time
}

// Minter creates signed HS256 session tokens.
type Minter struct {
	keys   *KeyRing
	ttl    time.Duration
	issuer string
	clock  domain.Clock
}

// MinterConfig holds configuration for creating a Minter.
type MinterConfig struct {
	Keys   *KeyRing
	TTL    time.Duration
	Issuer string
	Clock  domain.Clock
}

// NewMinter creates a new session token minter.
func NewMinter(cfg MinterConfig) *Minter {
	return &Minter{
		keys:   cfg.Keys,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		clock:  cfg.Clock,
	}
}

// MintSessionToken signs a token binding the user ID and role, valid for
// the configured TTL from now.
func (m *Minter) MintSessionToken(userID domain.UserID, role domain.Role) (MintResult, error) {
	if userID.IsZero() {
		return MintResult{}, fmt.Errorf("mint session token: %w", domain.ErrEmptyID)
	}

	key := m.keys.Signing()
	now := m.clock.Now().UTC().Truncate(time.Second)
	expiresAt := now.Add(m.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Role: string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	token.Header["kid"] = key.ID

	signed, err := token.SignedString(key.Secret.Expose())
	if err != nil {
		return MintResult{}, fmt.Errorf("sign session token: %w", err)
	}

	return MintResult{
		Token:     signed,
		ExpiresAt: expiresAt,
	}, nil
}
