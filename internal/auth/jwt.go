package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/technotrac/authcore/internal/domain"
)

// ErrTokenExpired is returned (wrapped with domain.ErrInvalidToken) when a
// correctly signed token has expired.
var ErrTokenExpired = jwt.ErrTokenExpired

// Session is the identity carried by a valid session token.
type Session struct {
	// ID is the token's jti, the handle used for revocation.
	ID        string
	UserID    domain.UserID
	Role      domain.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Validator validates HS256 session tokens against a key ring.
type Validator struct {
	keys   *KeyRing
	issuer string
	clock  domain.Clock
}

// ValidatorConfig holds configuration for creating a Validator.
type ValidatorConfig struct {
	Keys   *KeyRing
	Issuer string
	Clock  domain.Clock
}

// NewValidator creates a new session token validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{
		keys:   cfg.Keys,
		issuer: cfg.Issuer,
		clock:  cfg.Clock,
	}
}

// Validate checks the signature against each ring key in order, then the
// issuer and expiry, and returns the session identity. Every failure
// wraps domain.ErrInvalidToken.
func (v *Validator) Validate(tokenString string) (Session, error) {
	claims, err := v.parse(tokenString)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	userID, err := domain.NewUserID(claims.Subject)
	if err != nil {
		return Session{}, fmt.Errorf("%w: subject: %w", domain.ErrInvalidToken, err)
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	s := Session{ID: claims.ID, UserID: userID, Role: role, ExpiresAt: claims.ExpiresAt.Time}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	return s, nil
}

func (v *Validator) parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithIssuer(v.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	}

	var lastErr error
	for _, key := range v.keys.Keys() {
		secret := key.Secret.Expose()
		var claims Claims
		_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}, opts...)
		if err == nil {
			return &claims, nil
		}
		// Only a signature mismatch means another key might verify it.
		if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
