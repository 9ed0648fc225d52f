package auth

import "github.com/golang-jwt/jwt/v5"

// Claims represents the JWT claims carried by a session token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}
