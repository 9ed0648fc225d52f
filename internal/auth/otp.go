package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"

	"golang.org/x/crypto/argon2"
)

var otpMax = big.NewInt(1_000_000) // 10^6 for 6-digit codes

// GenerateCode returns a uniformly random, zero-padded 6-digit code.
// big.Int sampling avoids modulo bias.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Argon2Params tunes the argon2id cost for code hashes.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follows the OWASP minimum for argon2id.
var DefaultArgon2Params = Argon2Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// CodeHasher produces salted argon2id hashes of issued codes for the
// audit trail. Hashes are encoded in PHC string format.
type CodeHasher struct {
	params Argon2Params
}

// NewCodeHasher creates a hasher with the given cost parameters.
func NewCodeHasher(params Argon2Params) *CodeHasher {
	return &CodeHasher{params: params}
}

// Hash returns "$argon2id$v=19$m=..,t=..,p=..$<salt>$<key>".
func (h *CodeHasher) Hash(code string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(code), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}
