package domain

import "time"

// OTPSecret is the ephemeral per-phone verification state. The code is held
// in plaintext only here; durable storage sees a hash.
type OTPSecret struct {
	Phone     string
	Code      string
	Attempts  int
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// VerifyOutcome is the result of an atomic check of a submitted code.
type VerifyOutcome int

const (
	// OutcomeNoSecret means nothing was issued, or the code expired.
	OutcomeNoSecret VerifyOutcome = iota
	// OutcomeMismatch means the code was wrong and the attempt was counted.
	OutcomeMismatch
	// OutcomeLockedOut means the attempt budget is spent and the secret was purged.
	OutcomeLockedOut
	// OutcomeMatched means the code was correct and the secret was consumed.
	OutcomeMatched
)

func (o VerifyOutcome) String() string {
	switch o {
	case OutcomeNoSecret:
		return "no_secret"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeLockedOut:
		return "locked_out"
	case OutcomeMatched:
		return "matched"
	default:
		return "unknown"
	}
}

// OTPAuditRecord is the durable, append-only trace of one issuance.
type OTPAuditRecord struct {
	ID        string
	Phone     string
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
	CreatedAt time.Time
}

// User is the minimal view of a marketplace user the auth core needs.
type User struct {
	ID        UserID
	Phone     PhoneNumber
	Role      Role
	CreatedAt time.Time
}
