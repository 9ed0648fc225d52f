package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/technotrac/authcore/internal/domain"
)

// DeliveryChannel sends a text message to a phone. Implementations return
// nil once the provider has accepted the message, not on handset receipt.
type DeliveryChannel interface {
	Send(ctx context.Context, phone domain.PhoneNumber, message string) error
}

// FormatOTPMessage renders the SMS body for an issued code.
func FormatOTPMessage(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your TechnoTrac OTP is %s. It expires in %d minutes.", code, int(ttl.Round(time.Minute)/time.Minute))
}
