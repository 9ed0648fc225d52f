package domain

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// phoneMaskFill replaces every digit between the country code and the last three.
const phoneMaskFill = "******"

// PhoneNumber is a value object representing a phone number in E.164 format.
// Always valid in memory; construct with NewPhoneNumber.
type PhoneNumber struct {
	value string
}

// NewPhoneNumber parses raw international input ("+" and country code
// required, spaces and punctuation tolerated) and accepts it only when the
// number is valid for its region. The stored form is canonical E.164.
func NewPhoneNumber(raw string) (PhoneNumber, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PhoneNumber{}, fmt.Errorf("phone number cannot be empty: %w", ErrInvalidPhoneNumber)
	}
	if !strings.HasPrefix(raw, "+") {
		return PhoneNumber{}, fmt.Errorf("phone number %s has no country code: %w", MaskPhone(raw), ErrInvalidPhoneNumber)
	}

	num, err := phonenumbers.Parse(raw, "")
	if err != nil {
		return PhoneNumber{}, fmt.Errorf("phone number %s: %w", MaskPhone(raw), ErrInvalidPhoneNumber)
	}
	if num.GetExtension() != "" ||
		!phonenumbers.IsPossibleNumber(num) ||
		!phonenumbers.IsValidNumber(num) {
		return PhoneNumber{}, fmt.Errorf("phone number %s is not a valid number: %w", MaskPhone(raw), ErrInvalidPhoneNumber)
	}

	return PhoneNumber{value: phonenumbers.Format(num, phonenumbers.E164)}, nil
}

// MustPhoneNumber creates a PhoneNumber, panicking on invalid input. Use only in tests.
func MustPhoneNumber(raw string) PhoneNumber {
	p, err := NewPhoneNumber(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (p PhoneNumber) String() string { return p.value }
func (p PhoneNumber) IsZero() bool   { return p.value == "" }

// Masked returns the log-safe form of the number.
func (p PhoneNumber) Masked() string { return MaskPhone(p.value) }

// LogValue keeps full numbers out of structured logs.
func (p PhoneNumber) LogValue() slog.Value { return slog.StringValue(p.Masked()) }

// MaskPhone keeps the country code and the last three digits of the national
// number, e.g. "+919876543210" becomes "+91******210". Input that cannot be
// parsed as an international number is fully masked.
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}
	num, err := phonenumbers.Parse(phone, "")
	if err != nil || num.GetCountryCode() == 0 {
		return "***"
	}

	cc := "+" + strconv.Itoa(int(num.GetCountryCode()))
	national := phonenumbers.GetNationalSignificantNumber(num)
	if len(national) <= 3 {
		return cc + phoneMaskFill
	}
	return cc + phoneMaskFill + national[len(national)-3:]
}
