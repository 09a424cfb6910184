package validate

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidPhone = errors.New("phone number must be a 10-digit Indian mobile number")
	ErrInvalidEmail = errors.New("invalid email address")
	ErrInvalidOTP   = errors.New("OTP must be a 6-digit code")
)

var (
	phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	otpPattern   = regexp.MustCompile(`^\d{6}$`)
	nonDigit     = regexp.MustCompile(`\D`)
)

// PhoneNumber checks the 10-digit local subscriber pattern. Callers must run
// this before any backend request that takes a phone number as a parameter;
// an invalid number is never sent over the wire.
func PhoneNumber(phone string) error {
	if !phonePattern.MatchString(strings.ReplaceAll(phone, " ", "")) {
		return ErrInvalidPhone
	}
	return nil
}

func Email(email string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func OTP(code string) error {
	if !otpPattern.MatchString(code) {
		return ErrInvalidOTP
	}
	return nil
}

// FormatPhone strips non-digits and a leading 91 country code, yielding the
// 10-digit subscriber number.
func FormatPhone(phone string) string {
	cleaned := nonDigit.ReplaceAllString(phone, "")
	if strings.HasPrefix(cleaned, "91") && len(cleaned) == 12 {
		return cleaned[2:]
	}
	return cleaned
}

// NormalizePhone prepends the 91 country code to a bare 10-digit number.
func NormalizePhone(phone string) string {
	cleaned := nonDigit.ReplaceAllString(phone, "")
	if !strings.HasPrefix(cleaned, "91") && len(cleaned) == 10 {
		return "91" + cleaned
	}
	return cleaned
}
