// Package validation provides input validation utilities
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Signup password bounds, counted in characters and bytes respectively.
const (
	PasswordMinLength   = 6
	PasswordMaxBytes    = 128
	maxEmailAddressSize = 254
)

// Password rule violations, reported to the user verbatim.
var (
	ErrPasswordTooShort  = fmt.Errorf("password must be at least %d characters long", PasswordMinLength)
	ErrPasswordTooLong   = fmt.Errorf("password must not exceed %d characters", PasswordMaxBytes)
	ErrPasswordNoUpper   = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNoSpecial = errors.New("password must contain at least one special character")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}$`)

// ValidatePassword applies the signup rule: six or more characters with an
// uppercase letter and a punctuation or symbol character.
func ValidatePassword(password string) error {
	switch {
	case utf8.RuneCountInString(password) < PasswordMinLength:
		return ErrPasswordTooShort
	case len(password) > PasswordMaxBytes:
		return ErrPasswordTooLong
	case strings.IndexFunc(password, unicode.IsUpper) < 0:
		return ErrPasswordNoUpper
	case strings.IndexFunc(password, isSpecial) < 0:
		return ErrPasswordNoSpecial
	}
	return nil
}

func isSpecial(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if len(email) > maxEmailAddressSize {
		return fmt.Errorf("email must not exceed %d characters", maxEmailAddressSize)
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// NormalizeEmail lowercases and trims an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
