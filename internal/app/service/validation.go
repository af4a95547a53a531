package service

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"reservation_app/internal/common"
	"reservation_app/internal/common/security"
)

const (
	minPasswordLen    = 6
	minUsernameLen    = 3
	maxUsernameLen    = 20
	minNameLen        = 2
	maxNameLen        = 30
	maxDescriptionLen = 500
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), common.ErrValidation)
}

// ValidatePassword enforces the password policy: 6 to 72 bytes, no spaces,
// at least one upper case letter, one lower case letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLen || len(password) > security.MaxSecretBytes {
		return validationError("password must be between %d and %d characters", minPasswordLen, security.MaxSecretBytes)
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsSpace(r):
			return validationError("password must not contain spaces")
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return validationError("password must contain an upper case letter, a lower case letter and a digit")
	}
	return nil
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLen || n > maxUsernameLen {
		return validationError("username must be between %d and %d characters", minUsernameLen, maxUsernameLen)
	}
	if strings.ContainsAny(username, " \t\n@") {
		return validationError("username must not contain spaces or '@'")
	}
	return nil
}

func validateName(field, name string) error {
	n := utf8.RuneCountInString(name)
	if n < minNameLen || n > maxNameLen {
		return validationError("%s must be between %d and %d characters", field, minNameLen, maxNameLen)
	}
	return nil
}

// normalizeEmail lower-cases and validates a bare address.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", validationError("email %q is not a valid address", email)
	}
	return email, nil
}

func validatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return validationError("phone number must be in international format")
	}
	return nil
}
