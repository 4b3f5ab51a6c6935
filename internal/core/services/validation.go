package services

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vncsmyrnk/fintrack/internal/core/domain"
)

// maxPasswordLength bounds the input handed to bcrypt.
const maxPasswordLength = 1000

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return domain.NewValidationError("Username must be 3-30 characters: letters, numbers, underscores")
	}
	return nil
}

func normalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 1 || n > 50 {
		return "", domain.NewValidationError("Display name must be 1-50 characters")
	}
	return name, nil
}

func validatePassword(password string) error {
	if len(password) > maxPasswordLength {
		return domain.NewValidationError("Password is too long")
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if utf8.RuneCountInString(password) < 8 || !upper || !lower || !digit {
		return domain.NewValidationError("Password must be at least 8 characters and include uppercase, lowercase, and a number")
	}
	return nil
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return domain.NewValidationError("Invalid email address")
	}
	return nil
}
