package hash

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

func HashPassword(password string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateStrength is advisory and only enforced at registration.
func ValidateStrength(password string) (bool, []string) {
	var errs []string

	if len(password) < MinPasswordLength {
		errs = append(errs, "password must be at least 8 characters long")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		errs = append(errs, "password must contain at least one letter")
	}
	if !hasDigit {
		errs = append(errs, "password must contain at least one digit")
	}
	if strings.TrimSpace(password) != password {
		errs = append(errs, "password must not start or end with whitespace")
	}

	return len(errs) == 0, errs
}
