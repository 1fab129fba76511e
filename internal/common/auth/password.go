// internal/common/auth/password.go
package auth

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 8

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooWeak  = errors.New("password must contain at least 1 letter and 1 number")
)

// CheckPasswordStrength enforces the account password policy.
func CheckPasswordStrength(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return ErrPasswordTooWeak
	}
	return nil
}

func HashPassword(password string, cost int) (string, error) {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// PasswordMatches compares in constant time.
func PasswordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
