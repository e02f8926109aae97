package handlers

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

var (
	ErrPasswordTooShort   = errors.New("password must contain at least 8 characters")
	ErrPasswordNumeric    = errors.New("password cannot be entirely numeric")
	ErrPasswordIsUsername = errors.New("password is too similar to the username")
	ErrPasswordMismatch   = errors.New("passwords do not match")
)

// validatePassword applies the account password rules.
func validatePassword(password, confirm, username string) error {
	if len([]rune(password)) < minPasswordLen {
		return ErrPasswordTooShort
	}
	if strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return ErrPasswordNumeric
	}
	if username != "" && strings.EqualFold(password, username) {
		return ErrPasswordIsUsername
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

func hashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hash string, raw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
}
