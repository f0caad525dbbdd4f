package utils

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is enforced on sign-up and account creation.
const MinPasswordLength = 8

// HashPassword hashes a plain password using bcrypt.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword compares plain password with hashed password.
func CheckPassword(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// TemporaryPassword returns a random password for accounts created on a
// user's behalf. It is never shown; the user resets it.
func TemporaryPassword() (string, error) {
	return GenerateToken(18)
}
