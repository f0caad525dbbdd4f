package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateToken returns n random bytes encoded as unpadded URL-safe base64.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
