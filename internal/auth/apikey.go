// Package auth provides authentication primitives for the store: access key
// generation/validation, JWT creation/verification for web sessions, and
// password hashing for account credentials.
// See internal/middleware/auth.go for the request-time authentication logic
// that uses these primitives.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// AccessKeyLength is the length of the random part of an access key in bytes
	AccessKeyLength = 32

	// DisplayPrefixLength is the number of characters to show in displays
	DisplayPrefixLength = 10

	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 12
)

// GenerateAccessKey creates a new random access key with the given prefix.
// Returns: full key (to show once), bcrypt hash (to store), display prefix.
// The display prefix doubles as the database lookup key during validation.
func GenerateAccessKey(prefix string) (key string, hash string, displayPrefix string, err error) {
	randomBytes := make([]byte, AccessKeyLength)
	_, err = rand.Read(randomBytes)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// Encode to base64 (URL-safe)
	randomPart := base64.RawURLEncoding.EncodeToString(randomBytes)

	// Construct full key: prefix_randomPart
	fullKey := fmt.Sprintf("%s_%s", prefix, randomPart)

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullKey), BcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to hash access key: %w", err)
	}

	// Display prefix is the first N characters of the full key
	displayPrefixStr := fullKey
	if len(fullKey) > DisplayPrefixLength {
		displayPrefixStr = fullKey[:DisplayPrefixLength]
	}

	return fullKey, string(hashBytes), displayPrefixStr, nil
}

// ValidateAccessKey checks if a provided key matches the stored hash
func ValidateAccessKey(providedKey, storedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(providedKey))
	return err == nil
}

// DisplayPrefix returns the candidate-lookup prefix for a raw key
func DisplayPrefix(rawKey string) string {
	if len(rawKey) > DisplayPrefixLength {
		return rawKey[:DisplayPrefixLength]
	}
	return rawKey
}

// HasKeyPrefix reports whether a raw key carries the expected scope prefix
// (e.g. "shopcn_" for install keys, "cli_" for CLI keys).
func HasKeyPrefix(rawKey, prefix string) bool {
	return strings.HasPrefix(rawKey, prefix+"_")
}

// ExtractAccessKeyFromHeader extracts the access key from an Authorization header.
// Expected format: "Bearer cli_abc123xyz..."
func ExtractAccessKeyFromHeader(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header is empty")
	}

	if !strings.HasPrefix(header, "Bearer ") {
		return "", errors.New("authorization header must start with 'Bearer '")
	}

	key := strings.TrimPrefix(header, "Bearer ")
	key = strings.TrimSpace(key)

	if key == "" {
		return "", errors.New("access key is empty after Bearer prefix")
	}

	return key, nil
}
