// Package main is a development utility for generating a test CLI access key
// with its bcrypt hash and display prefix pre-computed. It prints the raw key
// and a ready-to-run SQL INSERT so developers can seed a working CLI key in a
// local database without running the full issuance flow. Do not use generated
// keys in production — issue them through POST /api/v1/admin/keys/cli.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Generate random bytes
	randomBytes := make([]byte, 32)
	_, err := rand.Read(randomBytes)
	if err != nil {
		log.Fatal(err)
	}

	// Encode to base64
	randomPart := base64.RawURLEncoding.EncodeToString(randomBytes)

	// Create full key
	prefix := "cli"
	fullKey := fmt.Sprintf("%s_%s", prefix, randomPart)

	// Hash with bcrypt
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullKey), 12)
	if err != nil {
		log.Fatal(err)
	}

	// Display prefix
	displayPrefix := fullKey[:10]

	fmt.Println("==========================================================")
	fmt.Println("CLI Access Key Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nFull Key: %s\n", fullKey)
	fmt.Printf("\nHash: %s\n", string(hashBytes))
	fmt.Printf("\nDisplay Prefix: %s\n", displayPrefix)
	fmt.Println("\n==========================================================")
	fmt.Println("SQL Insert:")
	fmt.Println("==========================================================")
	fmt.Printf(`
INSERT INTO access_keys (id, user_id, key_hash, key_prefix, scope, remaining_uses, created_at)
VALUES (
    gen_random_uuid(),
    '<user-id>',
    '%s',
    '%s',
    'cli',
    1,
    NOW()
);
`, string(hashBytes), displayPrefix)
}
