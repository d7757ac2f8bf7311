package auth

import (
	"strings"
	"testing"
)

func TestGenerateAccessKey(t *testing.T) {
	t.Run("returns three non-empty values", func(t *testing.T) {
		key, hash, prefix, err := GenerateAccessKey("shopcn")
		if err != nil {
			t.Fatalf("GenerateAccessKey() error: %v", err)
		}
		if key == "" {
			t.Error("GenerateAccessKey() returned empty key")
		}
		if hash == "" {
			t.Error("GenerateAccessKey() returned empty hash")
		}
		if prefix == "" {
			t.Error("GenerateAccessKey() returned empty displayPrefix")
		}
	})

	t.Run("key starts with prefix_", func(t *testing.T) {
		key, _, _, err := GenerateAccessKey("shopcn")
		if err != nil {
			t.Fatalf("GenerateAccessKey() error: %v", err)
		}
		if !strings.HasPrefix(key, "shopcn_") {
			t.Errorf("GenerateAccessKey() key = %q, want prefix %q", key, "shopcn_")
		}
	})

	t.Run("display prefix matches key start", func(t *testing.T) {
		key, _, displayPrefix, err := GenerateAccessKey("shopcn")
		if err != nil {
			t.Fatalf("GenerateAccessKey() error: %v", err)
		}
		if !strings.HasPrefix(key, displayPrefix) {
			t.Errorf("key %q does not start with displayPrefix %q", key, displayPrefix)
		}
	})

	t.Run("display prefix length is capped at DisplayPrefixLength", func(t *testing.T) {
		_, _, displayPrefix, err := GenerateAccessKey("shopcn")
		if err != nil {
			t.Fatalf("GenerateAccessKey() error: %v", err)
		}
		if len(displayPrefix) > DisplayPrefixLength {
			t.Errorf("displayPrefix len = %d, want <= %d", len(displayPrefix), DisplayPrefixLength)
		}
	})

	t.Run("two calls produce different keys", func(t *testing.T) {
		key1, _, _, _ := GenerateAccessKey("shopcn")
		key2, _, _, _ := GenerateAccessKey("shopcn")
		if key1 == key2 {
			t.Error("GenerateAccessKey() produced identical keys on consecutive calls")
		}
	})

	t.Run("cli prefix is preserved", func(t *testing.T) {
		key, _, _, err := GenerateAccessKey("cli")
		if err != nil {
			t.Fatalf("GenerateAccessKey() error: %v", err)
		}
		if !strings.HasPrefix(key, "cli_") {
			t.Errorf("GenerateAccessKey() key = %q, want prefix %q", key, "cli_")
		}
	})
}

func TestValidateAccessKey(t *testing.T) {
	t.Run("correct key validates", func(t *testing.T) {
		key, hash, _, err := GenerateAccessKey("shopcn")
		if err != nil {
			t.Fatalf("GenerateAccessKey() error: %v", err)
		}
		if !ValidateAccessKey(key, hash) {
			t.Error("ValidateAccessKey() returned false for correct key")
		}
	})

	t.Run("wrong key does not validate", func(t *testing.T) {
		_, hash, _, err := GenerateAccessKey("shopcn")
		if err != nil {
			t.Fatalf("GenerateAccessKey() error: %v", err)
		}
		if ValidateAccessKey("shopcn_wrongkey", hash) {
			t.Error("ValidateAccessKey() returned true for wrong key")
		}
	})

	t.Run("empty provided key does not validate", func(t *testing.T) {
		_, hash, _, err := GenerateAccessKey("shopcn")
		if err != nil {
			t.Fatalf("GenerateAccessKey() error: %v", err)
		}
		if ValidateAccessKey("", hash) {
			t.Error("ValidateAccessKey() returned true for empty key")
		}
	})

	t.Run("empty hash does not validate", func(t *testing.T) {
		if ValidateAccessKey("some-key", "") {
			t.Error("ValidateAccessKey() returned true for empty hash")
		}
	})

	t.Run("different key from same prefix does not validate", func(t *testing.T) {
		key1, hash1, _, _ := GenerateAccessKey("shopcn")
		key2, _, _, _ := GenerateAccessKey("shopcn")
		if key1 == key2 {
			t.Skip("generated identical keys, skipping")
		}
		if ValidateAccessKey(key2, hash1) {
			t.Error("ValidateAccessKey() returned true for a key from a different generation")
		}
	})
}

func TestHasKeyPrefix(t *testing.T) {
	tests := []struct {
		name   string
		rawKey string
		prefix string
		want   bool
	}{
		{"install key matches install prefix", "shopcn_abc123", "shopcn", true},
		{"cli key matches cli prefix", "cli_abc123", "cli", true},
		{"cli key does not match install prefix", "cli_abc123", "shopcn", false},
		{"missing underscore", "shopcnabc123", "shopcn", false},
		{"empty key", "", "shopcn", false},
		{"prefix alone without separator", "shopcn", "shopcn", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasKeyPrefix(tt.rawKey, tt.prefix); got != tt.want {
				t.Errorf("HasKeyPrefix(%q, %q) = %v, want %v", tt.rawKey, tt.prefix, got, tt.want)
			}
		})
	}
}

func TestDisplayPrefix(t *testing.T) {
	t.Run("long key is truncated", func(t *testing.T) {
		got := DisplayPrefix("shopcn_abcdefghijklmnop")
		if got != "shopcn_abc" {
			t.Errorf("DisplayPrefix() = %q, want %q", got, "shopcn_abc")
		}
	})

	t.Run("short key returned as-is", func(t *testing.T) {
		got := DisplayPrefix("cli_ab")
		if got != "cli_ab" {
			t.Errorf("DisplayPrefix() = %q, want %q", got, "cli_ab")
		}
	})
}

func TestExtractAccessKeyFromHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid bearer token", "Bearer cli_abc123xyz", "cli_abc123xyz", false},
		{"bearer with extra spaces", "Bearer  cli_abc123 ", "cli_abc123", false},
		{"empty header", "", "", true},
		{"missing Bearer prefix", "cli_abc123", "", true},
		{"Basic auth scheme", "Basic dXNlcjpwYXNz", "", true},
		{"Bearer with no key", "Bearer ", "", true},
		{"Bearer with only spaces", "Bearer    ", "", true},
		{"lowercase bearer rejected", "bearer cli_abc123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractAccessKeyFromHeader(tt.header)
			if (err != nil) != tt.wantErr {
				t.Errorf("ExtractAccessKeyFromHeader(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ExtractAccessKeyFromHeader(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	t.Run("valid password hashes and verifies", func(t *testing.T) {
		hash, err := HashPassword("correct-horse-battery")
		if err != nil {
			t.Fatalf("HashPassword() error: %v", err)
		}
		if !VerifyPassword("correct-horse-battery", hash) {
			t.Error("VerifyPassword() returned false for correct password")
		}
		if VerifyPassword("wrong-password", hash) {
			t.Error("VerifyPassword() returned true for wrong password")
		}
	})

	t.Run("too-short password rejected", func(t *testing.T) {
		if _, err := HashPassword("short"); err == nil {
			t.Error("HashPassword() accepted a 5-character password")
		}
	})

	t.Run("over-72-byte password rejected", func(t *testing.T) {
		long := strings.Repeat("a", 73)
		if _, err := HashPassword(long); err == nil {
			t.Error("HashPassword() accepted a 73-character password")
		}
	})
}
