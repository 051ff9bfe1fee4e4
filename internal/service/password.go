package service

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for every newly stored credential.
const BcryptCost = 10

// PasswordFormat names how a stored credential is encoded.
type PasswordFormat int

const (
	FormatBcrypt PasswordFormat = iota
	// FormatLegacyPlaintext is a credential migrated from the old register
	// database before hashing was introduced.
	FormatLegacyPlaintext
)

func (f PasswordFormat) String() string {
	if f == FormatBcrypt {
		return "bcrypt"
	}
	return "legacy_plaintext"
}

// ClassifyPassword reports the format of a stored credential.
func ClassifyPassword(stored string) PasswordFormat {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(stored, prefix) {
			return FormatBcrypt
		}
	}
	return FormatLegacyPlaintext
}

// PasswordVerifier checks secrets against stored credentials.
type PasswordVerifier struct {
	allowLegacy bool
}

func NewPasswordVerifier(allowLegacyPlaintext bool) *PasswordVerifier {
	return &PasswordVerifier{allowLegacy: allowLegacyPlaintext}
}

// Verify reports whether plaintext matches stored and whether the stored
// value should be rehashed. A bcrypt mismatch never falls back to a
// plaintext comparison.
func (v *PasswordVerifier) Verify(stored, plaintext string) (ok bool, needsUpgrade bool) {
	switch ClassifyPassword(stored) {
	case FormatBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plaintext)) == nil, false
	default:
		if !v.allowLegacy || stored == "" {
			return false, false
		}
		match := subtle.ConstantTimeCompare([]byte(stored), []byte(plaintext)) == 1
		return match, match
	}
}

// HashPassword hashes plaintext with bcrypt at BcryptCost.
func HashPassword(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}
