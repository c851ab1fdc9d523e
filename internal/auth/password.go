package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100_000
	saltSize         = 16
	derivedKeySize   = sha256.Size
)

// HashPassword derives a PBKDF2-HMAC-SHA256 key from password with a fresh
// random salt and returns "base64(salt):base64(key)".
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := deriveKey(password, salt)
	return base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(key), nil
}

// VerifyPassword reports whether password matches an encoding produced by
// HashPassword. Malformed encodings never match.
func VerifyPassword(password, encoded string) bool {
	saltB64, keyB64, ok := strings.Cut(encoded, ":")
	if !ok {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return false
	}
	candidate := deriveKey(password, salt)
	return subtle.ConstantTimeCompare(candidate, expected) == 1
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, derivedKeySize, sha256.New)
}
