package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// sessionTokenBytes is the entropy of a bearer token; hex doubles it to 32 chars.
const sessionTokenBytes = 16

// NewSessionToken returns a random hex bearer token.
func NewSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the hex SHA-256 of token, the only form that is persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
