package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const tokenBytes = 32

// TokenSource issues opaque device credentials. Devices keep the raw
// token; the server stores only its SHA-256 hash, so a database leak
// does not expose usable credentials.
type TokenSource struct{}

// NewTokenSource creates a new TokenSource.
func NewTokenSource() *TokenSource {
	return &TokenSource{}
}

// NewToken generates a fresh random token and returns it alongside its hash.
func (s *TokenSource) NewToken() (raw, hash string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}

	raw = hex.EncodeToString(buf)
	return raw, s.Hash(raw), nil
}

// Hash returns the hex-encoded SHA-256 digest of a raw token.
func (s *TokenSource) Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
