package token

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

const (
	// sessionTokenBytes gives 256 bits of entropy, 43 chars base64url.
	sessionTokenBytes = 32

	resetCodeMin  = 100000
	resetCodeSpan = 900000
)

// Generator mints session tokens and password-reset codes.
type Generator struct{}

// NewGenerator returns a Generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{}
}

// SessionToken generates a cryptographically secure opaque session token.
func (g *Generator) SessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("token: failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ResetCode generates a 6-digit decimal reset code, uniformly sampled
// over [100000, 999999]. The small space means callers must handle
// collisions among live codes themselves.
func (g *Generator) ResetCode() (string, error) {
	// Rejection sampling keeps the distribution uniform: draw 32 bits,
	// discard draws that fall in the final partial bucket.
	limit := uint32((1 << 32) / resetCodeSpan * resetCodeSpan)
	for {
		var b [4]byte
		if _, err := rand.Read(b[:]); err != nil {
			return "", fmt.Errorf("token: failed to generate reset code: %w", err)
		}
		n := binary.BigEndian.Uint32(b[:])
		if n >= limit {
			continue
		}
		return fmt.Sprintf("%06d", resetCodeMin+n%resetCodeSpan), nil
	}
}
