// internal/room/code.go
package room

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// codeAlphabet excludes visually confusable characters (0/O, 1/I): 32 glyphs
// over 6 positions gives 32^6 ≈ 1.07e9 combinations, so collisions against a
// realistic active-room set are vanishingly rare.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the fixed length of a room code.
const CodeLength = 6

// codeSpaceSize is the total number of distinct codes (len(codeAlphabet)^CodeLength).
var codeSpaceSize = func() int {
	n := 1
	for i := 0; i < CodeLength; i++ {
		n *= len(codeAlphabet)
	}
	return n
}()

// maxCodeAttempts bounds the collision-retry loop. With the space pre-checked
// for exhaustion, exceeding this many collisions means the active set is
// dense enough to treat as a capacity alarm.
const maxCodeAttempts = 100

// randomCode draws one uniformly random code from the alphabet.
func randomCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	var b strings.Builder
	b.Grow(CodeLength)
	for _, c := range buf {
		b.WriteByte(codeAlphabet[int(c)%len(codeAlphabet)])
	}
	return b.String(), nil
}

// generateCode produces a code not currently assigned to any active room.
// inUse is consulted under whatever lock the caller commits the code under,
// so two concurrent creates can never be handed the same code. Returns
// ErrCodeSpaceExhausted only when the active set has consumed the space (or
// is so dense the bounded retry loop can't find a free code).
func generateCode(activeCount int, inUse func(string) bool) (string, error) {
	if activeCount >= codeSpaceSize {
		return "", ErrCodeSpaceExhausted
	}
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if !inUse(code) {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// NormalizeCode canonicalizes a human-typed code for lookup: codes are stored
// and matched upper-case.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
