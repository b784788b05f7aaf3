// internal/room/code_test.go
package room

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeAlphabetExcludesConfusables(t *testing.T) {
	for _, c := range "0O1Il" {
		assert.NotContains(t, codeAlphabet, string(c), "alphabet must not contain %q", c)
	}
	assert.Equal(t, 32, len(codeAlphabet))
}

func TestRandomCodeShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := randomCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, c := range code {
			assert.Contains(t, codeAlphabet, string(c))
		}
	}
}

func TestGenerateCodeRetriesOnCollision(t *testing.T) {
	// Reject the first few draws; the generator must keep retrying until it
	// finds a free code.
	rejected := 0
	code, err := generateCode(0, func(string) bool {
		if rejected < 5 {
			rejected++
			return true
		}
		return false
	})
	require.NoError(t, err)
	assert.Len(t, code, CodeLength)
	assert.Equal(t, 5, rejected)
}

func TestGenerateCodeExhaustion(t *testing.T) {
	_, err := generateCode(codeSpaceSize, func(string) bool { return true })
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)

	// A space that is dense enough to defeat the bounded retry loop is also
	// treated as exhaustion.
	_, err = generateCode(0, func(string) bool { return true })
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "AB2CD3", NormalizeCode("ab2cd3"))
	assert.Equal(t, "AB2CD3", NormalizeCode("  Ab2Cd3 "))
	assert.Equal(t, strings.ToUpper("xyzxyz"), NormalizeCode("xyzxyz"))
}
