// internal/auth/password_test.go
package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testParams keeps the KDF cheap so the suite stays fast.
var testParams = &Argon2Params{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func TestHashAndCompare(t *testing.T) {
	h := NewArgon2Hasher(testParams)

	encoded, err := h.Hash("secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))
	assert.NotContains(t, encoded, "secret", "plaintext must not appear in the encoding")

	match, err := h.Compare("secret", encoded)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = h.Compare("wrong", encoded)
	require.NoError(t, err)
	assert.False(t, match)
}

func TestHashesAreSalted(t *testing.T) {
	h := NewArgon2Hasher(testParams)

	a, err := h.Hash("secret")
	require.NoError(t, err)
	b, err := h.Hash("secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "same password must hash differently under fresh salts")
}

func TestCompareRejectsMalformedHash(t *testing.T) {
	h := NewArgon2Hasher(testParams)

	_, err := h.Compare("secret", "not-an-encoded-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = h.Compare("secret", "$bcrypt$v=19$m=8192,t=1,p=1$AAAA$BBBB")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestCompareUsesParamsFromHash(t *testing.T) {
	// A hash produced under one parameter set must verify under a hasher
	// configured with another: the encoding is self-describing.
	producer := NewArgon2Hasher(testParams)
	encoded, err := producer.Hash("secret")
	require.NoError(t, err)

	verifier := NewArgon2Hasher(nil)
	match, err := verifier.Compare("secret", encoded)
	require.NoError(t, err)
	assert.True(t, match)
}

func TestDefaultParams(t *testing.T) {
	h := NewArgon2Hasher(nil)
	assert.Equal(t, DefaultArgon2Params, h.params)
	assert.GreaterOrEqual(t, int(DefaultArgon2Params.Parallelism), 1)
}
