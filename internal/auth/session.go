// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer signs and verifies session tokens carrying a participant
// identity. Keys are generated fresh at construction: sessions are as
// short-lived as the rooms they join, so nothing needs to survive a restart.
type TokenIssuer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	ttl  time.Duration
}

// NewTokenIssuer generates an ed25519 key pair and returns an issuer whose
// tokens expire after ttl. A ttl of 0 means tokens never expire.
func NewTokenIssuer(ttl time.Duration) (*TokenIssuer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key pair: %w", err)
	}
	return &TokenIssuer{priv: priv, pub: pub, ttl: ttl}, nil
}

// Issue creates a signed JWT with "sub" set to the participant id.
func (ti *TokenIssuer) Issue(participantID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub": participantID.String(),
	}
	if ti.ttl > 0 {
		claims["exp"] = time.Now().Add(ti.ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(ti.priv)
}

// Verify parses and validates a token string and returns the participant id
// from its "sub" claim.
func (ti *TokenIssuer) Verify(tokenString string) (uuid.UUID, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ti.pub, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid jwt claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("missing sub in jwt")
	}

	participantID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed participant id in jwt: %w", err)
	}
	return participantID, nil
}
