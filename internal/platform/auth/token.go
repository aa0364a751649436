package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the bearer token validity window. Tokens are not refreshed;
// clients re-authenticate after expiry.
const TokenTTL = 30 * 24 * time.Hour

// Issuer signs bearer tokens with an HMAC key.
type Issuer struct {
	signingKey []byte
	ttl        time.Duration
}

func NewIssuer(signingKey []byte) *Issuer {
	return &Issuer{signingKey: signingKey, ttl: TokenTTL}
}

// Issue signs a token carrying the user's id, role, and tracking id.
func (i *Issuer) Issue(userID, role, medTrackID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Role:       role,
		MedTrackID: medTrackID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
