package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

const tokenIssuer = "meridian"

type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies the compact session-bound credential handed
// to callers after login. Tokens are HS256 JWTs whose ID claim carries the
// session id; decoding alone never authorizes anything, the session must
// still exist.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec constructs a codec from the shared signing secret.
func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret)}
}

// Encode signs claims with the given lifetime.
func (c *TokenCodec) Encode(claims Claims, ttl time.Duration) (string, error) {
	if claims.SessionID == "" {
		return "", errors.New("auth: session id required")
	}
	if ttl <= 0 {
		return "", errors.New("auth: ttl must be positive")
	}
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Email: claims.Email,
		Role:  claims.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(claims.IdentityID, 10),
			ID:        claims.SessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(c.secret)
}

// Decode verifies the signature and expiry, returning the embedded claims.
// Any failure maps to shared.ErrSessionInvalid.
func (c *TokenCodec) Decode(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, shared.ErrSessionInvalid
	}
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, shared.ErrSessionInvalid
		}
		return c.secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return Claims{}, shared.ErrSessionInvalid
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, shared.ErrSessionInvalid
	}
	identityID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Claims{}, shared.ErrSessionInvalid
	}
	return Claims{
		SessionID:  claims.ID,
		IdentityID: identityID,
		Email:      claims.Email,
		Role:       claims.Role,
	}, nil
}
