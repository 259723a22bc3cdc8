package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when the bearer token is not a decodable JWT.
var ErrMalformed = errors.New("malformed token")

// Claims is what the client can learn from its bearer token without the
// server's key.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the token has an expiry that is not after now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Inspect decodes the token payload without verifying the signature. The
// server remains the authority on validity; this only lets the session
// store drop a token that is certainly dead.
func Inspect(raw string) (Claims, error) {
	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(raw, &claims)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	out := Claims{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Issuer signs and verifies HS256 tokens the way the catalog API does:
// the subject carries the username.
type Issuer struct {
	secretKey string
	ttl       time.Duration
}

// NewIssuer creates an issuer with the provided key and token lifetime.
func NewIssuer(secretKey string, ttl time.Duration) *Issuer {
	return &Issuer{secretKey: secretKey, ttl: ttl}
}

// Issue creates a signed token for subject.
func (i *Issuer) Issue(subject string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	})

	tokenString, err := token.SignedString([]byte(i.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Verify validates the signature and expiry and returns the subject.
func (i *Issuer) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(i.secretKey), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("token is invalid")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}
