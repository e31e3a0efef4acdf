package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates that an access token failed verification.
var ErrInvalidToken = errors.New("invalid access token")

// AccessClaims are carried by every access token. SID names the
// server-side session so tokens can be revoked before they expire.
type AccessClaims struct {
	Email string `json:"email"`
	SID   string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer returns an issuer for secret. ttl must be positive.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("token secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// TTL is the lifetime of tokens issued by t.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Issue signs a token for identityID bound to session sid.
func (t *TokenIssuer) Issue(identityID, email, sid string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(t.ttl)
	claims := AccessClaims{
		Email: email,
		SID:   sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies token and returns its claims.
func (t *TokenIssuer) Parse(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.SID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
