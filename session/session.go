// Package session issues and verifies the signed tokens a browser
// presents in place of the real credential. Tokens are compact JWS
// (HS256) carrying only non-secret metadata about the validated key —
// never the key itself or its encrypted blob, so a replayed token alone
// cannot reconstruct the secret.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TTL is the absolute session lifetime.
const TTL = 24 * time.Hour

var (
	// ErrInvalid covers structurally broken or wrongly signed tokens.
	ErrInvalid = errors.New("session: invalid token")
	// ErrExpired is returned for well-signed but expired tokens so the
	// HTTP layer can proactively clear the cookie pair.
	ErrExpired = errors.New("session: token expired")
)

// NowFunc returns the current time. It can be overridden in tests.
var NowFunc = time.Now

// Claims is the token payload.
type Claims struct {
	HasValidKey bool   `json:"hasValidKey"`
	KeyType     string `json:"keyType"`
	KeyLength   int    `json:"keyLength"`
	// ExpiresAt duplicates the registered exp claim in epoch
	// milliseconds and is re-checked on verify as defense in depth.
	ExpiresAt int64 `json:"expiresAt"`
	jwt.RegisteredClaims
}

// Session is the verified, non-secret view of a token.
type Session struct {
	KeyType   string
	KeyLength int
	ExpiresAt time.Time
}

// Service signs and verifies session tokens with a symmetric secret held
// in a memguard Enclave. The signing secret is distinct from the
// envelope master secret.
type Service struct {
	secret *memguard.Enclave
}

// NewService wraps the signing secret in an Enclave. The caller's slice
// is wiped by memguard as part of sealing.
func NewService(signingSecret []byte) *Service {
	return &Service{secret: memguard.NewEnclave(signingSecret)}
}

// Issue creates a signed token for a freshly validated key.
func (s *Service) Issue(keyType string, keyLength int) (string, error) {
	now := NowFunc()
	expiresAt := now.Add(TTL)

	claims := Claims{
		HasValidKey: true,
		KeyType:     keyType,
		KeyLength:   keyLength,
		ExpiresAt:   expiresAt.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}

	buf, err := s.secret.Open()
	if err != nil {
		return "", fmt.Errorf("opening signing secret: %w", err)
	}
	defer buf.Destroy()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry. The signature is validated before
// any claim is interpreted; claims of an unverified token are never
// acted upon. Expired tokens return ErrExpired, everything else that is
// not a valid live token returns ErrInvalid.
func (s *Service) Verify(raw string) (*Session, error) {
	if raw == "" {
		return nil, ErrInvalid
	}

	buf, err := s.secret.Open()
	if err != nil {
		return nil, fmt.Errorf("opening signing secret: %w", err)
	}
	defer buf.Destroy()

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(NowFunc),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return buf.Bytes(), nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case err != nil, !token.Valid:
		return nil, ErrInvalid
	}

	if !claims.HasValidKey {
		return nil, ErrInvalid
	}

	// Defensive re-check of the duplicated expiry claim: a token whose
	// exp and expiresAt disagree is treated as expired rather than
	// trusted on the later of the two.
	expiresAt := time.UnixMilli(claims.ExpiresAt)
	if !NowFunc().Before(expiresAt) {
		return nil, ErrExpired
	}

	return &Session{
		KeyType:   claims.KeyType,
		KeyLength: claims.KeyLength,
		ExpiresAt: expiresAt,
	}, nil
}
