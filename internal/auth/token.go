package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access tokens from refresh tokens. Each is only
// accepted at its own endpoints.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

const tokenIssuer = "billus-server"

// Claims is the JWT payload. Subject carries the principal id.
type Claims struct {
	Kind Kind      `json:"kind"`
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

// TokenPair is one issued access/refresh pair. RefreshJTI identifies the
// refresh token in the rotation store.
type TokenPair struct {
	Access     string
	Refresh    string
	RefreshJTI string
	ExpiresIn  int64
}

// TokenManager signs and validates HS256 tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (m *TokenManager) WithNow(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// RefreshTTL exposes the refresh lifetime so the rotation store can match
// its redis TTL to the token's.
func (m *TokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

// GeneratePair issues a fresh access/refresh pair for the principal.
func (m *TokenManager) GeneratePair(principal Principal) (TokenPair, error) {
	access, _, err := m.sign(principal, TokenAccess, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, jti, err := m.sign(principal, TokenRefresh, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		Access:     access,
		Refresh:    refresh,
		RefreshJTI: jti,
		ExpiresIn:  int64(m.accessTTL.Seconds()),
	}, nil
}

func (m *TokenManager) sign(principal Principal, typ TokenType, ttl time.Duration) (string, string, error) {
	now := m.now()
	jti := uuid.NewString()
	claims := Claims{
		Kind: principal.Kind,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.ID.String(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// Validate parses the token, checks the signature and expiry, and
// requires the expected token type. It returns the principal and the
// token's jti.
func (m *TokenManager) Validate(tokenString string, want TokenType) (Principal, string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, "", ErrExpiredToken
		}
		return Principal{}, "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Principal{}, "", ErrInvalidToken
	}
	if claims.Type != want || !claims.Kind.Valid() {
		return Principal{}, "", ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, "", ErrInvalidToken
	}
	return Principal{ID: id, Kind: claims.Kind}, claims.ID, nil
}
