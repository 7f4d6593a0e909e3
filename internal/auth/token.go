package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes the two bearer credentials. Each kind is signed with
// its own secret, and the token_type claim is checked before any other claim,
// so one kind can never be presented where the other is expected.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims are the JWT claims carried by both token kinds. Refresh tokens omit
// role and builder scope so both are re-resolved from storage on refresh.
type Claims struct {
	Username  string  `json:"username"`
	Role      string  `json:"role,omitempty"`
	BuilderID *string `json:"builder_id,omitempty"`
	TokenType string  `json:"token_type"`
	jwt.RegisteredClaims
}

func (s *Service) signToken(account *Account, kind TokenKind, now time.Time) (string, time.Time, error) {
	ttl := s.accessTTL
	secret := s.accessSecret
	claims := Claims{
		Username:  account.Username,
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	switch kind {
	case TokenKindAccess:
		claims.Role = account.Role
		claims.BuilderID = account.BuilderID
	case TokenKindRefresh:
		ttl = s.refreshTTL
		secret = s.refreshSecret
	default:
		return "", time.Time{}, ErrInvalidToken
	}
	exp := now.Add(ttl)
	claims.ExpiresAt = jwt.NewNumericDate(exp)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, expiry and token kind, and returns the decoded
// claims. A refresh token presented where an access token is expected (or the
// reverse) fails with ErrInvalidToken: the signature check already fails
// because the kinds use distinct secrets, and the token_type claim is
// validated as well.
func (s *Service) Verify(token string, expected TokenKind) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	secret := s.accessSecret
	if expected == TokenKindRefresh {
		secret = s.refreshSecret
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != string(expected) {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
