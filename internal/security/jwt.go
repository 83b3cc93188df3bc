package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrMalformedToken = errors.New("malformed token")

type Claims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// PeekClaims decodes the claims of a JWT without checking its signature.
// The result is for display only; trust decisions belong to the remote
// verification endpoint.
func PeekClaims(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, errors.Join(ErrMalformedToken, err)
	}
	return claims, nil
}

// ExpiresAt reports the exp claim of an opaque credential, if it is a JWT
// carrying one.
func ExpiresAt(raw string) (time.Time, bool) {
	claims, err := PeekClaims(raw)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// TokenIssuer signs and checks HS256 session tokens. The client never holds
// the secret; the issuer backs the fake auth backend used in tests and local
// runs.
type TokenIssuer struct {
	issuer string
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(issuer, secret string) *TokenIssuer {
	return &TokenIssuer{issuer: issuer, secret: []byte(secret), now: time.Now}
}

func (m *TokenIssuer) Sign(subject, sessionID string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *TokenIssuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
