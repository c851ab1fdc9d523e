package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hongminglow/cardsavvy-be/internal/models"
)

// Claims is the payload carried by a bearer token.
type Claims struct {
	Subject   string `json:"sub"`
	Email     string `json:"email"`
	ExpiresAt int64  `json:"exp"`
}

var _ jwt.Claims = Claims{}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.ExpiresAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error)  { return nil, nil }
func (c Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c Claims) GetIssuer() (string, error)              { return "", nil }
func (c Claims) GetSubject() (string, error)             { return c.Subject, nil }
func (c Claims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }

// ErrIncompleteClaims is returned by Sign when a required claim is missing.
var ErrIncompleteClaims = errors.New("claims require subject, email and expiry")

// TokenManager issues and verifies HS256-signed bearer tokens. It is safe for
// concurrent use; the secret is never mutated after construction.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customises a TokenManager.
type Option func(*TokenManager)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(t *TokenManager) { t.now = now }
}

// NewTokenManager creates a manager with the provided secret and lifetime.
func NewTokenManager(secret string, ttl time.Duration, opts ...Option) *TokenManager {
	t := &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Issue signs a token for user that expires one TTL from now.
func (t *TokenManager) Issue(user models.User) (string, error) {
	return t.Sign(Claims{
		Subject:   user.ID,
		Email:     user.Email,
		ExpiresAt: t.now().Add(t.ttl).Unix(),
	})
}

// Sign encodes claims as header.payload.signature.
func (t *TokenManager) Sign(claims Claims) (string, error) {
	if claims.Subject == "" || claims.Email == "" || claims.ExpiresAt == 0 {
		return "", ErrIncompleteClaims
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify checks the signature and expiry of token. The boolean is false for
// any malformed, tampered or expired token; no partial claims are returned.
func (t *TokenManager) Verify(token string) (Claims, bool) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)

	var claims Claims
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, false
	}
	if claims.Subject == "" {
		return Claims{}, false
	}
	return claims, true
}
