package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/auth-service/internal/config"
)

// TokenContext identifies which signing context a token belongs to. Each
// context has its own secret; a token signed in one context never verifies
// in another.
type TokenContext string

const (
	ContextAccess  TokenContext = "access"
	ContextRefresh TokenContext = "refresh"
	ContextEmail   TokenContext = "email"
)

// ErrMissingSecret signals that the context's signing secret is absent from
// configuration. Surfaced at call time rather than producing an unsigned token.
var ErrMissingSecret = errors.New("missing signing secret")

// ErrInvalidToken covers malformed, tampered and expired tokens alike.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenPayload is the application-level content embedded in a token.
// Name and Email are only set for access tokens.
type TokenPayload struct {
	Subject string
	Name    string
	Email   string
}

// Claims describes the JWT payload.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates JWT tokens for a single context.
type TokenManager struct {
	context TokenContext
	secret  []byte
	ttl     time.Duration
}

// NewTokenManager builds a manager for one signing context.
func NewTokenManager(context TokenContext, secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{context: context, secret: []byte(secret), ttl: ttl}
}

// Context returns the manager's signing context.
func (tm *TokenManager) Context() TokenContext {
	return tm.context
}

// TTL returns the configured token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Sign builds and signs a token embedding the payload, an expiry claim from
// the context's lifetime and an issued-at claim.
func (tm *TokenManager) Sign(payload TokenPayload) (string, time.Time, error) {
	if len(tm.secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}

	expiresAt := time.Now().Add(tm.ttl)
	claims := &Claims{
		Name:  payload.Name,
		Email: payload.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.Subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify validates the signature against the context's secret and the expiry
// claim against current time. No claims are returned on failure.
func (tm *TokenManager) Verify(tokenStr string) (*Claims, error) {
	if len(tm.secret) == 0 {
		return nil, ErrMissingSecret
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenSet bundles the three independent signing contexts.
type TokenSet struct {
	Access  *TokenManager
	Refresh *TokenManager
	Email   *TokenManager
}

// NewTokenSet builds all three managers from configuration. Missing secrets
// are not an error here; Sign/Verify fail fast per call instead.
func NewTokenSet(cfg config.AuthConfig) *TokenSet {
	return &TokenSet{
		Access:  NewTokenManager(ContextAccess, cfg.AccessSecret, cfg.AccessTokenTTL()),
		Refresh: NewTokenManager(ContextRefresh, cfg.RefreshSecret, cfg.RefreshTokenTTL()),
		Email:   NewTokenManager(ContextEmail, cfg.EmailSecret, cfg.EmailTokenTTL()),
	}
}
