package auth

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenInvalid   = errors.New("token is invalid")
)

// Claims carries the registered claims plus "prv", a fingerprint of the
// subject provider the token was issued for.
type Claims struct {
	Fingerprint string `json:"prv"`
	jwt.RegisteredClaims
}

type Token struct {
	Value     string
	ID        string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenConfig struct {
	Secret          string
	TTL             time.Duration
	RefreshTTL      time.Duration
	Issuer          string
	SubjectProvider string
}

type TokenManager struct {
	secret      []byte
	ttl         time.Duration
	refreshTTL  time.Duration
	issuer      string
	fingerprint string
	now         func() time.Time
}

type Option func(*TokenManager)

func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) {
		m.now = now
	}
}

func NewTokenManager(cfg TokenConfig, opts ...Option) (*TokenManager, error) {
	const op = "auth.NewTokenManager"

	if cfg.Secret == "" {
		return nil, fmt.Errorf("%s: empty secret", op)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%s: ttl must be positive", op)
	}

	m := &TokenManager{
		secret:      []byte(cfg.Secret),
		ttl:         cfg.TTL,
		refreshTTL:  cfg.RefreshTTL,
		issuer:      cfg.Issuer,
		fingerprint: Fingerprint(cfg.SubjectProvider),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Fingerprint returns the "prv" claim value for a subject provider name.
func Fingerprint(provider string) string {
	sum := sha1.Sum([]byte(provider))
	return hex.EncodeToString(sum[:])
}

func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

func (m *TokenManager) Issue(subject string) (Token, error) {
	const op = "auth.Issue"

	now := m.now()
	claims := &Claims{
		Fingerprint: m.fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, fmt.Errorf("%s: %w", op, err)
	}

	return Token{
		Value:     signed,
		ID:        claims.ID,
		Subject:   subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Parse verifies signature, issuer, fingerprint and lifetime of raw.
func (m *TokenManager) Parse(raw string) (*Claims, error) {
	return m.parse(raw, false)
}

// ParseForRefresh is Parse, except that a token past its expiry is still
// accepted while it is inside the refresh window.
func (m *TokenManager) ParseForRefresh(raw string) (*Claims, error) {
	return m.parse(raw, true)
}

// BlacklistUntil is the instant after which a blacklist entry for c is no
// longer needed: the later of its expiry and the end of its refresh window.
func (m *TokenManager) BlacklistUntil(c *Claims) time.Time {
	until := c.ExpiresAt.Time
	if m.refreshTTL > 0 && c.IssuedAt != nil {
		if window := c.IssuedAt.Add(m.refreshTTL); window.After(until) {
			until = window
		}
	}
	return until
}

func (m *TokenManager) parse(raw string, allowExpired bool) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(raw, claims, m.keyFunc, opts...); err != nil {
		return nil, mapParseError(err)
	}

	if allowExpired {
		if err := m.validateRefreshable(claims); err != nil {
			return nil, err
		}
	}

	if claims.Fingerprint != m.fingerprint || claims.ID == "" || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (m *TokenManager) keyFunc(*jwt.Token) (any, error) {
	return m.secret, nil
}

func (m *TokenManager) validateRefreshable(c *Claims) error {
	now := m.now()

	if c.Issuer != m.issuer || c.ExpiresAt == nil || c.IssuedAt == nil {
		return ErrTokenInvalid
	}
	if c.IssuedAt.After(now) || (c.NotBefore != nil && c.NotBefore.After(now)) {
		return ErrTokenInvalid
	}
	if now.Before(c.ExpiresAt.Time) {
		return nil
	}
	if m.refreshTTL > 0 && now.Before(c.IssuedAt.Add(m.refreshTTL)) {
		return nil
	}

	return ErrTokenExpired
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}
