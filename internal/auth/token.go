package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// Claims describes the parts of the backend's JWT payload the client reads.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenInspector reads bearer tokens issued by the backend. The client does
// not hold the signing key, so tokens are parsed without verification and
// the result is only used to avoid sending credentials known to be expired.
type TokenInspector struct {
	parser *jwt.Parser
	clock  clockwork.Clock
	leeway time.Duration
}

// NewTokenInspector builds an inspector. A nil clock uses the real clock.
func NewTokenInspector(clock clockwork.Clock, leeway time.Duration) *TokenInspector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenInspector{parser: jwt.NewParser(), clock: clock, leeway: leeway}
}

// Inspect decodes the token's claims.
func (ti *TokenInspector) Inspect(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, errors.New("empty token")
	}
	claims := &Claims{}
	if _, _, err := ti.parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ExpiresAt returns the token's expiry when it is a JWT carrying one.
func (ti *TokenInspector) ExpiresAt(tokenStr string) (time.Time, bool) {
	claims, err := ti.Inspect(tokenStr)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether the token carries an expiry that has passed.
// Opaque tokens and tokens without exp are never considered expired; the
// backend stays the authority on those.
func (ti *TokenInspector) Expired(tokenStr string) bool {
	exp, ok := ti.ExpiresAt(tokenStr)
	if !ok {
		return false
	}
	return !ti.clock.Now().Before(exp.Add(ti.leeway))
}
