// Package token handles the client side of the bearer-token lifecycle:
// structural decoding of unverified JWTs and durable storage of the single
// persisted token value. Cryptographic verification is the server's job.
package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultClockSkew pads expiry checks so a token does not expire between
	// the local check and the server receiving the request.
	DefaultClockSkew = 10 * time.Second

	// DefaultRefreshLeeway is how close to expiry a token may get before a
	// preemptive background refresh is issued.
	DefaultRefreshLeeway = 5 * time.Minute
)

// Claims is the unverified claim set extracted from a bearer token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time // zero when the token carries no exp claim
}

var parser = jwt.NewParser()

// StructurallyValid reports whether raw has the three-segment dot-delimited
// JWT shape with no empty segment. It says nothing about the signature.
func StructurallyValid(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// Decode extracts the unverified claims from raw. Any structural or parse
// failure yields nil: a malformed token is indistinguishable from an absent
// one, and callers must not tell them apart.
func Decode(raw string) *Claims {
	if !StructurallyValid(raw) {
		return nil
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return nil
	}
	c := &Claims{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		c.ExpiresAt = claims.ExpiresAt.Time
	}
	return c
}

// IsExpired reports whether raw is unusable as a bearer token: absent,
// undecodable, missing an exp claim, or expiring within skew from now.
func IsExpired(raw string, skew time.Duration) bool {
	c := Decode(raw)
	if c == nil || c.ExpiresAt.IsZero() {
		return true
	}
	return c.ExpiresAt.Before(time.Now().Add(skew))
}

// ExpiringSoon reports whether raw is still valid but within leeway of
// expiry, the window where a preemptive refresh should be issued.
func ExpiringSoon(raw string, leeway time.Duration) bool {
	if IsExpired(raw, DefaultClockSkew) {
		return false
	}
	return TimeToExpiry(raw) <= leeway
}

// TimeToExpiry returns the remaining lifetime of raw, floored at zero.
func TimeToExpiry(raw string) time.Duration {
	c := Decode(raw)
	if c == nil || c.ExpiresAt.IsZero() {
		return 0
	}
	d := time.Until(c.ExpiresAt)
	if d < 0 {
		return 0
	}
	return d
}
