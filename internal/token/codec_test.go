package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func mintExpiring(t *testing.T, in time.Duration) string {
	return mintToken(t, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(in)),
	})
}

func TestStructurallyValid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"well-formed", "aaa.bbb.ccc", true},
		{"real token", mintExpiring(t, time.Hour), true},
		{"empty", "", false},
		{"two segments", "aaa.bbb", false},
		{"four segments", "a.b.c.d", false},
		{"empty middle segment", "aaa..ccc", false},
		{"empty trailing segment", "aaa.bbb.", false},
		{"no dots", "aaabbbccc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StructurallyValid(tt.raw))
		})
	}
}

func TestDecode(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := mintToken(t, jwt.RegisteredClaims{
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(exp),
	})

	claims := Decode(raw)
	require.NotNil(t, claims)
	assert.Equal(t, "user-42", claims.Subject)
	assert.WithinDuration(t, exp, claims.ExpiresAt, time.Second)
}

func TestDecodeNoExpClaim(t *testing.T) {
	raw := mintToken(t, jwt.RegisteredClaims{Subject: "user-1"})

	claims := Decode(raw)
	require.NotNil(t, claims)
	assert.True(t, claims.ExpiresAt.IsZero())
}

func TestDecodeMalformed(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	notJSON := base64.RawURLEncoding.EncodeToString([]byte(`not json at all`))

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "garbage"},
		{"two segments", "aaa.bbb"},
		{"payload not base64url", header + ".!!!.sig"},
		{"payload not json", header + "." + notJSON + ".sig"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Decode(tt.raw))
		})
	}
}

func TestIsExpired(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"valid for an hour", mintExpiring(t, time.Hour), false},
		{"already expired", mintExpiring(t, -time.Minute), true},
		{"inside the skew window", mintExpiring(t, 5*time.Second), true},
		{"no exp claim", mintToken(t, jwt.RegisteredClaims{Subject: "u"}), true},
		{"absent", "", true},
		{"malformed", "a.b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExpired(tt.raw, DefaultClockSkew))
		})
	}
}

func TestExpiringSoon(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"far from expiry", mintExpiring(t, time.Hour), false},
		{"inside the leeway window", mintExpiring(t, 2*time.Minute), true},
		{"already expired", mintExpiring(t, -time.Minute), false},
		{"malformed", "nope", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpiringSoon(tt.raw, DefaultRefreshLeeway))
		})
	}
}

func TestTimeToExpiry(t *testing.T) {
	assert.InDelta(t, time.Hour, TimeToExpiry(mintExpiring(t, time.Hour)), float64(5*time.Second))
	assert.Equal(t, time.Duration(0), TimeToExpiry(mintExpiring(t, -time.Minute)))
	assert.Equal(t, time.Duration(0), TimeToExpiry(""))
	assert.Equal(t, time.Duration(0), TimeToExpiry("a.b.c"))
}
