package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mintExpiring(t *testing.T, in time.Duration) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(in)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
