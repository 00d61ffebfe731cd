package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/workoutbuddy/sessionkit/internal/config"
	"github.com/workoutbuddy/sessionkit/internal/session"
	"github.com/workoutbuddy/sessionkit/internal/token"
	"github.com/workoutbuddy/sessionkit/internal/transport"
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

// newAgentFixture wires a full agent against a fake backend. The returned
// initializer has not been run.
func newAgentFixture(t *testing.T, backend http.Handler, storedToken string) (*Agent, *session.Initializer, *session.State) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	store := token.NewMemoryStore()
	if storedToken != "" {
		require.NoError(t, store.Save(ctx, storedToken))
	}

	log := zap.NewNop()
	state := session.NewState(ctx, store, log)

	client, err := transport.NewClient(transport.Options{BaseURL: server.URL}, state, log)
	require.NoError(t, err)

	init := session.NewInitializer(state, store, client, token.DefaultClockSkew, log)

	cfg := &config.Config{}
	cfg.Agent.Host = "127.0.0.1"
	cfg.Agent.Port = "0"
	cfg.Agent.ReadTimeout = time.Second
	cfg.Agent.WriteTimeout = time.Second

	a := New(cfg, state, client, init, http.NotFoundHandler(), log)
	return a, init, state
}

func backendWithProfile(t *testing.T, expected string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/oauth/me":
			assert.Equal(t, "Bearer "+expected, r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"u-1","email":"buddy@example.com","username":"buddy","auth_provider":"google","is_active":true}`))
		case "/auth/oauth/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})
}

func TestSessionRoutesGatedUntilRestored(t *testing.T) {
	tok := mintExpiring(t, time.Hour)
	a, init, _ := newAgentFixture(t, backendWithProfile(t, tok), tok)

	// Before restoration settles every session route is unavailable.
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// Health stays reachable throughout.
	rec = httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	init.Run(context.Background())
	<-init.Done()

	rec = httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["authenticated"])
}

func TestTokenRouteServesLiveToken(t *testing.T) {
	tok := mintExpiring(t, time.Hour)
	a, init, _ := newAgentFixture(t, backendWithProfile(t, tok), tok)

	init.Run(context.Background())
	<-init.Done()

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/token", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, tok, body["access_token"])
	assert.Greater(t, body["expires_in"].(float64), float64(0))
}

func TestTokenRouteWithoutSession(t *testing.T) {
	a, init, _ := newAgentFixture(t, http.NotFoundHandler(), "")

	init.Run(context.Background())
	<-init.Done()

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/token", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRouteClearsSession(t *testing.T) {
	tok := mintExpiring(t, time.Hour)
	a, init, state := newAgentFixture(t, backendWithProfile(t, tok), tok)

	init.Run(context.Background())
	<-init.Done()
	require.True(t, state.Snapshot().IsAuthenticated)

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/logout", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, state.Snapshot().IsAuthenticated)
}
