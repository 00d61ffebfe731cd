// Package agent runs the local session daemon: a localhost HTTP surface that
// other tools query for a live bearer token and session status. Nothing is
// served (beyond health and metrics) until the startup session restoration
// has settled.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/workoutbuddy/sessionkit/internal/config"
	"github.com/workoutbuddy/sessionkit/internal/session"
	"github.com/workoutbuddy/sessionkit/internal/token"
	"github.com/workoutbuddy/sessionkit/internal/transport"
	"github.com/workoutbuddy/sessionkit/pkg/observability"
)

const shutdownTimeout = 5 * time.Second

type Agent struct {
	cfg    *config.Config
	state  *session.State
	client *transport.Client
	init   *session.Initializer
	log    *zap.Logger
	server *http.Server
	router *gin.Engine
}

func New(
	cfg *config.Config,
	state *session.State,
	client *transport.Client,
	init *session.Initializer,
	metricsHandler http.Handler,
	log *zap.Logger,
) *Agent {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	a := &Agent{
		cfg:    cfg,
		state:  state,
		client: client,
		init:   init,
		log:    log,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("sessionkit-agent"))
	router.Use(loggerMiddleware(log))

	router.GET("/healthz", a.handleHealth)
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))

	v1 := router.Group("/v1", a.restorationGate())
	{
		v1.GET("/session", a.handleSession)
		v1.GET("/token", a.handleToken)
		v1.POST("/refresh", a.handleRefresh)
		v1.POST("/logout", a.handleLogout)
	}

	a.router = router
	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Agent.Host, cfg.Agent.Port),
		Handler:      router,
		ReadTimeout:  cfg.Agent.ReadTimeout,
		WriteTimeout: cfg.Agent.WriteTimeout,
	}

	return a
}

func (a *Agent) Router() *gin.Engine {
	return a.router
}

// Run starts the restoration sequence and serves until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	go a.init.Run(ctx)

	errChan := make(chan error, 1)

	go func() {
		a.log.Info("agent starting",
			zap.String("host", a.cfg.Agent.Host),
			zap.String("port", a.cfg.Agent.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		serverErr = err
	case <-ctx.Done():
		a.log.Info("agent stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *Agent) Shutdown() error {
	a.log.Info("agent shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return a.server.Shutdown(ctx)
}

// restorationGate returns 503 until the session initializer has settled.
// No session route is served before restoration completes.
func (a *Agent) restorationGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.init.Initializing() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"detail": "session restoration in progress",
			})
			return
		}
		c.Next()
	}
}

func (a *Agent) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *Agent) handleSession(c *gin.Context) {
	snap := a.state.Snapshot()

	resp := gin.H{
		"authenticated": snap.IsAuthenticated,
		"loading":       snap.IsLoading,
	}
	if snap.User != nil {
		resp["user"] = snap.User
	}
	if snap.Err != "" {
		resp["error"] = snap.Err
	}
	if snap.AccessToken != "" {
		resp["token_expires_in"] = int(token.TimeToExpiry(snap.AccessToken).Seconds())
	}

	c.JSON(http.StatusOK, resp)
}

func (a *Agent) handleToken(c *gin.Context) {
	tok, err := a.client.BearerToken(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "session expired"})
		return
	}
	if tok == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "no active session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": tok,
		"token_type":   "bearer",
		"expires_in":   int(token.TimeToExpiry(tok).Seconds()),
	})
}

func (a *Agent) handleRefresh(c *gin.Context) {
	tok, err := a.client.Refresh(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token refresh failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": tok,
		"token_type":   "bearer",
		"expires_in":   int(token.TimeToExpiry(tok).Seconds()),
	})
}

func (a *Agent) handleLogout(c *gin.Context) {
	ctx := c.Request.Context()

	// Best-effort server logout; local state clears regardless.
	if err := a.client.Logout(ctx); err != nil {
		a.log.Warn("server logout failed", zap.Error(err))
	}
	a.state.ClearAuth(ctx)

	c.Status(http.StatusNoContent)
}
