// Package transport is the HTTP request pipeline between the session engine
// and the Workout Buddy backend. Every outbound call gets the bearer token
// attached, expired tokens are refreshed before sending, a 401 triggers one
// refresh-then-replay, and network-level failures are retried with
// exponential backoff.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/workoutbuddy/sessionkit/internal/domain"
	"github.com/workoutbuddy/sessionkit/internal/session"
	"github.com/workoutbuddy/sessionkit/internal/token"
)

const (
	DefaultBaseURL = "http://localhost:7001/api/v1"

	mePath      = "/auth/oauth/me"
	refreshPath = "/auth/oauth/refresh"
	logoutPath  = "/auth/oauth/logout"

	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
)

// Options configures the client. Zero values fall back to the defaults the
// backend contract assumes.
type Options struct {
	BaseURL        string
	RequestTimeout time.Duration // per-attempt HTTP timeout
	RetryMax       int           // network-level retries after the first attempt
	RetryBaseDelay time.Duration // backoff base, doubled per attempt
	ClockSkew      time.Duration
	RefreshLeeway  time.Duration
	RefreshTimeout time.Duration
	// OnAuthFailure runs after a failed refresh, once the session has been
	// cleared. Hosts hook their logged-out transition here.
	OnAuthFailure func(error)
	// HTTPClient overrides the underlying client; tests inject transports
	// here. A cookie jar is installed if the client has none.
	HTTPClient *http.Client
}

// Client is the request pipeline. All methods are safe for concurrent use.
type Client struct {
	base  *url.URL
	http  *http.Client
	state *session.State
	coord *session.Coordinator
	log   *zap.Logger

	skew           time.Duration
	leeway         time.Duration
	retryMax       int
	retryBaseDelay time.Duration

	retries metric.Int64Counter
	replays metric.Int64Counter
}

// NewClient builds the pipeline around the given session state. The refresh
// coordinator is owned by the client: its network leg is the client's own
// refresh call, and its failure path clears the session before invoking
// opts.OnAuthFailure.
func NewClient(opts Options, state *session.State, log *zap.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Timeout == 0 {
		if opts.RequestTimeout > 0 {
			httpClient.Timeout = opts.RequestTimeout
		} else {
			httpClient.Timeout = 15 * time.Second
		}
	}
	if httpClient.Jar == nil {
		// The refresh token lives in an httpOnly cookie; the jar carries it.
		jar, jerr := cookiejar.New(nil)
		if jerr != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", jerr)
		}
		httpClient.Jar = jar
	}

	if opts.ClockSkew <= 0 {
		opts.ClockSkew = token.DefaultClockSkew
	}
	if opts.RefreshLeeway <= 0 {
		opts.RefreshLeeway = token.DefaultRefreshLeeway
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 500 * time.Millisecond
	}

	meter := otel.Meter("sessionkit/transport")
	retries, merr := meter.Int64Counter("transport_retries_total",
		metric.WithDescription("Network-level request retries"))
	if merr != nil {
		log.Warn("failed to create retry counter", zap.Error(merr))
	}
	replays, merr := meter.Int64Counter("transport_replays_total",
		metric.WithDescription("Requests replayed after a 401-triggered refresh"))
	if merr != nil {
		log.Warn("failed to create replay counter", zap.Error(merr))
	}

	c := &Client{
		base:           base,
		http:           httpClient,
		state:          state,
		log:            log,
		skew:           opts.ClockSkew,
		leeway:         opts.RefreshLeeway,
		retryMax:       opts.RetryMax,
		retryBaseDelay: opts.RetryBaseDelay,
		retries:        retries,
		replays:        replays,
	}

	onFailure := func(err error) {
		c.state.ClearAuth(context.Background())
		if opts.OnAuthFailure != nil {
			opts.OnAuthFailure(err)
		}
	}
	c.coord = session.NewCoordinator(c.refreshCall, state, opts.RefreshTimeout, onFailure, log)

	return c, nil
}

// BearerToken returns a token ready to authorize a request, applying the
// same pre-send policy the pipeline applies: a blocking refresh when the
// token is expired, a detached preemptive refresh when it is close. Returns
// "" when the session holds no token.
func (c *Client) BearerToken(ctx context.Context) (string, error) {
	return c.outboundToken(ctx)
}

// Refresh forces a token refresh through the coordinator.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.coord.Refresh(ctx)
}

// FetchProfile retrieves and validates the current user's profile.
func (c *Client) FetchProfile(ctx context.Context) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	if err := c.doJSON(ctx, http.MethodGet, mePath, nil, &profile); err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("malformed profile payload: %w", err)
	}
	return &profile, nil
}

// Logout tells the backend to drop the session. Best effort: the caller
// clears local state regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, logoutPath, nil, nil)
}

// LoginURL returns the browser entry point for the provider's OAuth flow.
func (c *Client) LoginURL(provider domain.AuthProvider) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/auth/oauth/" + string(provider) + "/login"
	return u.String()
}

// refreshCall is the coordinator's network leg: POST the refresh endpoint
// with no body, authenticated by the httpOnly cookie alone.
func (c *Client) refreshCall(ctx context.Context) (string, error) {
	resp, err := c.send(ctx, http.MethodPost, refreshPath, nil, "", true)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apiErrorFrom(resp)
	}
	defer resp.Body.Close()

	var body domain.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("malformed refresh response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("refresh response missing access_token")
	}
	return body.AccessToken, nil
}

// doJSON runs the full pipeline for one logical request and decodes a JSON
// response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	tok, err := c.outboundToken(ctx)
	if err != nil {
		return err
	}

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	resp, err := c.send(ctx, method, path, body, tok, false)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		newTok, rerr := c.coord.Refresh(ctx)
		if rerr != nil {
			// The coordinator already cleared the session.
			return rerr
		}
		c.count(ctx, c.replays)
		c.log.Debug("replaying request after refresh",
			zap.String("method", method), zap.String("path", path))
		resp, err = c.send(ctx, method, path, body, newTok, false)
		if err != nil {
			return err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiErrorFrom(resp)
	}

	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("malformed response payload: %w", err)
	}
	return nil
}

// outboundToken applies the pre-send token policy: absent sends
// unauthenticated, expired blocks on a refresh, expiring-soon uses the
// current token and kicks off a detached background refresh.
func (c *Client) outboundToken(ctx context.Context) (string, error) {
	tok := c.state.AccessToken()
	switch {
	case tok == "":
		return "", nil
	case token.IsExpired(tok, c.skew):
		newTok, err := c.coord.Refresh(ctx)
		if err != nil {
			return "", err
		}
		return newTok, nil
	case token.ExpiringSoon(tok, c.leeway):
		go func() {
			// Intentional fire-and-forget: the foreground request keeps the
			// still-valid token; a failed preemptive refresh is only logged.
			if _, err := c.coord.Refresh(context.Background()); err != nil {
				c.log.Warn("preemptive token refresh failed", zap.Error(err))
			}
		}()
		return tok, nil
	default:
		return tok, nil
	}
}

// send issues one request attempt, retrying network-level failures (no HTTP
// response at all) with exponential backoff. HTTP error statuses are never
// retried here. Requests with a body are not retried: they may not be
// idempotent and nothing in this contract carries one.
func (c *Client) send(ctx context.Context, method, path string, body []byte, tok string, isRefresh bool) (*http.Response, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path

	attempt := 0
	var resp *http.Response
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())
		if len(body) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}
		if tok != "" && !isRefresh {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		c.attachCSRF(req)

		if attempt > 0 {
			c.count(ctx, c.retries)
			c.log.Debug("retrying request",
				zap.String("method", method), zap.String("path", path), zap.Int("attempt", attempt))
		}
		attempt++

		r, err := c.http.Do(req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	maxRetries := uint64(c.retryMax)
	if len(body) > 0 {
		maxRetries = 0
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryBaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// attachCSRF mirrors the csrf_token cookie into the CSRF header when the jar
// holds one. An absent cookie means no header, never an error.
func (c *Client) attachCSRF(req *http.Request) {
	if c.http.Jar == nil {
		return
	}
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == csrfCookieName {
			req.Header.Set(csrfHeaderName, ck.Value)
			return
		}
	}
}

func (c *Client) count(ctx context.Context, counter metric.Int64Counter) {
	if counter != nil {
		counter.Add(ctx, 1)
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
}
