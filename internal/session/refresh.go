package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DefaultRefreshTimeout bounds a single refresh network call.
const DefaultRefreshTimeout = 30 * time.Second

// ErrRefreshTimeout marks a refresh that lost the race against the clock.
// Externally it behaves exactly like any other refresh failure; the distinct
// kind exists for logging and metrics.
var ErrRefreshTimeout = errors.New("token refresh timed out")

// RefreshError wraps a refresh rejected by the server or lost to the network.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// RefreshFunc performs one refresh network call and returns the new access
// token. The transport client supplies it.
type RefreshFunc func(ctx context.Context) (string, error)

type refreshResult struct {
	token string
	err   error
}

// Coordinator deduplicates concurrent refresh demands into exactly one
// in-flight network call. The first caller becomes the leader and runs the
// call; everyone arriving while it is in flight parks on a waiter channel
// and receives the shared outcome. The queue is fully drained on every
// settlement; no waiter survives into a later refresh cycle.
type Coordinator struct {
	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult

	do        RefreshFunc
	state     *State
	timeout   time.Duration
	onFailure func(error)
	log       *zap.Logger

	refreshes metric.Int64Counter
}

// NewCoordinator builds a coordinator. onFailure runs once per failed flight
// and is expected to clear the session and steer the host to its logged-out
// surface; pass nil to skip.
func NewCoordinator(do RefreshFunc, state *State, timeout time.Duration, onFailure func(error), log *zap.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}

	meter := otel.Meter("sessionkit/session")
	refreshes, err := meter.Int64Counter("session_refreshes_total",
		metric.WithDescription("Refresh flights by outcome"))
	if err != nil {
		log.Warn("failed to create refresh counter", zap.Error(err))
	}

	return &Coordinator{
		do:        do,
		state:     state,
		timeout:   timeout,
		onFailure: onFailure,
		log:       log,
		refreshes: refreshes,
	}
}

// Refreshing reports whether a refresh flight is currently outstanding.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Refresh returns a fresh access token, issuing at most one network call no
// matter how many goroutines ask concurrently. A caller whose context ends
// while parked stops waiting with ctx.Err(); the shared flight itself is
// bounded only by the coordinator's own timeout, so one impatient caller
// cannot fail everyone else's refresh.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case r := <-ch:
			return r.token, r.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.refreshing = true
	c.mu.Unlock()

	tok, err := c.flight()

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshResult{token: tok, err: err}
	}

	if err != nil && c.onFailure != nil {
		c.onFailure(err)
	}
	return tok, err
}

// flight runs the single network call with the hard timeout and persists the
// result. It is deliberately detached from any caller's context.
func (c *Coordinator) flight() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	tok, err := c.do(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			c.log.Warn("token refresh timed out", zap.Duration("timeout", c.timeout))
			c.count(ctx, "timeout")
			return "", ErrRefreshTimeout
		}
		c.log.Warn("token refresh failed", zap.Error(err))
		c.count(ctx, "failure")
		return "", &RefreshError{Err: err}
	}

	if serr := c.state.SetAccessToken(ctx, tok); serr != nil {
		// Session continues on the fresh token; only durability suffered.
		c.log.Warn("refreshed token not persisted", zap.Error(serr))
	}

	c.log.Debug("token refreshed")
	c.count(ctx, "success")
	return tok, nil
}

func (c *Coordinator) count(ctx context.Context, outcome string) {
	if c.refreshes == nil {
		return
	}
	c.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
