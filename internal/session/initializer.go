package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/workoutbuddy/sessionkit/internal/domain"
	"github.com/workoutbuddy/sessionkit/internal/token"
)

// ProfileFetcher fetches the current user's profile through the request
// pipeline. Implemented by the transport client.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context) (*domain.UserProfile, error)
}

// Initializer runs the startup session restoration exactly once per process:
// read the persisted token, check it locally, fetch the profile, populate the
// session state. The host blocks on Done before serving anything; the gate
// closes on every exit path, success or not.
type Initializer struct {
	mu      sync.Mutex
	started bool

	done     chan struct{}
	doneOnce sync.Once

	state   *State
	store   token.Store
	fetcher ProfileFetcher
	skew    time.Duration
	log     *zap.Logger
}

func NewInitializer(state *State, store token.Store, fetcher ProfileFetcher, skew time.Duration, log *zap.Logger) *Initializer {
	if skew <= 0 {
		skew = token.DefaultClockSkew
	}
	return &Initializer{
		done:    make(chan struct{}),
		state:   state,
		store:   store,
		fetcher: fetcher,
		skew:    skew,
		log:     log,
	}
}

// Done is closed once restoration has settled, however it settled.
func (i *Initializer) Done() <-chan struct{} {
	return i.done
}

// Initializing reports whether restoration is still pending.
func (i *Initializer) Initializing() bool {
	select {
	case <-i.done:
		return false
	default:
		return true
	}
}

// Run executes the restoration sequence. A second call, concurrent or later,
// observes the guard and returns immediately with zero side effects; callers
// that need the outcome wait on Done. Every failure degrades to a cleared,
// logged-out session; nothing here is fatal.
func (i *Initializer) Run(ctx context.Context) {
	i.mu.Lock()
	if i.started {
		i.mu.Unlock()
		return
	}
	i.started = true
	i.mu.Unlock()

	defer i.finish()

	raw, err := i.store.Read(ctx)
	if err != nil {
		i.log.Warn("session restore: token store read failed", zap.Error(err))
		i.state.ClearAuth(ctx)
		return
	}
	if raw == "" {
		i.log.Debug("session restore: no persisted token")
		return
	}

	if token.IsExpired(raw, i.skew) {
		i.log.Info("session restore: persisted token expired")
		i.state.ClearAuth(ctx)
		return
	}

	profile, err := i.fetcher.FetchProfile(ctx)
	if err != nil {
		i.log.Warn("session restore: profile fetch failed", zap.Error(err))
		i.state.ClearAuth(ctx)
		return
	}

	if err := i.state.SetSession(ctx, profile, raw); err != nil {
		i.log.Warn("session restore: token not persisted", zap.Error(err))
	}
	i.log.Info("session restored",
		zap.String("user_id", profile.ID),
		zap.String("username", profile.Username),
	)
}

func (i *Initializer) finish() {
	i.doneOnce.Do(func() {
		i.state.FinishLoading()
		close(i.done)
	})
}
