// Package session owns the client-resident session lifecycle: the observable
// session state, the single-flight refresh coordinator, and the startup
// restoration sequence.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/workoutbuddy/sessionkit/internal/domain"
	"github.com/workoutbuddy/sessionkit/internal/token"
)

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	User            *domain.UserProfile
	AccessToken     string
	IsAuthenticated bool
	IsLoading       bool
	Err             string
}

// State is the single source of truth for session data. IsAuthenticated is
// true iff a profile was set via SetUser or SetSession and not cleared since;
// holding an unexpired token alone never authenticates.
//
// All mutations are synchronous and immediately observable through Snapshot.
// Subscribers receive best-effort snapshot notifications; a slow subscriber
// sees the latest state, not every intermediate one.
type State struct {
	mu    sync.Mutex
	snap  Snapshot
	store token.Store
	subs  map[chan Snapshot]struct{}
	log   *zap.Logger
}

// NewState builds the state with the access token pre-read from the store.
// A structurally invalid stored token is healed by the store's read and shows
// up here as absent. The session starts unauthenticated and loading.
func NewState(ctx context.Context, store token.Store, log *zap.Logger) *State {
	s := &State{
		store: store,
		subs:  make(map[chan Snapshot]struct{}),
		log:   log,
	}

	tok, err := store.Read(ctx)
	if err != nil {
		log.Warn("failed to read persisted token", zap.Error(err))
	}
	s.snap = Snapshot{AccessToken: tok, IsLoading: true}
	return s
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// AccessToken returns the current bearer token, "" when absent.
func (s *State) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.AccessToken
}

// Subscribe registers a channel that receives a snapshot after every
// mutation. The channel is buffered; stale intermediate snapshots are
// replaced rather than queued.
func (s *State) Subscribe() chan Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Snapshot, 1)
	s.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a channel registered with Subscribe.
func (s *State) Unsubscribe(ch chan Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, ch)
}

// notifyLocked publishes the current snapshot. Callers hold s.mu.
func (s *State) notifyLocked() {
	for ch := range s.subs {
		select {
		case ch <- s.snap:
		default:
			// Drop the stale snapshot and push the latest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s.snap:
			default:
			}
		}
	}
}

// SetUser installs the fetched profile. This is the only mutation besides
// SetSession that may flip IsAuthenticated to true. The profile replaces any
// previous one wholesale and any prior error is cleared.
func (s *State) SetUser(profile *domain.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.User = profile
	s.snap.IsAuthenticated = true
	s.snap.Err = ""
	s.notifyLocked()
}

// SetAccessToken persists the token and installs it as the current bearer
// token. It never touches IsAuthenticated. A persistence failure is returned
// but the in-memory token is updated regardless: the live session keeps
// working, only durability across restarts is lost.
func (s *State) SetAccessToken(ctx context.Context, tok string) error {
	err := s.store.Save(ctx, tok)
	if err != nil {
		s.log.Warn("failed to persist access token", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.AccessToken = tok
	s.snap.Err = ""
	s.notifyLocked()
	return err
}

// SetSession installs profile and token in one atomic transition, so no
// observer can see an authenticated session holding a stale token. Used by
// the restoration sequence; completes loading.
func (s *State) SetSession(ctx context.Context, profile *domain.UserProfile, tok string) error {
	err := s.store.Save(ctx, tok)
	if err != nil {
		s.log.Warn("failed to persist access token", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{
		User:            profile,
		AccessToken:     tok,
		IsAuthenticated: true,
	}
	s.notifyLocked()
	return err
}

// SetError records an error message and halts any loading indicator.
func (s *State) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Err = msg
	s.snap.IsLoading = false
	s.notifyLocked()
}

// ClearAuth removes the persisted token and resets every field to its zero
// value. Calling it on an already-clear session is a no-op.
func (s *State) ClearAuth(ctx context.Context) {
	if err := s.store.Remove(ctx); err != nil {
		s.log.Warn("failed to remove persisted token", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{}
	s.notifyLocked()
}

// FinishLoading marks the initial restoration as settled.
func (s *State) FinishLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.snap.IsLoading {
		return
	}
	s.snap.IsLoading = false
	s.notifyLocked()
}
