package token

import (
	"context"
	"sync"
)

// MemoryStore holds the token in process memory only. Used by tests and by
// ephemeral runs that should not leave a token on disk.
type MemoryStore struct {
	mu    sync.Mutex
	value string
	set   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, tok string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = tok
	s.set = true
	return nil
}

func (s *MemoryStore) Read(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return "", nil
	}
	tok, corrupt := sanitize(s.value)
	if corrupt {
		s.value = ""
		s.set = false
	}
	return tok, nil
}

func (s *MemoryStore) Remove(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = ""
	s.set = false
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context) bool {
	tok, err := s.Read(ctx)
	return err == nil && tok != ""
}
