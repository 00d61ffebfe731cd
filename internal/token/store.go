package token

import (
	"context"
	"strings"
)

// Store persists the bearer token across process restarts. It holds exactly
// one value; Save overwrites unconditionally and Remove is idempotent.
//
// Read is self-healing: a stored value that fails the structural check is
// deleted on the read that discovers it and reported as absent. Absence is
// ("", nil); an error means the backing storage itself failed.
type Store interface {
	Save(ctx context.Context, tok string) error
	Read(ctx context.Context) (string, error)
	Remove(ctx context.Context) error
	Exists(ctx context.Context) bool
}

// sanitize applies the shared self-healing policy to a raw stored value.
// It returns the usable token ("" if none) and whether the stored value
// should be deleted.
func sanitize(raw string) (tok string, corrupt bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", raw != ""
	}
	if !StructurallyValid(trimmed) {
		return "", true
	}
	return trimmed, false
}
