package domain

import (
	"fmt"
	"time"
)

// AuthProvider identifies how an account was created.
type AuthProvider string

const (
	ProviderGoogle  AuthProvider = "google"
	ProviderGithub  AuthProvider = "github"
	ProviderDiscord AuthProvider = "discord"
	ProviderEmail   AuthProvider = "email"
)

// ParseProvider validates a provider name supplied by a user or caller.
func ParseProvider(s string) (AuthProvider, error) {
	switch AuthProvider(s) {
	case ProviderGoogle, ProviderGithub, ProviderDiscord, ProviderEmail:
		return AuthProvider(s), nil
	}
	return "", fmt.Errorf("unsupported provider: %q (supported: google, github, discord, email)", s)
}

// UserProfile is the authenticated user as returned by GET /auth/oauth/me.
// It is replaced wholesale on every fetch, never partially merged.
type UserProfile struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	Username     string       `json:"username"`
	FullName     *string      `json:"full_name"`
	AvatarURL    *string      `json:"avatar_url"`
	AuthProvider AuthProvider `json:"auth_provider"`
	IsActive     bool         `json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Validate checks the fields a usable profile must carry. A payload missing
// any of them is treated as a failed profile fetch, not a partial success.
func (u *UserProfile) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("profile missing id")
	}
	if u.Email == "" {
		return fmt.Errorf("profile missing email")
	}
	if u.Username == "" {
		return fmt.Errorf("profile missing username")
	}
	return nil
}
