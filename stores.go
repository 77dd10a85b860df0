package secretshare

import (
	"context"
	"slices"
	"time"
)

// Strategy tags the credential path a login came through.
type Strategy string

const (
	StrategyLocal    Strategy = "local"
	StrategyGoogle   Strategy = "google"
	StrategyFacebook Strategy = "facebook"
)

// ProviderStrategies lists the external OAuth providers, in the order their
// routes are mounted.
var ProviderStrategies = []Strategy{StrategyGoogle, StrategyFacebook}

// IsProvider reports whether the strategy is an external OAuth provider.
func (s Strategy) IsProvider() bool {
	return slices.Contains(ProviderStrategies, s)
}

// User is the single canonical record every strategy resolves to.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email,omitempty"`
	PasswordHash []byte    `json:"password_hash,omitempty"`
	GoogleID     string    `json:"google_id,omitempty"`
	FacebookID   string    `json:"facebook_id,omitempty"`
	Secret       string    `json:"secret,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasSecret reports whether the user has submitted a non-empty secret.
func (u *User) HasSecret() bool { return u.Secret != "" }

// NewProviderUser returns an unsaved record with only the provider id set.
func NewProviderUser(s Strategy, providerID string) *User {
	now := time.Now()
	u := &User{CreatedAt: now, UpdatedAt: now}
	switch s {
	case StrategyGoogle:
		u.GoogleID = providerID
	case StrategyFacebook:
		u.FacebookID = providerID
	}
	return u
}

// UserStore persists user records. Username, GoogleID and FacebookID are
// alternative unique keys onto the same record space.
type UserStore interface {
	// CreateLocalUser inserts a record keyed by username. Returns
	// ErrDuplicateIdentity if the username is already taken.
	CreateLocalUser(ctx context.Context, username, email string, passwordHash []byte) (*User, error)

	// GetLocalUser looks a record up by username. Returns ErrUserNotFound if absent.
	GetLocalUser(ctx context.Context, username string) (*User, error)

	// FindOrCreateByProvider atomically returns the record whose provider id
	// matches, inserting one with only that field set when none exists.
	// Concurrent calls for the same unseen id must agree on a single record.
	FindOrCreateByProvider(ctx context.Context, strategy Strategy, providerID string) (user *User, created bool, err error)

	// GetUserById looks a record up by its id. Returns ErrUserNotFound if absent.
	GetUserById(ctx context.Context, id string) (*User, error)

	// SetSecret overwrites the user's secret.
	SetSecret(ctx context.Context, id, secret string) error

	// ListUsersWithSecrets returns every user whose secret is non-empty.
	ListUsersWithSecrets(ctx context.Context) ([]*User, error)

	// Close releases the underlying connection.
	Close() error
}
