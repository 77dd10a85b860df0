package secretshare

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alexedwards/scs/v2"
)

// DefaultSessionKey is the session variable holding the logged in user id.
const DefaultSessionKey = "loggedInUserId"

const flashKey = "flash"

// SessionBinder ties a user to the current scs session. The session only
// carries the user id; the record is fetched from the store on every resolve.
type SessionBinder struct {
	Session *scs.SessionManager
	Store   UserStore
	Key     string
	Logger  *slog.Logger
}

// NewSessionBinder returns a binder storing the user id under DefaultSessionKey.
func NewSessionBinder(session *scs.SessionManager, store UserStore) *SessionBinder {
	return &SessionBinder{Session: session, Store: store, Key: DefaultSessionKey}
}

// Serialize returns the session token for a user.
func (b *SessionBinder) Serialize(user *User) string {
	if user == nil {
		return ""
	}
	return user.ID
}

// Deserialize loads the user a token refers to. Empty, stale or unreadable
// tokens all yield nil.
func (b *SessionBinder) Deserialize(ctx context.Context, token string) *User {
	if token == "" {
		return nil
	}
	user, err := b.Store.GetUserById(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			b.logger().Warn("error loading session user", "user_id", token, "err", err)
		}
		return nil
	}
	return user
}

// Bind makes user the logged in user of the session in ctx. The session
// token is renewed first so a pre-login token cannot be reused.
func (b *SessionBinder) Bind(ctx context.Context, user *User) error {
	if err := b.Session.RenewToken(ctx); err != nil {
		return err
	}
	b.Session.Put(ctx, b.key(), b.Serialize(user))
	return nil
}

// Resolve returns the user bound to the session in ctx, or nil.
func (b *SessionBinder) Resolve(ctx context.Context) *User {
	return b.Deserialize(ctx, b.Session.GetString(ctx, b.key()))
}

// Clear logs the session out.
func (b *SessionBinder) Clear(ctx context.Context) error {
	return b.Session.Destroy(ctx)
}

// Flash stores a one-shot message shown on the next rendered page.
func (b *SessionBinder) Flash(ctx context.Context, msg string) {
	b.Session.Put(ctx, flashKey, msg)
}

// PopFlash returns and removes the pending flash message.
func (b *SessionBinder) PopFlash(ctx context.Context) string {
	return b.Session.PopString(ctx, flashKey)
}

func (b *SessionBinder) key() string {
	if b.Key == "" {
		return DefaultSessionKey
	}
	return b.Key
}

func (b *SessionBinder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
