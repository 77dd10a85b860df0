package secretshare

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Credential is what a login attempt presents. Username and Password are used
// by StrategyLocal, ProviderID by the OAuth strategies.
type Credential struct {
	Strategy   Strategy
	Username   string
	Password   string
	ProviderID string
}

// LocalCredential builds a username/password credential.
func LocalCredential(username, password string) Credential {
	return Credential{Strategy: StrategyLocal, Username: username, Password: password}
}

// ProviderCredential builds a credential for an external profile id.
func ProviderCredential(s Strategy, providerID string) Credential {
	return Credential{Strategy: s, ProviderID: providerID}
}

// Verifier resolves credentials to user records.
type Verifier struct {
	Store   UserStore
	Hasher  PasswordHasher
	Metrics *Metrics
	Logger  *slog.Logger
}

// NewVerifier returns a Verifier using bcrypt at its default cost.
func NewVerifier(store UserStore) *Verifier {
	return &Verifier{Store: store, Hasher: NewBcryptHasher(0)}
}

// Resolve maps a credential onto a single user record, creating one for a
// previously unseen provider id. Every failure is an *AuthError.
func (v *Verifier) Resolve(ctx context.Context, cred Credential) (*User, error) {
	var (
		user    *User
		created bool
		err     error
	)
	switch cred.Strategy {
	case StrategyLocal:
		user, err = v.resolveLocal(ctx, cred)
	case StrategyGoogle, StrategyFacebook:
		user, created, err = v.resolveProvider(ctx, cred)
	default:
		err = NewAuthError(ErrUpstreamAuthFailure, "unknown strategy: "+string(cred.Strategy))
	}
	v.Metrics.observeLogin(cred.Strategy, err)
	if created {
		v.Metrics.observeCreated(cred.Strategy)
		v.logger().Info("created user", "strategy", cred.Strategy, "user_id", user.ID)
	}
	return user, err
}

func (v *Verifier) resolveLocal(ctx context.Context, cred Credential) (*User, error) {
	if cred.Username == "" || cred.Password == "" {
		return nil, NewAuthError(ErrInvalidCredential, "username and password required")
	}
	user, err := v.Store.GetLocalUser(ctx, cred.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, NewAuthError(ErrInvalidCredential, "invalid credentials")
		}
		return nil, NewAuthError(err, "failed to look up user")
	}
	if len(user.PasswordHash) == 0 {
		return nil, NewAuthError(ErrInvalidCredential, "invalid credentials")
	}
	if err := v.hasher().Compare(user.PasswordHash, cred.Password); err != nil {
		return nil, NewAuthError(ErrInvalidCredential, "invalid credentials")
	}
	return user, nil
}

func (v *Verifier) resolveProvider(ctx context.Context, cred Credential) (*User, bool, error) {
	if cred.ProviderID == "" {
		return nil, false, NewAuthError(ErrUpstreamAuthFailure, string(cred.Strategy)+" profile has no id")
	}
	user, created, err := v.Store.FindOrCreateByProvider(ctx, cred.Strategy, cred.ProviderID)
	if err != nil {
		return nil, false, NewAuthError(err, "failed to resolve "+string(cred.Strategy)+" user")
	}
	return user, created, nil
}

// Register creates a local user. A taken username yields ErrDuplicateIdentity
// and leaves the existing record untouched.
func (v *Verifier) Register(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, NewAuthError(ErrInvalidCredential, "username and password required")
	}
	hash, err := v.hasher().Hash(password)
	if err != nil {
		return nil, NewAuthError(err, "failed to hash password")
	}
	var email string
	if DetectUsernameType(username) == "email" {
		email = username
	}
	user, err := v.Store.CreateLocalUser(ctx, username, email, hash)
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			return nil, NewAuthError(err, "username already registered")
		}
		return nil, NewAuthError(err, "failed to create user")
	}
	v.Metrics.observeCreated(StrategyLocal)
	v.logger().Info("created user", "strategy", StrategyLocal, "user_id", user.ID)
	return user, nil
}

var defaultHasher PasswordHasher = NewBcryptHasher(0)

func (v *Verifier) hasher() PasswordHasher {
	if v.Hasher == nil {
		return defaultHasher
	}
	return v.Hasher
}

func (v *Verifier) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}

// DetectUsernameType reports "email" when the username looks like an address
// and "username" otherwise.
func DetectUsernameType(username string) string {
	if strings.Contains(username, "@") {
		return "email"
	}
	return "username"
}
