package secretshare_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	ss "github.com/panyam/secretshare"
	"github.com/panyam/secretshare/stores/fs"
)

func newTestVerifier(t *testing.T) (*ss.Verifier, *fs.FSUserStore) {
	t.Helper()
	store := fs.NewFSUserStore(t.TempDir())
	v := ss.NewVerifier(store)
	v.Hasher = ss.NewBcryptHasher(bcrypt.MinCost)
	return v, store
}

// brokenStore fails every call the way an unreachable database would.
type brokenStore struct {
	ss.UserStore
}

var errDown = ss.StoreError("query", errors.New("connection refused"))

func (brokenStore) GetLocalUser(context.Context, string) (*ss.User, error) { return nil, errDown }
func (brokenStore) CreateLocalUser(context.Context, string, string, []byte) (*ss.User, error) {
	return nil, errDown
}
func (brokenStore) FindOrCreateByProvider(context.Context, ss.Strategy, string) (*ss.User, bool, error) {
	return nil, false, errDown
}
func (brokenStore) GetUserById(context.Context, string) (*ss.User, error) { return nil, errDown }
func (brokenStore) SetSecret(context.Context, string, string) error { return errDown }
func (brokenStore) ListUsersWithSecrets(context.Context) ([]*ss.User, error) { return nil, errDown }

func requireAuthCode(t *testing.T, err error, code string) {
	t.Helper()
	var authErr *ss.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, code, authErr.Code)
}

func TestVerifier_LocalLogin(t *testing.T) {
	v, _ := newTestVerifier(t)
	ctx := context.Background()

	registered, err := v.Register(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.NotEqual(t, []byte("pw1"), registered.PasswordHash)

	user, err := v.Resolve(ctx, ss.LocalCredential("alice", "pw1"))
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, err = v.Resolve(ctx, ss.LocalCredential("alice", "wrong"))
	assert.ErrorIs(t, err, ss.ErrInvalidCredential)
	requireAuthCode(t, err, ss.ErrCodeInvalidCredential)

	_, err = v.Resolve(ctx, ss.LocalCredential("bob", "pw1"))
	assert.ErrorIs(t, err, ss.ErrInvalidCredential)

	_, err = v.Resolve(ctx, ss.LocalCredential("alice", ""))
	assert.ErrorIs(t, err, ss.ErrInvalidCredential)
}

func TestVerifier_RegisterDuplicate(t *testing.T) {
	v, store := newTestVerifier(t)
	ctx := context.Background()

	first, err := v.Register(ctx, "alice", "pw1")
	require.NoError(t, err)

	_, err = v.Register(ctx, "alice", "pw2")
	assert.ErrorIs(t, err, ss.ErrDuplicateIdentity)
	requireAuthCode(t, err, ss.ErrCodeDuplicateIdentity)

	stored, err := store.GetLocalUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.PasswordHash, stored.PasswordHash)

	// the original password still works, the second one does not
	_, err = v.Resolve(ctx, ss.LocalCredential("alice", "pw1"))
	assert.NoError(t, err)
	_, err = v.Resolve(ctx, ss.LocalCredential("alice", "pw2"))
	assert.ErrorIs(t, err, ss.ErrInvalidCredential)
}

func TestVerifier_RegisterEmailUsername(t *testing.T) {
	v, _ := newTestVerifier(t)
	user, err := v.Register(context.Background(), "alice@example.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)

	user, err = v.Register(context.Background(), "carol", "pw1")
	require.NoError(t, err)
	assert.Empty(t, user.Email)
}

func TestVerifier_Provider(t *testing.T) {
	v, _ := newTestVerifier(t)
	ctx := context.Background()

	first, err := v.Resolve(ctx, ss.ProviderCredential(ss.StrategyGoogle, "g-1"))
	require.NoError(t, err)
	assert.Equal(t, "g-1", first.GoogleID)
	assert.Empty(t, first.PasswordHash)

	again, err := v.Resolve(ctx, ss.ProviderCredential(ss.StrategyGoogle, "g-1"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	fb, err := v.Resolve(ctx, ss.ProviderCredential(ss.StrategyFacebook, "g-1"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, fb.ID)

	_, err = v.Resolve(ctx, ss.ProviderCredential(ss.StrategyFacebook, ""))
	assert.ErrorIs(t, err, ss.ErrUpstreamAuthFailure)
	requireAuthCode(t, err, ss.ErrCodeUpstreamAuthFailure)

	_, err = v.Resolve(ctx, ss.Credential{Strategy: "github", ProviderID: "x"})
	assert.ErrorIs(t, err, ss.ErrUpstreamAuthFailure)
}

func TestVerifier_ConcurrentProviderLogin(t *testing.T) {
	v, store := newTestVerifier(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, err := v.Resolve(ctx, ss.ProviderCredential(ss.StrategyFacebook, "fb-1"))
			if assert.NoError(t, err) {
				ids[i] = user.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	user, _, err := store.FindOrCreateByProvider(ctx, ss.StrategyFacebook, "fb-1")
	require.NoError(t, err)
	assert.Equal(t, ids[0], user.ID)
}

func TestVerifier_ZeroValueConcurrentRegister(t *testing.T) {
	v := &ss.Verifier{Store: fs.NewFSUserStore(t.TempDir())}
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Register(ctx, name, "pw-"+name)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Nil(t, v.Hasher)
	_, err := v.Resolve(ctx, ss.LocalCredential("carol", "pw-carol"))
	assert.NoError(t, err)
}

func TestVerifier_StoreUnavailable(t *testing.T) {
	v := ss.NewVerifier(brokenStore{})
	v.Hasher = ss.NewBcryptHasher(bcrypt.MinCost)
	ctx := context.Background()

	_, err := v.Resolve(ctx, ss.LocalCredential("alice", "pw1"))
	assert.ErrorIs(t, err, ss.ErrStoreUnavailable)
	requireAuthCode(t, err, ss.ErrCodeStoreUnavailable)

	_, err = v.Resolve(ctx, ss.ProviderCredential(ss.StrategyGoogle, "g-1"))
	assert.ErrorIs(t, err, ss.ErrStoreUnavailable)

	_, err = v.Register(ctx, "alice", "pw1")
	assert.ErrorIs(t, err, ss.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ss.ErrDuplicateIdentity)
}

func TestDetectUsernameType(t *testing.T) {
	assert.Equal(t, "email", ss.DetectUsernameType("a@b.c"))
	assert.Equal(t, "username", ss.DetectUsernameType("alice"))
}
