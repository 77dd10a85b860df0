// Package storetest holds the behaviour every secretshare.UserStore must
// share. Store packages call Run from their own tests.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ss "github.com/panyam/secretshare"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) ss.UserStore

// Run exercises store against the UserStore contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGetLocalUser", func(t *testing.T) { testCreateLocalUser(t, newStore(t)) })
	t.Run("DuplicateUsername", func(t *testing.T) { testDuplicateUsername(t, newStore(t)) })
	t.Run("UnknownLookups", func(t *testing.T) { testUnknownLookups(t, newStore(t)) })
	t.Run("FindOrCreateByProvider", func(t *testing.T) { testFindOrCreate(t, newStore(t)) })
	t.Run("ProvidersAreSeparateKeys", func(t *testing.T) { testProviderKeys(t, newStore(t)) })
	t.Run("ConcurrentFindOrCreate", func(t *testing.T) { testConcurrentFindOrCreate(t, newStore(t)) })
	t.Run("SecretOverwrite", func(t *testing.T) { testSecretOverwrite(t, newStore(t)) })
	t.Run("ListUsersWithSecrets", func(t *testing.T) { testListUsersWithSecrets(t, newStore(t)) })
}

func testCreateLocalUser(t *testing.T, store ss.UserStore) {
	ctx := context.Background()
	user, err := store.CreateLocalUser(ctx, "alice", "", []byte("hash"))
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)

	got, err := store.GetLocalUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, []byte("hash"), got.PasswordHash)

	// lookups ignore case
	got, err = store.GetLocalUser(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	byId, err := store.GetUserById(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byId.Username)
	assert.Empty(t, byId.GoogleID)
	assert.Empty(t, byId.FacebookID)
}

func testDuplicateUsername(t *testing.T, store ss.UserStore) {
	ctx := context.Background()
	first, err := store.CreateLocalUser(ctx, "alice", "", []byte("one"))
	require.NoError(t, err)

	_, err = store.CreateLocalUser(ctx, "alice", "", []byte("two"))
	assert.ErrorIs(t, err, ss.ErrDuplicateIdentity)

	_, err = store.CreateLocalUser(ctx, "ALICE", "", []byte("three"))
	assert.ErrorIs(t, err, ss.ErrDuplicateIdentity)

	// the original record is untouched
	got, err := store.GetLocalUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, []byte("one"), got.PasswordHash)
}

func testUnknownLookups(t *testing.T, store ss.UserStore) {
	ctx := context.Background()
	_, err := store.GetLocalUser(ctx, "nobody")
	assert.ErrorIs(t, err, ss.ErrUserNotFound)

	_, err = store.GetUserById(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ss.ErrUserNotFound)

	_, err = store.GetUserById(ctx, "not-an-id")
	assert.ErrorIs(t, err, ss.ErrUserNotFound)

	err = store.SetSecret(ctx, "00000000-0000-0000-0000-000000000000", "x")
	assert.ErrorIs(t, err, ss.ErrUserNotFound)
}

func testFindOrCreate(t *testing.T, store ss.UserStore) {
	ctx := context.Background()
	user, created, err := store.FindOrCreateByProvider(ctx, ss.StrategyGoogle, "g-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "g-1", user.GoogleID)
	assert.Empty(t, user.Username)

	again, created, err := store.FindOrCreateByProvider(ctx, ss.StrategyGoogle, "g-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, again.ID)
}

func testProviderKeys(t *testing.T, store ss.UserStore) {
	ctx := context.Background()
	g, _, err := store.FindOrCreateByProvider(ctx, ss.StrategyGoogle, "42")
	require.NoError(t, err)
	f, _, err := store.FindOrCreateByProvider(ctx, ss.StrategyFacebook, "42")
	require.NoError(t, err)
	assert.NotEqual(t, g.ID, f.ID)
	assert.Equal(t, "42", f.FacebookID)
	assert.Empty(t, f.GoogleID)
}

func testConcurrentFindOrCreate(t *testing.T, store ss.UserStore) {
	ctx := context.Background()
	const workers = 8

	var wg sync.WaitGroup
	ids := make([]string, workers)
	created := make([]bool, workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, c, err := store.FindOrCreateByProvider(ctx, ss.StrategyFacebook, "fb-race")
			errs[i] = err
			created[i] = c
			if user != nil {
				ids[i] = user.ID
			}
		}()
	}
	wg.Wait()

	creators := 0
	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
		if created[i] {
			creators++
		}
	}
	assert.Equal(t, 1, creators)
}

func testSecretOverwrite(t *testing.T, store ss.UserStore) {
	ctx := context.Background()
	user, err := store.CreateLocalUser(ctx, "bob", "", []byte("hash"))
	require.NoError(t, err)

	require.NoError(t, store.SetSecret(ctx, user.ID, "first"))
	require.NoError(t, store.SetSecret(ctx, user.ID, "second"))

	got, err := store.GetUserById(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Secret)
	assert.Equal(t, []byte("hash"), got.PasswordHash)
}

func testListUsersWithSecrets(t *testing.T, store ss.UserStore) {
	ctx := context.Background()
	users, err := store.ListUsersWithSecrets(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	alice, err := store.CreateLocalUser(ctx, "alice", "", []byte("hash"))
	require.NoError(t, err)
	_, err = store.CreateLocalUser(ctx, "carol", "", []byte("hash"))
	require.NoError(t, err)
	g, _, err := store.FindOrCreateByProvider(ctx, ss.StrategyGoogle, "g-7")
	require.NoError(t, err)
	dropped, _, err := store.FindOrCreateByProvider(ctx, ss.StrategyFacebook, "fb-7")
	require.NoError(t, err)

	require.NoError(t, store.SetSecret(ctx, alice.ID, "I like turtles"))
	require.NoError(t, store.SetSecret(ctx, g.ID, "pineapple on pizza"))
	require.NoError(t, store.SetSecret(ctx, dropped.ID, "temporary"))
	require.NoError(t, store.SetSecret(ctx, dropped.ID, ""))

	users, err = store.ListUsersWithSecrets(ctx)
	require.NoError(t, err)
	secrets := make([]string, 0, len(users))
	for _, u := range users {
		secrets = append(secrets, u.Secret)
	}
	assert.ElementsMatch(t, []string{"I like turtles", "pineapple on pizza"}, secrets)
}
