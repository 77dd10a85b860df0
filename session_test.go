package secretshare_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ss "github.com/panyam/secretshare"
	"github.com/panyam/secretshare/stores/fs"
)

// countingStore counts GetUserById calls.
type countingStore struct {
	ss.UserStore
	gets atomic.Int32
}

func (c *countingStore) GetUserById(ctx context.Context, id string) (*ss.User, error) {
	c.gets.Add(1)
	return c.UserStore.GetUserById(ctx, id)
}

// serve runs fn inside a loaded session and returns the session cookie that
// came back, if any.
func serve(t *testing.T, session *scs.SessionManager, cookie *http.Cookie, fn func(r *http.Request)) *http.Cookie {
	t.Helper()
	h := session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.Cookie.Name {
			return c
		}
	}
	return cookie
}

func TestSessionBinder_SerializeDeserialize(t *testing.T) {
	store := fs.NewFSUserStore(t.TempDir())
	binder := ss.NewSessionBinder(scs.New(), store)
	ctx := context.Background()

	user, _, err := store.FindOrCreateByProvider(ctx, ss.StrategyGoogle, "g-1")
	require.NoError(t, err)

	token := binder.Serialize(user)
	assert.Equal(t, user.ID, token)
	assert.Empty(t, binder.Serialize(nil))

	got := binder.Deserialize(ctx, token)
	require.NotNil(t, got)
	assert.Equal(t, "g-1", got.GoogleID)

	assert.Nil(t, binder.Deserialize(ctx, ""))
	assert.Nil(t, binder.Deserialize(ctx, "00000000-0000-0000-0000-000000000000"))
	assert.Nil(t, ss.NewSessionBinder(scs.New(), brokenStore{}).Deserialize(ctx, user.ID))
}

func TestSessionBinder_BindResolveClear(t *testing.T) {
	store := fs.NewFSUserStore(t.TempDir())
	session := scs.New()
	binder := ss.NewSessionBinder(session, store)

	user, _, err := store.FindOrCreateByProvider(context.Background(), ss.StrategyFacebook, "fb-1")
	require.NoError(t, err)

	anon := serve(t, session, nil, func(r *http.Request) {
		assert.Nil(t, binder.Resolve(r.Context()))
		binder.Flash(r.Context(), "hello")
	})
	require.NotNil(t, anon)

	bound := serve(t, session, anon, func(r *http.Request) {
		assert.Equal(t, "hello", binder.PopFlash(r.Context()))
		require.NoError(t, binder.Bind(r.Context(), user))
	})
	require.NotNil(t, bound)
	assert.NotEqual(t, anon.Value, bound.Value, "bind renews the session token")

	serve(t, session, anon, func(r *http.Request) {
		assert.Nil(t, binder.Resolve(r.Context()), "pre-login token is no longer bound")
	})

	serve(t, session, bound, func(r *http.Request) {
		got := binder.Resolve(r.Context())
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)
		assert.Empty(t, binder.PopFlash(r.Context()))
		require.NoError(t, binder.Clear(r.Context()))
	})

	serve(t, session, bound, func(r *http.Request) {
		assert.Nil(t, binder.Resolve(r.Context()))
	})
}

func TestMiddleware(t *testing.T) {
	store := &countingStore{UserStore: fs.NewFSUserStore(t.TempDir())}
	session := scs.New()
	binder := ss.NewSessionBinder(session, store)
	m := &ss.Middleware{Binder: binder}

	user, _, err := store.FindOrCreateByProvider(context.Background(), ss.StrategyGoogle, "g-1")
	require.NoError(t, err)

	var seen *ss.User
	protected := session.LoadAndSave(m.EnsureUser(m.LoadUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ss.LoggedInUser(r)
		assert.True(t, ss.IsAuthenticated(r))
		w.WriteHeader(http.StatusOK)
	}))))

	t.Run("anonymous is redirected", func(t *testing.T) {
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/submit", nil))
		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/login", rr.Header().Get("Location"))
	})

	t.Run("bound session passes", func(t *testing.T) {
		cookie := serve(t, session, nil, func(r *http.Request) {
			require.NoError(t, binder.Bind(r.Context(), user))
		})
		store.gets.Store(0)

		req := httptest.NewRequest(http.MethodGet, "/submit", nil)
		req.AddCookie(cookie)
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, seen)
		assert.Equal(t, user.ID, seen.ID)
		assert.Equal(t, int32(1), store.gets.Load(), "user is resolved once per request")
	})

	t.Run("custom login url", func(t *testing.T) {
		custom := &ss.Middleware{Binder: binder, LoginURL: "/signin"}
		h := session.LoadAndSave(custom.EnsureUser(http.NotFoundHandler()))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/submit", nil))
		assert.Equal(t, "/signin", rr.Header().Get("Location"))
	})
}

func TestIsAuthenticated_NoMiddleware(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, ss.IsAuthenticated(r))
	assert.Nil(t, ss.LoggedInUser(r))
}
