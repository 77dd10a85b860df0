package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ss "github.com/panyam/secretshare"
	"github.com/panyam/secretshare/config"
	"github.com/panyam/secretshare/stores/fs"
)

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		wantErr string
	}{
		{name: "file store", driver: config.DriverFS},
		{name: "unknown driver", driver: "mongo", wantErr: `unknown store driver "mongo"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				StoreDriver: tt.driver,
				StoragePath: filepath.Join(t.TempDir(), "data"),
			}
			store, err := openStore(context.Background(), cfg)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			defer store.Close()
			assert.IsType(t, &fs.FSUserStore{}, store)
			assert.DirExists(t, cfg.StoragePath)
		})
	}
}

func TestNewSessionManager(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		cfg := &config.Config{SessionLifetime: time.Hour, BaseURL: "https://secrets.example.com"}
		session, closeSessions, err := newSessionManager(context.Background(), cfg)
		require.NoError(t, err)
		defer closeSessions()
		assert.IsType(t, &memstore.MemStore{}, session.Store)
		assert.Equal(t, time.Hour, session.Lifetime)
		assert.True(t, session.Cookie.Secure)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := &config.Config{SessionLifetime: time.Hour, BaseURL: "http://localhost:3000", RedisAddr: mr.Addr()}
		session, closeSessions, err := newSessionManager(context.Background(), cfg)
		require.NoError(t, err)
		defer closeSessions()
		assert.IsType(t, &ss.RedisStore{}, session.Store)
		assert.False(t, session.Cookie.Secure)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		cfg := &config.Config{SessionLifetime: time.Hour, RedisAddr: addr}
		_, _, err := newSessionManager(context.Background(), cfg)
		assert.Error(t, err)
	})
}
