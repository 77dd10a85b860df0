// Command secretshare runs the secrets server.
//
// Configuration is read from the environment, optionally preloaded from a
// .env file. See the config package for the variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/redis/go-redis/v9"

	ss "github.com/panyam/secretshare"
	"github.com/panyam/secretshare/config"
	oa2 "github.com/panyam/secretshare/oauth2"
	"github.com/panyam/secretshare/stores/fs"
	"github.com/panyam/secretshare/stores/gae"
	gormstore "github.com/panyam/secretshare/stores/gorm"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to preload, ignored if missing")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("error closing store", "err", err)
		}
	}()
	logger.Info("user store ready", "driver", cfg.StoreDriver)

	session, closeSessions, err := newSessionManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	app, err := ss.NewApp(store, session, logger)
	if err != nil {
		return err
	}
	addProviders(app, cfg, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "base_url", cfg.BaseURL)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (ss.UserStore, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return gormstore.OpenPostgres(cfg.DatabaseDSN)
	case config.DriverDatastore:
		return gae.Open(ctx, cfg.DatastoreProject, cfg.DatastoreNamespace)
	case config.DriverFS:
		if err := os.MkdirAll(cfg.StoragePath, 0755); err != nil {
			return nil, fmt.Errorf("create storage path: %w", err)
		}
		return fs.NewFSUserStore(cfg.StoragePath), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// newSessionManager keeps sessions in memory unless REDIS_ADDR is set.
func newSessionManager(ctx context.Context, cfg *config.Config) (*scs.SessionManager, func() error, error) {
	session := scs.New()
	session.Lifetime = cfg.SessionLifetime
	session.Cookie.Name = "secretshare_session"
	session.Cookie.HttpOnly = true
	session.Cookie.SameSite = http.SameSiteLaxMode
	session.Cookie.Secure = strings.HasPrefix(cfg.BaseURL, "https://")

	if cfg.RedisAddr == "" {
		return session, func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	store := ss.NewRedisStore(client, "")
	if err := store.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	session.Store = store
	return session, client.Close, nil
}

func addProviders(app *ss.App, cfg *config.Config, logger *slog.Logger) {
	var signer *oa2.StateSigner
	if cfg.SessionSecret != "" {
		signer = oa2.NewStateSigner(cfg.SessionSecret)
	} else {
		logger.Warn("SESSION_SECRET not set, oauth state is not signed")
	}

	if cfg.GoogleEnabled() {
		google := oa2.NewGoogleOAuth2(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.CallbackURL("google"), nil)
		google.State = signer
		app.AddProvider(ss.StrategyGoogle, google.BaseOAuth2)
	} else {
		logger.Info("google login disabled")
	}

	if cfg.FacebookEnabled() {
		facebook := oa2.NewFacebookOAuth2(cfg.FacebookClientID, cfg.FacebookClientSecret, cfg.CallbackURL("facebook"), nil)
		facebook.State = signer
		app.AddProvider(ss.StrategyFacebook, facebook.BaseOAuth2)
	} else {
		logger.Info("facebook login disabled")
	}
}
