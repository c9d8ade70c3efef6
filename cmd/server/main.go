package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm"

	"cafepos/internal/config"
	"cafepos/internal/db"
	"cafepos/internal/db/mock"
	"cafepos/internal/events"
	applog "cafepos/internal/log"
	"cafepos/internal/server"
)

type serverLifecycle interface {
	Start() error
	Stop() error
}

var (
	loadConfigFunc      = config.Load
	setLogLevelFunc     = applog.SetLevel
	newMockDatabaseFunc = mock.New
	configureDatabase   = db.Configure
	connectEventsFunc   = events.Connect
	newServerFunc       = func(cfg server.Config) (serverLifecycle, error) {
		return server.New(cfg)
	}
	subscribeShutdownSig = func() (<-chan os.Signal, func()) {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
		return ch, func() { signal.Stop(ch) }
	}
)

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	cfg, err := loadConfigFunc()
	if err != nil {
		applog.Error(ctx, "failed to load configuration", "error", err)
		return 1
	}
	if err := setLogLevelFunc(cfg.Logging.Level); err != nil {
		applog.Error(ctx, "invalid log level", "level", cfg.Logging.Level, "error", err)
		return 1
	}

	database, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		applog.Error(ctx, "failed to configure database", "error", err)
		return 1
	}

	publisher := stockPublisher(ctx, cfg.Events)

	srv, err := newServerFunc(server.Config{
		Addr: cfg.Server.Addr,
		Session: server.SessionConfig{
			Lifetime:     cfg.Auth.Session.Lifetime,
			CookieName:   cfg.Auth.Session.CookieName,
			CookieDomain: cfg.Auth.Session.CookieDomain,
			CookieSecure: cfg.Auth.Session.CookieSecure,
		},
		Token: server.TokenConfig{
			Secret:   cfg.Auth.Token.Secret,
			Lifetime: cfg.Auth.Token.Lifetime,
		},
		Orders: server.OrdersConfig{
			MaxAttempts:  cfg.Orders.MaxAttempts,
			RetryBackoff: cfg.Orders.RetryBackoff,
			LockTimeout:  cfg.Orders.LockTimeout,
		},
		Database:  database,
		Publisher: publisher,
		ShopName:  cfg.Server.ShopName,
	})
	if err != nil {
		applog.Error(ctx, "failed to build server", "error", err)
		return 1
	}

	sigCh, stopSignals := subscribeShutdownSig()
	defer stopSignals()

	errCh := make(chan error, 1)
	go func() {
		applog.Info(ctx, "starting http server", "addr", cfg.Server.Addr)
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Error(ctx, "server encountered an error", "error", err)
			return 1
		}
		return 0
	case sig := <-sigCh:
		applog.Info(ctx, "shutting down http server", "signal", sig.String())
	case <-ctx.Done():
		applog.Info(ctx, "shutting down http server", "reason", ctx.Err())
	}

	if err := srv.Stop(); err != nil {
		applog.Error(ctx, "graceful shutdown failed", "error", err)
		return 1
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		applog.Error(ctx, "server encountered an error", "error", err)
		return 1
	}
	return 0
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.UseMock {
		applog.Info(ctx, "using seeded in-memory database")
		return newMockDatabaseFunc(ctx)
	}
	if cfg.URL == "" {
		applog.Warn(ctx, "no database configured, serving health checks only")
		return nil, nil
	}
	return configureDatabase(cfg)
}

func stockPublisher(ctx context.Context, cfg config.EventsConfig) events.Publisher {
	if cfg.RedisURL == "" {
		return events.Nop{}
	}
	client, err := connectEventsFunc(ctx, cfg.RedisURL)
	if err != nil {
		applog.Warn(ctx, "stock events disabled, redis unavailable", "error", err)
		return events.Nop{}
	}
	publisher, err := events.NewRedisPublisher(client, cfg.Channel)
	if err != nil {
		applog.Warn(ctx, "stock events disabled", "error", err)
		return events.Nop{}
	}
	applog.Info(ctx, "publishing stock events", "channel", publisher.Channel())
	return publisher
}
