package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"

	"cafepos/internal/auth"
	"cafepos/internal/events"
	"cafepos/internal/handlers"
	"cafepos/internal/inventory"
	applog "cafepos/internal/log"
	"cafepos/internal/supply"
)

// Config captures the runtime configuration for the HTTP server.
type Config struct {
	Addr      string
	Session   SessionConfig
	Token     TokenConfig
	Orders    OrdersConfig
	Database  *gorm.DB
	Publisher events.Publisher
	ShopName  string
}

// SessionConfig controls session behavior for the HTTP server.
type SessionConfig struct {
	Lifetime     time.Duration
	CookieName   string
	CookieDomain string
	CookieSecure bool
}

// TokenConfig controls bearer tokens issued at login.
type TokenConfig struct {
	Secret   string
	Lifetime time.Duration
}

// OrdersConfig tunes the order engine. Zero values fall back to engine defaults.
type OrdersConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	LockTimeout  time.Duration
}

// Server wraps an http.Server and exposes helpers for bootstrapping a
// production-ready web service.
type Server struct {
	config     Config
	httpServer *http.Server
	engine     *inventory.Engine
}

// New builds a new Server using the provided configuration. Without a
// database the server still answers health checks, while inventory routes
// report themselves unavailable.
func New(cfg Config) (*Server, error) {
	ctx := context.Background()
	applog.Debug(ctx, "initializing server",
		"addr", cfg.Addr,
		"sessionLifetime", cfg.Session.Lifetime.String(),
		"sessionCookie", cfg.Session.CookieName,
	)

	sessionCfg := cfg.Session
	if sessionCfg.Lifetime <= 0 {
		applog.Debug(ctx, "session lifetime not provided, using default")
		sessionCfg.Lifetime = 12 * time.Hour
	}
	if strings.TrimSpace(sessionCfg.CookieName) == "" {
		applog.Debug(ctx, "session cookie name not provided, using default")
		sessionCfg.CookieName = "cafepos_session"
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = sessionCfg.Lifetime
	sessionManager.Cookie.Name = sessionCfg.CookieName
	sessionManager.Cookie.Domain = sessionCfg.CookieDomain
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	sessionManager.Cookie.Secure = sessionCfg.CookieSecure

	applog.Debug(ctx, "session manager configured",
		"cookieName", sessionCfg.CookieName,
		"cookieDomain", sessionCfg.CookieDomain,
		"cookieSecure", sessionCfg.CookieSecure,
	)

	secret := cfg.Token.Secret
	if strings.TrimSpace(secret) == "" {
		generated, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		applog.Warn(ctx, "no token secret configured, bearer tokens will not survive a restart")
		secret = generated
	}
	tokens, err := auth.NewTokens(secret, cfg.Token.Lifetime)
	if err != nil {
		return nil, fmt.Errorf("configure tokens: %w", err)
	}

	deps := handlers.Dependencies{
		Sessions: sessionManager,
		Database: cfg.Database,
		Tokens:   tokens,
		ShopName: cfg.ShopName,
	}

	var engine *inventory.Engine
	if cfg.Database != nil {
		engine, err = inventory.New(cfg.Database, inventory.Options{
			MaxAttempts: cfg.Orders.MaxAttempts,
			BaseBackoff: cfg.Orders.RetryBackoff,
			LockTimeout: cfg.Orders.LockTimeout,
			Publisher:   cfg.Publisher,
		})
		if err != nil {
			return nil, fmt.Errorf("configure inventory engine: %w", err)
		}
		supplies, err := supply.NewService(engine)
		if err != nil {
			return nil, fmt.Errorf("configure supply service: %w", err)
		}
		deps.Engine = engine
		deps.Supplies = supplies
	} else {
		applog.Warn(ctx, "server started without database, inventory routes are disabled")
	}

	handlers.Configure(deps)

	applog.Debug(ctx, "handler dependencies configured")

	handler := sessionManager.LoadAndSave(newRouter())

	applog.Debug(ctx, "http handler chain prepared")

	return &Server{
		config: cfg,
		engine: engine,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Start begins serving HTTP traffic using the underlying http.Server.
func (s *Server) Start() error {
	applog.Debug(context.Background(), "server starting listener", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server with a timeout.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	applog.Debug(ctx, "server initiating graceful shutdown")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured HTTP handler, enabling integration tests.
func (s *Server) Handler() http.Handler {
	applog.Debug(context.Background(), "server handler requested")
	return s.httpServer.Handler
}

// Engine returns the order engine, or nil when no database is configured.
func (s *Server) Engine() *inventory.Engine {
	return s.engine
}
