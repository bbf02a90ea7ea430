package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nkiryanov/tokenauth/internal/db"
	"github.com/nkiryanov/tokenauth/internal/handlers"
	"github.com/nkiryanov/tokenauth/internal/logger"
	"github.com/nkiryanov/tokenauth/internal/repository"
	"github.com/nkiryanov/tokenauth/internal/repository/postgres"
	"github.com/nkiryanov/tokenauth/internal/repository/redis"
	"github.com/nkiryanov/tokenauth/internal/repository/sqlite"
	"github.com/nkiryanov/tokenauth/internal/service/auth"
	"github.com/nkiryanov/tokenauth/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/tokenauth/internal/service/user"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr     string
	Handler        http.Handler
	RequestTimeout time.Duration

	logger logger.Logger

	// Release connections, called in reverse order after server stopped
	closers []func()
}

func NewServerApp(ctx context.Context, c *Config, l logger.Logger) (_ *ServerApp, err error) {
	secrets, err := c.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config. Err: %w", err)
	}

	app := &ServerApp{
		ListenAddr:     c.ListenAddr,
		RequestTimeout: c.RequestTimeout,
		logger:         l,
	}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	// Connect to the database and run migrations
	userRepo, err := app.connectUserRepo(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	client, err := redis.Connect(ctx, c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
	}
	app.closers = append(app.closers, func() { _ = client.Close() })

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		AccessSecret:  secrets.access,
		RefreshSecret: secrets.refresh,
		AccessTTL:     c.AccessTokenTTL,
		RefreshTTL:    c.RefreshTokenTTL,
	}, redis.NewRevocationStore(client), l)
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{EnforceRevocation: c.EnforceRevocation}, tokenManager, l)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	hasher := auth.Argon2Hasher{Time: c.Argon2Time, Memory: c.Argon2Memory, Threads: c.Argon2Threads}
	userService, err := user.NewService(user.Config{HideUserExistence: c.HideUserExistence}, hasher, userRepo, tokenManager, l)
	if err != nil {
		return nil, fmt.Errorf("error while creating user service. Err: %w", err)
	}

	app.Handler = handlers.NewRouter(authService, userService, l)

	return app, nil
}

// Select user directory backend by DSN scheme
func (s *ServerApp) connectUserRepo(ctx context.Context, dsn string) (repository.UserRepo, error) {
	if db.IsSQLite(dsn) {
		conn, err := db.OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("error while opening sqlite. Err: %w", err)
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })
		return sqlite.NewUserRepo(conn), nil
	}

	pool, err := db.ConnectAndMigrate(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	s.closers = append(s.closers, pool.Close)
	return postgres.NewStorage(pool).User(), nil
}

func (s *ServerApp) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           http.TimeoutHandler(s.Handler, s.RequestTimeout, `{"error":"service_error","message":"Request timeout"}`),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.RequestTimeout,
		WriteTimeout:      s.RequestTimeout + time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
