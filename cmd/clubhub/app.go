package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nkiryanov/clubhub/internal/db"
	"github.com/nkiryanov/clubhub/internal/handlers"
	"github.com/nkiryanov/clubhub/internal/kv"
	"github.com/nkiryanov/clubhub/internal/logger"
	"github.com/nkiryanov/clubhub/internal/repository/postgres"
	"github.com/nkiryanov/clubhub/internal/service/auth"
	"github.com/nkiryanov/clubhub/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/clubhub/internal/service/checkin"
	"github.com/nkiryanov/clubhub/internal/service/gate"
)

// One-time verification codes stay redeemable this long
const verificationCodeTTL = 15 * time.Minute

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	close func()
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	if c.SecretKey == "" {
		return nil, errors.New("secret key must be set")
	}

	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Connect to redis holding the ephemeral state
	redisClient, err := kv.Connect(ctx, kv.Config{Addr: c.RedisAddr, Password: c.RedisPassword})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
	}

	// Initialize repositories and ephemeral stores
	storage := postgres.NewStorage(pool)
	denylist := kv.NewDenylist(redisClient)
	registry := kv.NewHashRegistry(redisClient)
	registry.TTL = c.CheckinHashTTL
	codes := kv.NewCodeStore(redisClient, verificationCodeTTL)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey}, storage.Refresh(), denylist)
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	authService, err := auth.NewService(
		auth.Config{BlockedEmailDomains: c.BlockedEmailDomains},
		tokenManager,
		storage,
		codes,
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	checkinService, err := checkin.NewService(registry, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating checkin service. Err: %w", err)
	}
	permGate, err := gate.New(storage.Permission())
	if err != nil {
		return nil, fmt.Errorf("error while creating permission gate. Err: %w", err)
	}

	mux := handlers.NewRouter(authService, checkinService, permGate, logger)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		close: func() {
			_ = redisClient.Close()
			pool.Close()
		},
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	if s.close != nil {
		s.close()
	}

	return err
}
