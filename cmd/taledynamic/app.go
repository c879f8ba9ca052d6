package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/taledynamic/internal/db"
	"github.com/nkiryanov/taledynamic/internal/handlers"
	"github.com/nkiryanov/taledynamic/internal/logger"
	"github.com/nkiryanov/taledynamic/internal/metrics"
	"github.com/nkiryanov/taledynamic/internal/repository/postgres"
	"github.com/nkiryanov/taledynamic/internal/service/auth"
	"github.com/nkiryanov/taledynamic/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/taledynamic/internal/service/table"
	"github.com/nkiryanov/taledynamic/internal/service/user"
	"github.com/nkiryanov/taledynamic/internal/service/workspace"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger
	pool   *pgxpool.Pool
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	hasher, err := auth.NewHasher(c.PasswordHasher)
	if err != nil {
		return nil, fmt.Errorf("error while creating password hasher. Err: %w", err)
	}

	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		AccessTTL:  c.AccessTokenTTL,
		RefreshTTL: c.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)
	m := metrics.New()

	// Initialize services
	authService, err := auth.NewService(auth.Config{Hasher: hasher, Logger: logger, Metrics: m}, tokenManager, storage)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	userService := user.NewService(user.Config{Hasher: hasher, Logger: logger, Metrics: m}, authService, storage)
	workspaceService := workspace.NewService(storage, logger)
	tableService := table.NewService(storage, logger)

	router := handlers.NewRouter(handlers.Services{
		Auth:      authService,
		User:      userService,
		Workspace: workspaceService,
		Table:     tableService,
		DB:        pool,
	}, m, logger)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    router,
		logger:     logger,
		pool:       pool,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
// Returns nil when stopped by the context
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
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

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
