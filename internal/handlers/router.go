package handlers

import (
	"context"
	"net/http"

	"github.com/nkiryanov/taledynamic/internal/handlers/middleware"
	"github.com/nkiryanov/taledynamic/internal/handlers/render"
	"github.com/nkiryanov/taledynamic/internal/logger"
	"github.com/nkiryanov/taledynamic/internal/metrics"
	"github.com/nkiryanov/taledynamic/internal/models"
	"github.com/nkiryanov/taledynamic/internal/service/user"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Services struct {
	Auth      authService
	User      userService
	Workspace workspaceService
	Table     tableService

	// Checked by health endpoint
	DB pinger
}

func NewRouter(services Services, m *metrics.Metrics, logger logger.Logger) http.Handler {
	withAuth := middleware.AuthMiddleware(services.Auth)

	mux := http.NewServeMux()

	mux.Handle("POST /auth/user/authenticate", handleAuthenticate(services.Auth, logger))
	mux.Handle("POST /auth/user/refresh-token", handleRefreshToken(services.Auth, logger))
	mux.Handle("POST /auth/user/revoke-token", withAuth(handleRevokeToken(services.Auth, logger)))
	mux.Handle("POST /auth/user/create", handleCreateUser(services.User, logger))
	mux.Handle("GET /auth/user/is-email-used", handleIsEmailUsed(services.User, logger))
	mux.Handle("GET /auth/user/get-by-email", withAuth(handleGetUserByEmail(services.User, logger)))
	mux.Handle("GET /auth/user/get-all", withAuth(handleListUsers(services.User, logger)))
	mux.Handle("GET /auth/user/get", withAuth(handleGetUser(services.User, logger)))
	mux.Handle("PUT /auth/user/update", withAuth(handleUpdateUser(services.User, logger)))
	mux.Handle("DELETE /auth/user/delete", withAuth(handleDeleteUser(services.User, logger)))

	mux.Handle("GET /data/workspace/get-by-user", withAuth(handleListWorkspaces(services.Workspace, logger)))
	mux.Handle("GET /data/workspace/get", withAuth(handleGetWorkspace(services.Workspace, logger)))
	mux.Handle("POST /data/workspace/create", withAuth(handleCreateWorkspace(services.Workspace, logger)))
	mux.Handle("PUT /data/workspace/update", withAuth(handleUpdateWorkspace(services.Workspace, logger)))
	mux.Handle("DELETE /data/workspace/delete", withAuth(handleDeleteWorkspace(services.Workspace, logger)))

	mux.Handle("GET /data/table/get-filtered-by-workspace", withAuth(handleListTables(services.Table, logger)))
	mux.Handle("GET /data/table/get", withAuth(handleGetTable(services.Table, logger)))
	mux.Handle("POST /data/table/create", withAuth(handleCreateTable(services.Table, logger)))
	mux.Handle("PUT /data/table/update", withAuth(handleUpdateTable(services.Table, logger)))
	mux.Handle("DELETE /data/table/delete", withAuth(handleDeleteTable(services.Table, logger)))

	mux.Handle("GET /metrics", m.Handler())
	mux.Handle("GET /healthz", handleHealth(services.DB, logger))

	handler := chain(mux,
		middleware.LoggerMiddleware(logger),
		middleware.MetricsMiddleware(m),
	)

	return handler
}

func handleHealth(db pinger, l logger.Logger) http.Handler {
	type response struct {
		Status string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			l.Warn("Health check failed", "error", err)
			render.ServiceError(w, "Database is not available", http.StatusServiceUnavailable)
			return
		}
		render.JSON(w, response{Status: "ok"})
	})
}

type pinger interface {
	Ping(ctx context.Context) error
}

type authService interface {
	// Authenticate user by email and password
	// Has to return apperrors.ErrUserNotFound if email or password is wrong
	Authenticate(ctx context.Context, email string, password string, ip string) (models.Session, error)

	// Rotate refresh token
	// Has to return apperrors.ErrRefreshTokenNotFound if token is unknown, revoked or expired
	Refresh(ctx context.Context, refresh string, ip string) (models.Session, error)

	// Revoke refresh token
	// Has to return apperrors.ErrRefreshTokenNotFound if token is unknown, revoked or expired
	Revoke(ctx context.Context, refresh string, ip string) error

	// Resolve active user from access token
	UserFromAccess(ctx context.Context, access string) (models.User, error)
}

type userService interface {
	CreateUser(ctx context.Context, email string, password string, ip string) (models.User, error)
	UpdateUser(ctx context.Context, req user.UpdateUser) (models.User, error)
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	GetActiveUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	IsEmailUsed(ctx context.Context, email string) (bool, error)
	DeleteUser(ctx context.Context, userID int64) error
}

type workspaceService interface {
	Create(ctx context.Context, userID int64, name string) (models.Workspace, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Workspace, error)
	Get(ctx context.Context, userID int64, workspaceID int64) (models.Workspace, error)
	Rename(ctx context.Context, userID int64, workspaceID int64, name string) (models.Workspace, error)
	Delete(ctx context.Context, userID int64, workspaceID int64) error
}

type tableService interface {
	Create(ctx context.Context, userID int64, workspaceID int64, name string) (models.Table, error)
	ListByWorkspace(ctx context.Context, userID int64, workspaceID int64) ([]models.Table, error)
	Get(ctx context.Context, userID int64, tableID int64) (models.Table, error)
	Rename(ctx context.Context, userID int64, tableID int64, name string) (models.Table, error)
	Delete(ctx context.Context, userID int64, tableID int64) error
}
