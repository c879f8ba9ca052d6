package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/nkiryanov/taledynamic/internal/apperrors"
	"github.com/nkiryanov/taledynamic/internal/handlers/middleware"
	"github.com/nkiryanov/taledynamic/internal/handlers/render"
	"github.com/nkiryanov/taledynamic/internal/logger"
	"github.com/nkiryanov/taledynamic/internal/models"
)

type sessionResponse struct {
	ID                   int64     `json:"id"`
	Email                string    `json:"email"`
	AccessToken          string    `json:"accessToken"`
	AccessTokenExpiresAt time.Time `json:"accessTokenExpiresAt"`
}

// Refresh token goes to cookie, everything else to body
func renderSession(w http.ResponseWriter, session models.Session) {
	setRefreshCookie(w, session.Tokens.Refresh)
	render.JSON(w, sessionResponse{
		ID:                   session.UserID,
		Email:                session.Email,
		AccessToken:          session.Tokens.Access.Value,
		AccessTokenExpiresAt: session.Tokens.Access.ExpiresAt,
	})
}

func handleAuthenticate(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		session, err := authService.Authenticate(r.Context(), data.Email, data.Password, middleware.ClientIP(r))

		switch {
		case err == nil:
			renderSession(w, session)
		case errors.Is(err, apperrors.ErrInvalidRequest):
			render.BadRequest(w, "Email and password are required")
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "Email or password is incorrect", http.StatusUnauthorized)
		default:
			l.Error("Failed to authenticate user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleRefreshToken(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh := refreshFromCookie(r)
		if refresh == "" {
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		}

		session, err := authService.Refresh(r.Context(), refresh, middleware.ClientIP(r))

		switch {
		case err == nil:
			renderSession(w, session)
		case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			render.ServiceError(w, "Invalid token", http.StatusUnauthorized)
		default:
			l.Error("Failed to refresh token", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// Revoke token from body or, if body has none, the one from cookie
func handleRevokeToken(authService authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refreshToken"`
	}
	type response struct {
		Success bool `json:"success"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var data request
		err := json.NewDecoder(r.Body).Decode(&data)
		if err != nil && !errors.Is(err, io.EOF) {
			render.DecodeError(w, err)
			return
		}

		refresh, fromCookie := data.RefreshToken, false
		if refresh == "" {
			refresh, fromCookie = refreshFromCookie(r), true
		}
		if refresh == "" {
			render.BadRequest(w, "Token is required")
			return
		}

		err = authService.Revoke(r.Context(), refresh, middleware.ClientIP(r))

		switch {
		case err == nil:
			if fromCookie {
				clearRefreshCookie(w)
			}
			render.JSON(w, response{Success: true})
		case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			render.ServiceError(w, "Token not found", http.StatusUnauthorized)
		default:
			l.Error("Failed to revoke token", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
