package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nkiryanov/taledynamic/internal/apperrors"
	"github.com/nkiryanov/taledynamic/internal/handlers/middleware"
	"github.com/nkiryanov/taledynamic/internal/handlers/render"
	"github.com/nkiryanov/taledynamic/internal/handlers/userctx"
	"github.com/nkiryanov/taledynamic/internal/logger"
	"github.com/nkiryanov/taledynamic/internal/models"
	"github.com/nkiryanov/taledynamic/internal/service/user"
)

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email}
}

// Read required int64 query parameter, renders error if it is missing or malformed
func queryInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	value, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || value <= 0 {
		render.BadRequest(w, fmt.Sprintf("Query parameter '%s' must be positive integer", name))
		return 0, false
	}
	return value, true
}

// Authenticated user, the route has to be wrapped with auth middleware
func currentUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	u, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
	}
	return u, ok
}

func handleCreateUser(userService userService, l logger.Logger) http.Handler {
	type request struct {
		Email           string `json:"email" validate:"required,email,max=254"`
		Password        string `json:"password" validate:"required,min=6"`
		ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		_, err = userService.CreateUser(r.Context(), data.Email, data.Password, middleware.ClientIP(r))

		switch {
		case err == nil:
			render.JSON(w, successResponse{Success: true})
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "Email is already used", http.StatusConflict)
		case errors.Is(err, apperrors.ErrInvalidRequest):
			render.BadRequest(w, "Email and password are required")
		default:
			l.Error("Failed to create user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleIsEmailUsed(userService userService, l logger.Logger) http.Handler {
	type response struct {
		IsUsed bool `json:"isUsed"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		used, err := userService.IsEmailUsed(r.Context(), r.URL.Query().Get("email"))

		switch {
		case err == nil:
			render.JSON(w, response{IsUsed: used})
		case errors.Is(err, apperrors.ErrInvalidRequest):
			render.BadRequest(w, "Query parameter 'email' is required")
		default:
			l.Error("Failed to check email", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleGetUserByEmail(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := userService.GetActiveUserByEmail(r.Context(), r.URL.Query().Get("email"))
		renderUser(w, l, u, err)
	})
}

func handleGetUser(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := queryInt64(w, r, "id")
		if !ok {
			return
		}

		u, err := userService.GetUserByID(r.Context(), id)
		renderUser(w, l, u, err)
	})
}

func renderUser(w http.ResponseWriter, l logger.Logger, u models.User, err error) {
	switch {
	case err == nil:
		render.JSON(w, toUserResponse(u))
	case errors.Is(err, apperrors.ErrUserNotFound):
		render.ServiceError(w, "User not found", http.StatusNotFound)
	default:
		l.Error("Failed to get user", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func handleListUsers(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		users, err := userService.ListUsers(r.Context())
		if err != nil {
			l.Error("Failed to list users", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]userResponse, 0, len(users))
		for _, u := range users {
			response = append(response, toUserResponse(u))
		}
		render.JSON(w, response)
	})
}

func handleUpdateUser(userService userService, l logger.Logger) http.Handler {
	type request struct {
		ID          int64  `json:"id" validate:"required,gt=0"`
		Password    string `json:"password" validate:"required"`
		Email       string `json:"email" validate:"omitempty,email,max=254"`
		NewPassword string `json:"newPassword" validate:"omitempty,min=6"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, ok := currentUser(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if data.ID != current.ID {
			render.ServiceError(w, "Only own account could be updated", http.StatusForbidden)
			return
		}

		updated, err := userService.UpdateUser(r.Context(), user.UpdateUser{
			ID:          data.ID,
			Password:    data.Password,
			Email:       data.Email,
			NewPassword: data.NewPassword,
		})

		switch {
		case err == nil:
			render.JSON(w, toUserResponse(updated))
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "Email is already used", http.StatusConflict)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrInvalidRequest):
			render.BadRequest(w, "Password is required")
		default:
			l.Error("Failed to update user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleDeleteUser(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, ok := currentUser(w, r)
		if !ok {
			return
		}

		id, ok := queryInt64(w, r, "userId")
		if !ok {
			return
		}

		if id != current.ID {
			render.ServiceError(w, "Only own account could be deleted", http.StatusForbidden)
			return
		}

		err := userService.DeleteUser(r.Context(), id)

		switch {
		case err == nil:
			render.JSON(w, successResponse{Success: true})
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to delete user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
