package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/nkiryanov/taledynamic/internal/apperrors"
	"github.com/nkiryanov/taledynamic/internal/handlers/render"
	"github.com/nkiryanov/taledynamic/internal/logger"
	"github.com/nkiryanov/taledynamic/internal/models"
)

type workspaceResponse struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	UserID   int64     `json:"userId"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

func toWorkspaceResponse(ws models.Workspace) workspaceResponse {
	return workspaceResponse{
		ID:       ws.ID,
		Name:     ws.Name,
		UserID:   ws.UserID,
		Created:  ws.CreatedAt,
		Modified: ws.ModifiedAt,
	}
}

func renderWorkspace(w http.ResponseWriter, l logger.Logger, ws models.Workspace, err error) {
	switch {
	case err == nil:
		render.JSON(w, toWorkspaceResponse(ws))
	case errors.Is(err, apperrors.ErrWorkspaceNotFound):
		render.ServiceError(w, "Workspace not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrInvalidRequest):
		render.BadRequest(w, "Invalid workspace name")
	default:
		l.Error("Workspace operation failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func handleListWorkspaces(workspaceService workspaceService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, ok := currentUser(w, r)
		if !ok {
			return
		}

		workspaces, err := workspaceService.ListByUser(r.Context(), current.ID)
		if err != nil {
			l.Error("Failed to list workspaces", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]workspaceResponse, 0, len(workspaces))
		for _, ws := range workspaces {
			response = append(response, toWorkspaceResponse(ws))
		}
		render.JSON(w, response)
	})
}

func handleGetWorkspace(workspaceService workspaceService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := queryInt64(w, r, "id")
		if !ok {
			return
		}

		ws, err := workspaceService.Get(r.Context(), current.ID, id)
		renderWorkspace(w, l, ws, err)
	})
}

func handleCreateWorkspace(workspaceService workspaceService, l logger.Logger) http.Handler {
	type request struct {
		Name string `json:"name" validate:"required,notblank,max=100"`
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

		ws, err := workspaceService.Create(r.Context(), current.ID, data.Name)
		renderWorkspace(w, l, ws, err)
	})
}

func handleUpdateWorkspace(workspaceService workspaceService, l logger.Logger) http.Handler {
	type request struct {
		ID   int64  `json:"id" validate:"required,gt=0"`
		Name string `json:"name" validate:"required,notblank,max=100"`
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

		ws, err := workspaceService.Rename(r.Context(), current.ID, data.ID, data.Name)
		renderWorkspace(w, l, ws, err)
	})
}

func handleDeleteWorkspace(workspaceService workspaceService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := queryInt64(w, r, "id")
		if !ok {
			return
		}

		err := workspaceService.Delete(r.Context(), current.ID, id)

		switch {
		case err == nil:
			render.JSON(w, successResponse{Success: true})
		case errors.Is(err, apperrors.ErrWorkspaceNotFound):
			render.ServiceError(w, "Workspace not found", http.StatusNotFound)
		default:
			l.Error("Failed to delete workspace", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
