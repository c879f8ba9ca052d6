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

type tableResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	WorkspaceID int64     `json:"workspaceId"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

func toTableResponse(t models.Table) tableResponse {
	return tableResponse{
		ID:          t.ID,
		Name:        t.Name,
		WorkspaceID: t.WorkspaceID,
		Created:     t.CreatedAt,
		Modified:    t.ModifiedAt,
	}
}

// Write error response for table operations, return false if err is nil
func tableError(w http.ResponseWriter, l logger.Logger, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, apperrors.ErrTableNotFound):
		render.ServiceError(w, "Table not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrWorkspaceNotFound):
		render.ServiceError(w, "Workspace not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrInvalidRequest):
		render.BadRequest(w, "Invalid table name")
	default:
		l.Error("Table operation failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
	return true
}

func renderTable(w http.ResponseWriter, l logger.Logger, t models.Table, err error) {
	if tableError(w, l, err) {
		return
	}
	render.JSON(w, toTableResponse(t))
}

func handleListTables(tableService tableService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, ok := currentUser(w, r)
		if !ok {
			return
		}
		workspaceID, ok := queryInt64(w, r, "workspaceId")
		if !ok {
			return
		}

		tables, err := tableService.ListByWorkspace(r.Context(), current.ID, workspaceID)
		if tableError(w, l, err) {
			return
		}

		response := make([]tableResponse, 0, len(tables))
		for _, t := range tables {
			response = append(response, toTableResponse(t))
		}
		render.JSON(w, response)
	})
}

func handleGetTable(tableService tableService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := queryInt64(w, r, "id")
		if !ok {
			return
		}

		t, err := tableService.Get(r.Context(), current.ID, id)
		renderTable(w, l, t, err)
	})
}

func handleCreateTable(tableService tableService, l logger.Logger) http.Handler {
	type request struct {
		WorkspaceID int64  `json:"workspaceId" validate:"required,gt=0"`
		Name        string `json:"name" validate:"required,notblank,max=100"`
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

		t, err := tableService.Create(r.Context(), current.ID, data.WorkspaceID, data.Name)
		renderTable(w, l, t, err)
	})
}

func handleUpdateTable(tableService tableService, l logger.Logger) http.Handler {
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

		t, err := tableService.Rename(r.Context(), current.ID, data.ID, data.Name)
		renderTable(w, l, t, err)
	})
}

func handleDeleteTable(tableService tableService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := queryInt64(w, r, "id")
		if !ok {
			return
		}

		err := tableService.Delete(r.Context(), current.ID, id)
		if tableError(w, l, err) {
			return
		}
		render.JSON(w, successResponse{Success: true})
	})
}
