package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/taledynamic/internal/apperrors"
	"github.com/nkiryanov/taledynamic/internal/models"
	"github.com/nkiryanov/taledynamic/internal/testutil"
)

func Test_TableRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	type fixture struct {
		repo       *TableRepo
		workspaces *WorkspaceRepo
		owner      models.User
		stranger   models.User
		workspace  models.Workspace
	}

	inTx := func(t *testing.T, fn func(f fixture)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			users := &UserRepo{DB: tx}
			owner, err := users.CreateUser(t.Context(), "owner@example.com", "hash")
			require.NoError(t, err)
			stranger, err := users.CreateUser(t.Context(), "stranger@example.com", "hash")
			require.NoError(t, err)

			workspaces := &WorkspaceRepo{DB: tx}
			ws, err := workspaces.Create(t.Context(), owner.ID, "Personal")
			require.NoError(t, err)

			fn(fixture{
				repo:       &TableRepo{DB: tx},
				workspaces: workspaces,
				owner:      owner,
				stranger:   stranger,
				workspace:  ws,
			})
		})
	}

	t.Run("create ok", func(t *testing.T) {
		inTx(t, func(f fixture) {
			table, err := f.repo.Create(t.Context(), f.owner.ID, f.workspace.ID, "Characters")

			require.NoError(t, err)
			assert.Greater(t, table.ID, int64(0))
			assert.Equal(t, f.workspace.ID, table.WorkspaceID)
			assert.Equal(t, "Characters", table.Name)
			assert.WithinDuration(t, time.Now(), table.CreatedAt, time.Second)
		})
	})

	t.Run("create in foreign or deleted workspace fails", func(t *testing.T) {
		inTx(t, func(f fixture) {
			_, err := f.repo.Create(t.Context(), f.stranger.ID, f.workspace.ID, "Characters")
			require.ErrorIs(t, err, apperrors.ErrWorkspaceNotFound)

			_, err = f.repo.Create(t.Context(), f.owner.ID, f.workspace.ID+1000, "Characters")
			require.ErrorIs(t, err, apperrors.ErrWorkspaceNotFound)

			require.NoError(t, f.workspaces.Delete(t.Context(), f.owner.ID, f.workspace.ID))
			_, err = f.repo.Create(t.Context(), f.owner.ID, f.workspace.ID, "Characters")
			require.ErrorIs(t, err, apperrors.ErrWorkspaceNotFound)
		})
	})

	t.Run("get is scoped by workspace owner", func(t *testing.T) {
		inTx(t, func(f fixture) {
			table, err := f.repo.Create(t.Context(), f.owner.ID, f.workspace.ID, "Characters")
			require.NoError(t, err)

			got, err := f.repo.Get(t.Context(), f.owner.ID, table.ID)
			require.NoError(t, err)
			assert.Equal(t, table, got)

			_, err = f.repo.Get(t.Context(), f.stranger.ID, table.ID)
			require.ErrorIs(t, err, apperrors.ErrTableNotFound)
		})
	})

	t.Run("list by workspace", func(t *testing.T) {
		inTx(t, func(f fixture) {
			first, err := f.repo.Create(t.Context(), f.owner.ID, f.workspace.ID, "First")
			require.NoError(t, err)
			second, err := f.repo.Create(t.Context(), f.owner.ID, f.workspace.ID, "Second")
			require.NoError(t, err)
			other, err := f.workspaces.Create(t.Context(), f.owner.ID, "Other")
			require.NoError(t, err)
			_, err = f.repo.Create(t.Context(), f.owner.ID, other.ID, "Elsewhere")
			require.NoError(t, err)

			list, err := f.repo.ListByWorkspace(t.Context(), f.owner.ID, f.workspace.ID)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, first.ID, list[0].ID)
			assert.Equal(t, second.ID, list[1].ID)

			list, err = f.repo.ListByWorkspace(t.Context(), f.stranger.ID, f.workspace.ID)
			require.NoError(t, err)
			require.Empty(t, list)
		})
	})

	t.Run("rename", func(t *testing.T) {
		inTx(t, func(f fixture) {
			table, err := f.repo.Create(t.Context(), f.owner.ID, f.workspace.ID, "Old")
			require.NoError(t, err)

			got, err := f.repo.Rename(t.Context(), f.owner.ID, table.ID, "New")
			require.NoError(t, err)
			assert.Equal(t, "New", got.Name)
			assert.Equal(t, table.WorkspaceID, got.WorkspaceID)

			_, err = f.repo.Rename(t.Context(), f.stranger.ID, table.ID, "Mine")
			require.ErrorIs(t, err, apperrors.ErrTableNotFound)
		})
	})

	t.Run("delete is logical", func(t *testing.T) {
		inTx(t, func(f fixture) {
			table, err := f.repo.Create(t.Context(), f.owner.ID, f.workspace.ID, "Temp")
			require.NoError(t, err)

			err = f.repo.Delete(t.Context(), f.stranger.ID, table.ID)
			require.ErrorIs(t, err, apperrors.ErrTableNotFound)

			err = f.repo.Delete(t.Context(), f.owner.ID, table.ID)
			require.NoError(t, err)

			err = f.repo.Delete(t.Context(), f.owner.ID, table.ID)
			require.ErrorIs(t, err, apperrors.ErrTableNotFound)
			_, err = f.repo.Get(t.Context(), f.owner.ID, table.ID)
			require.ErrorIs(t, err, apperrors.ErrTableNotFound)

			var active bool
			err = f.repo.DB.QueryRow(t.Context(), "SELECT is_active FROM tables WHERE id = $1", table.ID).Scan(&active)
			require.NoError(t, err)
			require.False(t, active)
		})
	})

	t.Run("tables of deleted workspace are hidden", func(t *testing.T) {
		inTx(t, func(f fixture) {
			table, err := f.repo.Create(t.Context(), f.owner.ID, f.workspace.ID, "Characters")
			require.NoError(t, err)

			require.NoError(t, f.workspaces.Delete(t.Context(), f.owner.ID, f.workspace.ID))

			_, err = f.repo.Get(t.Context(), f.owner.ID, table.ID)
			require.ErrorIs(t, err, apperrors.ErrTableNotFound)
			list, err := f.repo.ListByWorkspace(t.Context(), f.owner.ID, f.workspace.ID)
			require.NoError(t, err)
			require.Empty(t, list)
		})
	})

	t.Run("tables follow reassigned workspace", func(t *testing.T) {
		inTx(t, func(f fixture) {
			table, err := f.repo.Create(t.Context(), f.owner.ID, f.workspace.ID, "Characters")
			require.NoError(t, err)

			_, err = f.workspaces.Reassign(t.Context(), f.owner.ID, f.stranger.ID)
			require.NoError(t, err)

			got, err := f.repo.Get(t.Context(), f.stranger.ID, table.ID)
			require.NoError(t, err)
			assert.Equal(t, table.ID, got.ID)

			_, err = f.repo.Get(t.Context(), f.owner.ID, table.ID)
			require.ErrorIs(t, err, apperrors.ErrTableNotFound)
		})
	})
}
