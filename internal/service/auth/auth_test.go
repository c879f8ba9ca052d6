package auth

import (
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/taledynamic/internal/apperrors"
	"github.com/nkiryanov/taledynamic/internal/models"
	"github.com/nkiryanov/taledynamic/internal/repository"
	"github.com/nkiryanov/taledynamic/internal/repository/postgres"
	"github.com/nkiryanov/taledynamic/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/taledynamic/internal/testutil"
)

// Argon2id with low memory cost to keep tests fast
func fastHasher() PasswordHasher {
	h := NewArgon2idHasher()
	h.Params.MemoryKiB = 1024
	return h
}

func Test_AuthService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	hasher := fastHasher()

	newService := func(t *testing.T, storage repository.Storage, now func() time.Time) *AuthService {
		tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret", Now: now})
		require.NoError(t, err, "token manager should be created without errors")

		s, err := NewService(Config{Hasher: hasher, Now: now}, tokens, storage)
		require.NoError(t, err, "auth service should be created without errors")
		return s
	}

	createUser := func(t *testing.T, storage repository.Storage, email string, password string) models.User {
		hash, err := hasher.Hash(password)
		require.NoError(t, err)
		user, err := storage.User().CreateUser(t.Context(), email, hash)
		require.NoError(t, err)
		return user
	}

	inTx := func(t *testing.T, fn func(s *AuthService, storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			fn(newService(t, storage, nil), storage)
		})
	}

	t.Run("new fails without deps", func(t *testing.T) {
		_, err := NewService(Config{}, nil, nil)
		require.Error(t, err)
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("authenticate ok", func(t *testing.T) {
			inTx(t, func(s *AuthService, storage repository.Storage) {
				user := createUser(t, storage, "user@example.com", "password123")

				session, err := s.Authenticate(t.Context(), "User@Example.com ", "password123", "10.0.0.1")

				require.NoError(t, err)
				require.Equal(t, user.ID, session.UserID)
				require.Equal(t, "user@example.com", session.Email)
				require.NotEmpty(t, session.Tokens.Access.Value)
				require.Len(t, session.Tokens.Refresh.Value, 64)

				tokens, err := storage.Refresh().ListByUser(t.Context(), user.ID)
				require.NoError(t, err)
				require.Len(t, tokens, 1, "one refresh token has to be persisted")
				require.Equal(t, session.Tokens.Refresh.Value, tokens[0].Token)
				require.Equal(t, "10.0.0.1", tokens[0].CreatedByIP)
				require.WithinDuration(t, time.Now().Add(7*24*time.Hour), tokens[0].ExpiresAt, time.Minute)

				got, err := s.UserFromAccess(t.Context(), session.Tokens.Access.Value)
				require.NoError(t, err, "access token has to resolve user")
				require.Equal(t, user.ID, got.ID)
			})
		})

		t.Run("empty credentials fail", func(t *testing.T) {
			inTx(t, func(s *AuthService, _ repository.Storage) {
				_, err := s.Authenticate(t.Context(), "", "password123", "")
				require.ErrorIs(t, err, apperrors.ErrInvalidRequest)

				_, err = s.Authenticate(t.Context(), "user@example.com", "", "")
				require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
			})
		})

		t.Run("wrong password fail", func(t *testing.T) {
			inTx(t, func(s *AuthService, storage repository.Storage) {
				user := createUser(t, storage, "user@example.com", "password123")

				_, err := s.Authenticate(t.Context(), "user@example.com", "wrong-password", "")

				require.ErrorIs(t, err, apperrors.ErrUserNotFound)
				tokens, err := storage.Refresh().ListByUser(t.Context(), user.ID)
				require.NoError(t, err)
				require.Empty(t, tokens, "no token must be issued")
			})
		})

		t.Run("hash written by other scheme", func(t *testing.T) {
			testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
				storage := postgres.NewStorage(tx)
				tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"})
				require.NoError(t, err)
				s, err := NewService(Config{Hasher: NewSchemeHasher(hasher)}, tokens, storage)
				require.NoError(t, err)

				// Stored before the hasher was switched to argon2id
				hash, err := BcryptHasher{Cost: 4}.Hash("password123")
				require.NoError(t, err)
				user, err := storage.User().CreateUser(t.Context(), "old@example.com", hash)
				require.NoError(t, err)

				session, err := s.Authenticate(t.Context(), "old@example.com", "password123", "")
				require.NoError(t, err)
				require.Equal(t, user.ID, session.UserID)

				_, err = s.Authenticate(t.Context(), "old@example.com", "wrong-password", "")
				require.ErrorIs(t, err, apperrors.ErrUserNotFound, "wrong password is not an internal error")
			})
		})

		t.Run("unknown email fail", func(t *testing.T) {
			inTx(t, func(s *AuthService, _ repository.Storage) {
				_, err := s.Authenticate(t.Context(), "nobody@example.com", "password123", "")

				require.ErrorIs(t, err, apperrors.ErrUserNotFound)
			})
		})

		t.Run("deactivated user fail", func(t *testing.T) {
			inTx(t, func(s *AuthService, storage repository.Storage) {
				user := createUser(t, storage, "user@example.com", "password123")
				require.NoError(t, storage.User().Deactivate(t.Context(), user.ID))

				_, err := s.Authenticate(t.Context(), "user@example.com", "password123", "")

				require.ErrorIs(t, err, apperrors.ErrUserNotFound)
			})
		})
	})

	t.Run("Refresh", func(t *testing.T) {
		t.Run("token from authenticate accepted", func(t *testing.T) {
			inTx(t, func(s *AuthService, storage repository.Storage) {
				user := createUser(t, storage, "user@example.com", "password123")
				session, err := s.Authenticate(t.Context(), "user@example.com", "password123", "10.0.0.1")
				require.NoError(t, err)

				refreshed, err := s.Refresh(t.Context(), session.Tokens.Refresh.Value, "10.0.0.2")

				require.NoError(t, err)
				require.Equal(t, user.ID, refreshed.UserID)
				require.Equal(t, user.Email, refreshed.Email)
				require.NotEqual(t, session.Tokens.Refresh.Value, refreshed.Tokens.Refresh.Value)
				require.NotEmpty(t, refreshed.Tokens.Access.Value)

				old, err := storage.Refresh().Get(t.Context(), session.Tokens.Refresh.Value)
				require.NoError(t, err)
				require.True(t, old.IsRevoked())
				require.Equal(t, "10.0.0.2", *old.RevokedByIP)
				require.Equal(t, refreshed.Tokens.Refresh.Value, *old.ReplacedByToken)
			})
		})

		t.Run("second refresh with same token fail", func(t *testing.T) {
			inTx(t, func(s *AuthService, storage repository.Storage) {
				createUser(t, storage, "user@example.com", "password123")
				session, err := s.Authenticate(t.Context(), "user@example.com", "password123", "")
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), session.Tokens.Refresh.Value, "")
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), session.Tokens.Refresh.Value, "")
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound, "rotated token must not be accepted again")
			})
		})

		t.Run("chain", func(t *testing.T) {
			inTx(t, func(s *AuthService, storage repository.Storage) {
				user := createUser(t, storage, "user@example.com", "password123")
				session, err := s.Authenticate(t.Context(), "user@example.com", "password123", "")
				require.NoError(t, err)

				const n = 4
				chain := []string{session.Tokens.Refresh.Value}
				for range n {
					session, err = s.Refresh(t.Context(), session.Tokens.Refresh.Value, "")
					require.NoError(t, err)
					chain = append(chain, session.Tokens.Refresh.Value)
				}

				tokens, err := storage.Refresh().ListByUser(t.Context(), user.ID)
				require.NoError(t, err)
				require.Len(t, tokens, n+1, "tokens are never deleted")

				now := time.Now()
				for i := range n {
					token, err := storage.Refresh().Get(t.Context(), chain[i])
					require.NoError(t, err)
					assert.False(t, token.IsActive(now), "token %d must be inactive", i)
					require.NotNil(t, token.ReplacedByToken)
					assert.Equal(t, chain[i+1], *token.ReplacedByToken, "token %d must point to its successor", i)
				}

				last, err := storage.Refresh().Get(t.Context(), chain[n])
				require.NoError(t, err)
				assert.True(t, last.IsActive(now), "only last token is active")
				assert.Nil(t, last.ReplacedByToken)
			})
		})

		t.Run("unknown token fail", func(t *testing.T) {
			inTx(t, func(s *AuthService, _ repository.Storage) {
				_, err := s.Refresh(t.Context(), "unknown", "")
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)

				_, err = s.Refresh(t.Context(), "", "")
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
			})
		})

		t.Run("expired token fail", func(t *testing.T) {
			testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
				storage := postgres.NewStorage(tx)
				now := time.Now()
				s := newService(t, storage, func() time.Time { return now })
				createUser(t, storage, "user@example.com", "password123")
				session, err := s.Authenticate(t.Context(), "user@example.com", "password123", "")
				require.NoError(t, err)

				now = now.Add(7*24*time.Hour + time.Second)

				_, err = s.Refresh(t.Context(), session.Tokens.Refresh.Value, "")
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)

				err = s.Revoke(t.Context(), session.Tokens.Refresh.Value, "")
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
			})
		})

		t.Run("token of deleted user fail", func(t *testing.T) {
			inTx(t, func(s *AuthService, storage repository.Storage) {
				user := createUser(t, storage, "user@example.com", "password123")
				session, err := s.Authenticate(t.Context(), "user@example.com", "password123", "")
				require.NoError(t, err)
				require.NoError(t, storage.User().Deactivate(t.Context(), user.ID))

				_, err = s.Refresh(t.Context(), session.Tokens.Refresh.Value, "")
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)

				_, err = s.UserFromAccess(t.Context(), session.Tokens.Access.Value)
				require.ErrorIs(t, err, apperrors.ErrUserNotFound, "access token of deleted user must not resolve")
			})
		})
	})

	t.Run("Revoke", func(t *testing.T) {
		t.Run("revoke ok", func(t *testing.T) {
			inTx(t, func(s *AuthService, storage repository.Storage) {
				createUser(t, storage, "user@example.com", "password123")
				session, err := s.Authenticate(t.Context(), "user@example.com", "password123", "")
				require.NoError(t, err)

				err = s.Revoke(t.Context(), session.Tokens.Refresh.Value, "10.0.0.3")
				require.NoError(t, err)

				token, err := storage.Refresh().Get(t.Context(), session.Tokens.Refresh.Value)
				require.NoError(t, err)
				require.True(t, token.IsRevoked())
				require.Equal(t, "10.0.0.3", *token.RevokedByIP)
				require.Nil(t, token.ReplacedByToken, "revoke does not create successor")

				_, err = s.Refresh(t.Context(), session.Tokens.Refresh.Value, "")
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound, "revoked token ends the chain")
			})
		})

		t.Run("revoke revoked fail", func(t *testing.T) {
			inTx(t, func(s *AuthService, storage repository.Storage) {
				createUser(t, storage, "user@example.com", "password123")
				session, err := s.Authenticate(t.Context(), "user@example.com", "password123", "")
				require.NoError(t, err)
				require.NoError(t, s.Revoke(t.Context(), session.Tokens.Refresh.Value, ""))

				err = s.Revoke(t.Context(), session.Tokens.Refresh.Value, "")

				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
			})
		})

		t.Run("revoke rotated fail", func(t *testing.T) {
			inTx(t, func(s *AuthService, storage repository.Storage) {
				createUser(t, storage, "user@example.com", "password123")
				session, err := s.Authenticate(t.Context(), "user@example.com", "password123", "")
				require.NoError(t, err)
				_, err = s.Refresh(t.Context(), session.Tokens.Refresh.Value, "")
				require.NoError(t, err)

				err = s.Revoke(t.Context(), session.Tokens.Refresh.Value, "")

				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
			})
		})
	})

	t.Run("concurrent refresh wins once", func(t *testing.T) {
		// Real pool is used here: every caller needs its own connection
		storage := postgres.NewStorage(pg.Pool)
		s := newService(t, storage, nil)
		user := createUser(t, storage, "concurrent@example.com", "password123")
		session, err := s.Authenticate(t.Context(), user.Email, "password123", "")
		require.NoError(t, err)

		const callers = 5
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			rejected  int
		)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Refresh(t.Context(), session.Tokens.Refresh.Value, "")

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case assert.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound):
					rejected++
				}
			}()
		}
		wg.Wait()

		require.Equal(t, 1, succeeded, "exactly one refresh must win")
		require.Equal(t, callers-1, rejected)

		tokens, err := storage.Refresh().ListByUser(t.Context(), user.ID)
		require.NoError(t, err)
		require.Len(t, tokens, 2, "only one successor must be issued")
	})
}
