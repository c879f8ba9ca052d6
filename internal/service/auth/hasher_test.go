package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_BcryptHasher(t *testing.T) {
	t.Parallel()

	h := BcryptHasher{Cost: 4}

	t.Run("hash password", func(t *testing.T) {
		got, err := h.Hash("password")
		require.NoError(t, err)

		require.Len(t, got, 60, "bcrypt length is 60 letters as far as i know")
		require.Equal(t, "$2a$", got[:4], "bcrypt has should have prefix '$2a$'")
	})

	t.Run("compare password ok", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		err = h.Compare(hash, "password")

		require.NoError(t, err)
	})

	t.Run("fail compare if wrong password", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		err = h.Compare(hash, "wrong")

		require.ErrorIs(t, err, ErrPasswordMismatch)
	})

	t.Run("long passwords are not truncated", func(t *testing.T) {
		long := strings.Repeat("a", 80)
		hash, err := h.Hash(long + "1")
		require.NoError(t, err)

		err = h.Compare(hash, long+"2")

		require.ErrorIs(t, err, ErrPasswordMismatch)
	})
}

func Test_Argon2idHasher(t *testing.T) {
	t.Parallel()

	h := NewArgon2idHasher()
	h.Params.MemoryKiB = 1024 // keep tests fast

	t.Run("hash password", func(t *testing.T) {
		got, err := h.Hash("password")
		require.NoError(t, err)

		require.True(t, strings.HasPrefix(got, "$argon2id$v=19$m=1024,t=1,p=4$"), "unexpected hash prefix: %s", got)
		require.NotContains(t, got, "password")
	})

	t.Run("hash is salted", func(t *testing.T) {
		first, err := h.Hash("password")
		require.NoError(t, err)
		second, err := h.Hash("password")
		require.NoError(t, err)

		require.NotEqual(t, first, second, "same password must give different hashes")
	})

	t.Run("empty password fail", func(t *testing.T) {
		_, err := h.Hash("")

		require.Error(t, err)
	})

	t.Run("compare password ok", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		err = h.Compare(hash, "password")

		require.NoError(t, err)
	})

	t.Run("fail compare if wrong password", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		err = h.Compare(hash, "wrong")

		require.ErrorIs(t, err, ErrPasswordMismatch)
	})

	t.Run("fail compare malformed hash", func(t *testing.T) {
		for _, hash := range []string{
			"",
			"password",
			"$argon2i$v=19$m=1024,t=1,p=4$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5a2V5a2V5",
			"$argon2id$v=18$m=1024,t=1,p=4$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5a2V5a2V5",
			"$argon2id$v=19$m=0,t=1,p=4$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5a2V5a2V5",
			"$argon2id$v=19$m=1024,t=1,p=4$!!!$a2V5a2V5a2V5a2V5a2V5a2V5",
		} {
			err := h.Compare(hash, "password")
			require.ErrorIs(t, err, ErrInvalidHash, "hash %q must be rejected", hash)
		}
	})

	t.Run("refuse too expensive hash", func(t *testing.T) {
		expensive := h
		expensive.Params.MemoryKiB = h.Params.MemoryKiB * 4
		hash, err := expensive.Hash("password")
		require.NoError(t, err)

		err = h.Compare(hash, "password")

		require.ErrorIs(t, err, ErrInvalidHash)
	})
}

func Test_NewHasher(t *testing.T) {
	t.Parallel()

	h, err := NewHasher("")
	require.NoError(t, err)
	hash, err := h.Hash("password")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$"), "argon2id is default")

	h, err = NewHasher("bcrypt")
	require.NoError(t, err)
	hash, err = h.Hash("password")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$2a$"))

	_, err = NewHasher("md5")
	require.Error(t, err)
}

func Test_SchemeHasher(t *testing.T) {
	t.Parallel()

	argon := NewArgon2idHasher()
	argon.Params.MemoryKiB = 1024
	bcryptHasher := BcryptHasher{Cost: 4}

	argonHash, err := argon.Hash("password")
	require.NoError(t, err)
	bcryptHash, err := bcryptHasher.Hash("password")
	require.NoError(t, err)

	tests := []struct {
		name    string
		primary PasswordHasher
	}{
		{"argon2id configured", argon},
		{"bcrypt configured", bcryptHasher},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSchemeHasher(tt.primary)

			for _, stored := range []string{argonHash, bcryptHash} {
				require.NoError(t, h.Compare(stored, "password"), "hash %q must be verified", stored)
				require.ErrorIs(t, h.Compare(stored, "wrong"), ErrPasswordMismatch, "hash %q must be verified", stored)
			}

			err := h.Compare("plain-text", "plain-text")
			require.ErrorIs(t, err, ErrInvalidHash)
		})
	}

	t.Run("new hashes use configured scheme", func(t *testing.T) {
		hash, err := NewSchemeHasher(bcryptHasher).Hash("password")
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(hash, "$2a$"))

		hash, err = NewSchemeHasher(argon).Hash("password")
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,"))
	})
}
