package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPasswordMismatch = errors.New("password does not match")
	ErrInvalidHash      = errors.New("invalid password hash")
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	// Returns ErrPasswordMismatch if password is wrong
	Compare(hashedPassword string, password string) error
}

const (
	HasherArgon2id = "argon2id"
	HasherBcrypt   = "bcrypt"
)

// Used when hasher not configured explicitly
var DefaultHasher PasswordHasher = NewSchemeHasher(NewArgon2idHasher())

// Return hasher by its configuration name
// Whatever the name, hashes of every known scheme could be compared
func NewHasher(name string) (PasswordHasher, error) {
	switch name {
	case "", HasherArgon2id:
		return NewSchemeHasher(NewArgon2idHasher()), nil
	case HasherBcrypt:
		return NewSchemeHasher(BcryptHasher{}), nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q, use one of: %s, %s", name, HasherArgon2id, HasherBcrypt)
	}
}

// SchemeHasher writes new hashes with the configured hasher
// and compares stored ones with the hasher that wrote them, found by hash prefix
// So users keep signing in after PASSWORD_HASHER is switched
type SchemeHasher struct {
	primary PasswordHasher

	argon2id Argon2idHasher
	bcrypt   BcryptHasher
}

func NewSchemeHasher(primary PasswordHasher) SchemeHasher {
	h := SchemeHasher{
		primary:  primary,
		argon2id: NewArgon2idHasher(),
	}

	switch p := primary.(type) {
	case Argon2idHasher:
		h.argon2id = p
	case BcryptHasher:
		h.bcrypt = p
	}

	return h
}

func (h SchemeHasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

func (h SchemeHasher) Compare(hashedPassword string, password string) error {
	switch {
	case strings.HasPrefix(hashedPassword, "$argon2id$"):
		return h.argon2id.Compare(hashedPassword, password)
	case strings.HasPrefix(hashedPassword, "$2a$"),
		strings.HasPrefix(hashedPassword, "$2b$"),
		strings.HasPrefix(hashedPassword, "$2y$"):
		return h.bcrypt.Compare(hashedPassword, password)
	default:
		return ErrInvalidHash
	}
}
