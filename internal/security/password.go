package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrCorruptHash marks a stored hash that bcrypt cannot parse. Distinct from
// a plain mismatch, which is not an error.
var ErrCorruptHash = errors.New("corrupt password hash")

// HashPassword hashes a plain text password with bcrypt. cost <= 0 falls
// back to bcrypt's default work factor.
func HashPassword(plain string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password. A wrong
// password returns (false, nil); only an unparseable hash returns an error.
func CheckPassword(hash, plain string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))

	if err == nil {
		return true, nil
	}

	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	return false, ErrCorruptHash
}
