package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Cost is the fixed bcrypt work factor for every stored digest.
const Cost = 12

// MaxLength is the longest input bcrypt accepts.
const MaxLength = 72

var ErrTooLong = errors.New("password exceeds 72 bytes")

// dummyHash is compared against when the account does not exist so a failed
// login costs the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), Cost)

// Hash returns a salted bcrypt digest of pass.
func Hash(pass string) (string, error) {
	const op = "password.Hash"

	if len(pass) > MaxLength {
		return "", fmt.Errorf("%s: %w", op, ErrTooLong)
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(pass), Cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(digest), nil
}

// Verify reports whether pass matches digest. The comparison is constant time.
func Verify(pass, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(pass)) == nil
}

// VerifyDummy burns one comparison and always reports false.
func VerifyDummy(pass string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(pass))
	return false
}
