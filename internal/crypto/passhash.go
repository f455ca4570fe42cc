// Package crypto hashes and verifies dispatcher account passwords.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. Login is infrequent, so memory cost wins over
// latency here.
const (
	hashTime    uint32 = 3
	hashMemory  uint32 = 64 * 1024 // KiB
	hashThreads uint8  = 1
	hashKeyLen  uint32 = 32
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashPassword derives the Argon2id hash of password under salt.
func HashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, hashTime, hashMemory, hashThreads, hashKeyLen)
}

// VerifyPassword reports whether password matches the stored hash. The
// comparison is constant time.
func VerifyPassword(password, salt, expected []byte) bool {
	got := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}
