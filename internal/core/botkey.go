package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// newBotKey derives a bot credential from the identity and fresh random
// material. The result is stored and reused; it never changes for a user.
func newBotKey(identity string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	h := sha3.New256()
	h.Write([]byte(identity))
	h.Write(salt)
	return hex.EncodeToString(h.Sum(nil)), nil
}
