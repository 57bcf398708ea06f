package hash

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// TokenHasher turns guest cart tokens into the keyed digests stored in the
// database. Raw tokens only ever live in the client's cookie.
type TokenHasher struct {
	key []byte
}

func NewTokenHasher(key []byte) (*TokenHasher, error) {
	if len(key) == 0 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("cart token key must be 1..%d bytes", blake2b.Size)
	}
	return &TokenHasher{key: append([]byte(nil), key...)}, nil
}

func (h *TokenHasher) Digest(token string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// key length is checked in NewTokenHasher
		panic(err)
	}
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewToken returns a random URL-safe cart token.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
