package cache

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// cipherBox derives an AES-256-GCM key from the configured passphrase and
// encrypts/decrypts the notes table's text/tags columns. modernc.org/sqlite
// has no SQLCipher-equivalent PRAGMA key, so whole-file encryption is
// approximated at the column level (see DESIGN.md). The FTS shadow table
// mirrors whatever is written to notes.text/tags verbatim — when encryption
// is enabled, FTS indexes ciphertext, which keeps the store's row-count
// invariant intact but means full-text search degrades to no functional
// matches. This tradeoff is deliberate and documented, not an oversight.
type cipherBox struct {
	aead cipher.AEAD
}

func newCipherBox(passphrase string, saltHex string, iterations int) (*cipherBox, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, errors.New("cache: invalid db_key_salt_hex")
	}
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &cipherBox{aead: aead}, nil
}

func newSalt() (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	return hex.EncodeToString(salt), nil
}

func (c *cipherBox) encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (c *cipherBox) decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", errors.New("cache: ciphertext too short")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
