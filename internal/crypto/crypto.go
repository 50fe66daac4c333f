// Package crypto provides the optional at-rest encryption cell: an
// Argon2id-derived key wrapping AES-256-GCM, matching the
// "encryption_salt file + password-derived key" design of the original
// note tool this module continues. There is no ecosystem package in the
// example pack for the AEAD cipher itself, so the construction uses
// crypto/aes and crypto/cipher directly — that part is stdlib by
// necessity, not by default; the KDF still goes through golang.org/x/crypto.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"golang.org/x/crypto/argon2"

	"github.com/kittclouds/notesync/internal/apperr"
)

const (
	saltSize   = 16
	keySize    = 32 // AES-256
	argonTime  = 3
	argonMemKB = 64 * 1024
	argonLanes = 4
)

// Cell holds a derived key in memory and encrypts/decrypts with it. It is
// constructed explicitly by a caller that holds the password — there is no
// package-level singleton, so a process that never touches encryption
// never materializes a key.
type Cell struct {
	key [keySize]byte
}

// NewSalt generates a fresh random salt for first-time setup. Callers
// persist this alongside the encrypted store (the donor's ".encryption_salt"
// file) so future unlocks can rederive the same key from the password.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, apperr.Wrap(apperr.Encryption, err, "generate salt")
	}
	return salt, nil
}

// Init derives a Cell's key from password and salt via Argon2id. The same
// (password, salt) pair always derives the same key, so this is also how
// an existing encrypted store is unlocked.
func Init(password string, salt []byte) (*Cell, error) {
	if len(salt) != saltSize {
		return nil, apperr.Validationf("salt must be %d bytes, got %d", saltSize, len(salt))
	}
	derived := argon2.IDKey([]byte(password), salt, argonTime, argonMemKB, argonLanes, keySize)
	c := &Cell{}
	copy(c.key[:], derived)
	return c, nil
}

// Encrypt seals plaintext with AES-256-GCM, returning nonce||ciphertext.
func (c *Cell) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, apperr.Wrap(apperr.Encryption, err, "init cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperr.Wrap(apperr.Encryption, err, "init gcm")
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, apperr.Wrap(apperr.Encryption, err, "generate nonce")
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt. A wrong key or tampered ciphertext surfaces as
// an Encryption apperr, never a panic.
func (c *Cell) Decrypt(sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, apperr.Wrap(apperr.Encryption, err, "init cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperr.Wrap(apperr.Encryption, err, "init gcm")
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, apperr.New(apperr.Encryption, "ciphertext shorter than nonce")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Encryption, err, "decrypt: wrong password or corrupted data")
	}
	return plaintext, nil
}

// Clear zeroes the key material in place. Callers should call this when a
// Cell is no longer needed, e.g. on app lock.
func (c *Cell) Clear() {
	for i := range c.key {
		c.key[i] = 0
	}
}
