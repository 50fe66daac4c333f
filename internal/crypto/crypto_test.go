package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/notesync/internal/apperr"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	cell, err := Init("correct horse battery staple", salt)
	require.NoError(t, err)

	sealed, err := cell.Encrypt([]byte("hello world"))
	require.NoError(t, err)

	plain, err := cell.Decrypt(sealed)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(plain))
}

func TestInitSameInputsDeriveSameKey(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	a, err := Init("password", salt)
	require.NoError(t, err)
	b, err := Init("password", salt)
	require.NoError(t, err)

	sealed, err := a.Encrypt([]byte("data"))
	require.NoError(t, err)
	plain, err := b.Decrypt(sealed)
	require.NoError(t, err)
	require.Equal(t, "data", string(plain))
}

func TestDecryptFailsWithWrongPassword(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	cell, err := Init("right-password", salt)
	require.NoError(t, err)
	sealed, err := cell.Encrypt([]byte("secret"))
	require.NoError(t, err)

	wrong, err := Init("wrong-password", salt)
	require.NoError(t, err)
	_, err = wrong.Decrypt(sealed)
	require.True(t, apperr.Is(err, apperr.Encryption))
}

func TestInitRejectsWrongSaltSize(t *testing.T) {
	_, err := Init("password", []byte("too-short"))
	require.True(t, apperr.Is(err, apperr.Validation))
}

func TestClearZeroesKeyMaterial(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	cell, err := Init("password", salt)
	require.NoError(t, err)

	cell.Clear()
	for _, b := range cell.key {
		require.Equal(t, byte(0), b)
	}
}

func TestDecryptRejectsTruncatedCiphertext(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	cell, err := Init("password", salt)
	require.NoError(t, err)
	_, err = cell.Decrypt([]byte("short"))
	require.True(t, apperr.Is(err, apperr.Encryption))
}
