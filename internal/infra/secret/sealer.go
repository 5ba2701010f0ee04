package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	saltLen  = 16
	nonceLen = 24
	keyLen   = 32
)

var (
	// ErrMalformed means the sealed value is not something Seal produced.
	ErrMalformed = errors.New("sealed secret is malformed")
	// ErrOpen means the passphrase does not match or the value was tampered with.
	ErrOpen = errors.New("sealed secret cannot be opened")
)

// Sealer encrypts small secrets (API keys) at rest with NaCl secretbox. The box key is
// derived from a passphrase with scrypt and a random per-value salt.
type Sealer struct {
	passphrase []byte
	rand       io.Reader
}

// NewSealer returns a sealer, or nil when the passphrase is empty. A nil *Sealer
// passes values through unchanged.
func NewSealer(passphrase string) *Sealer {
	if passphrase == "" {
		return nil
	}
	return &Sealer{passphrase: []byte(passphrase), rand: rand.Reader}
}

// Seal encrypts plaintext and returns base64(salt | nonce | box).
func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil {
		return plaintext, nil
	}
	buf := make([]byte, saltLen+nonceLen)
	if _, err := io.ReadFull(s.rand, buf); err != nil {
		return "", err
	}
	key, err := s.derive(buf[:saltLen])
	if err != nil {
		return "", err
	}
	var nonce [nonceLen]byte
	copy(nonce[:], buf[saltLen:])
	out := secretbox.Seal(buf, []byte(plaintext), &nonce, key)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	if s == nil {
		return sealed, nil
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < saltLen+nonceLen+secretbox.Overhead {
		return "", ErrMalformed
	}
	key, err := s.derive(raw[:saltLen])
	if err != nil {
		return "", err
	}
	var nonce [nonceLen]byte
	copy(nonce[:], raw[saltLen:saltLen+nonceLen])
	plain, ok := secretbox.Open(nil, raw[saltLen+nonceLen:], &nonce, key)
	if !ok {
		return "", ErrOpen
	}
	return string(plain), nil
}

func (s *Sealer) derive(salt []byte) (*[keyLen]byte, error) {
	k, err := scrypt.Key(s.passphrase, salt, 1<<15, 8, 1, keyLen)
	if err != nil {
		return nil, err
	}
	var key [keyLen]byte
	copy(key[:], k)
	return &key, nil
}
