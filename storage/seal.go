package storage

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealInfo = "moviecache storage v1"

// sealer encrypts values at rest. A nil sealer stores values as is.
type sealer struct {
	aead cipher.AEAD
}

func newSealer(id, key string) (*sealer, error) {
	if key == "" {
		return nil, nil
	}

	derived := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(key), []byte(id), []byte(sealInfo))
	if _, err := io.ReadFull(kdf, derived); err != nil {
		return nil, errors.Wrap(err, "failed to derive encryption key")
	}
	aead, err := chacha20poly1305.NewX(derived)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cipher")
	}

	return &sealer{aead: aead}, nil
}

// seal returns base64(nonce | ciphertext) of value
func (s *sealer) seal(value string) (string, error) {
	if s == nil {
		return value, nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "failed to generate nonce")
	}
	out := s.aead.Seal(nonce, nonce, []byte(value), nil)

	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *sealer) open(sealed string) (string, error) {
	if s == nil {
		return sealed, nil
	}
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.Wrap(err, "sealed value is not base64")
	}
	if len(data) < s.aead.NonceSize() {
		return "", errors.New("sealed value too short")
	}
	nonce, ciphertext := data[:s.aead.NonceSize()], data[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to decrypt value")
	}

	return string(plain), nil
}
