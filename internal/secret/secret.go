// Package secret seals small payloads (OAuth tokens, snapshot backups) with a
// passphrase-derived AES-256-GCM key.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4

	stringPrefix = "enc:v1:"
)

// ErrNoPassphrase is returned when sealing is requested without a passphrase.
var ErrNoPassphrase = errors.New("secret: no passphrase configured")

// GenerateSalt returns 16 cryptographically random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a 32-byte AES-256 key from a passphrase and salt using Argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

// Sealer encrypts with one passphrase. Derived keys are cached per salt so
// repeated seals and opens within a process pay for Argon2 once.
type Sealer struct {
	passphrase string
	salt       []byte

	mu   sync.Mutex
	keys map[string][]byte
}

// NewSealer returns a Sealer, or nil when passphrase is empty. A nil *Sealer
// passes strings through unchanged.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, nil
	}
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	return &Sealer{passphrase: passphrase, salt: salt, keys: make(map[string][]byte)}, nil
}

func (s *Sealer) key(salt []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[string(salt)]; ok {
		return k
	}
	k := DeriveKey(s.passphrase, salt)
	s.keys[string(salt)] = k
	return k
}

// Seal encrypts plaintext. Output format: [16-byte salt][12-byte nonce][ciphertext].
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	if s == nil {
		return nil, ErrNoPassphrase
	}
	gcm, err := newGCM(s.key(s.salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	out = append(out, s.salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// Open decrypts data produced by Seal, reading the salt from its first 16 bytes.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	if s == nil {
		return nil, ErrNoPassphrase
	}
	if len(data) < saltSize+nonceSize {
		return nil, fmt.Errorf("sealed data too small")
	}
	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	ciphertext := data[saltSize+nonceSize:]

	gcm, err := newGCM(s.key(salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// SealString seals a token for storage in a text column. Empty strings and a
// nil Sealer pass through unchanged.
func (s *Sealer) SealString(v string) (string, error) {
	if s == nil || v == "" {
		return v, nil
	}
	data, err := s.Seal([]byte(v))
	if err != nil {
		return "", err
	}
	return stringPrefix + base64.StdEncoding.EncodeToString(data), nil
}

// OpenString reverses SealString. Values without the sealed prefix are
// returned as-is so plaintext rows written before sealing was enabled still load.
func (s *Sealer) OpenString(v string) (string, error) {
	if !strings.HasPrefix(v, stringPrefix) {
		return v, nil
	}
	if s == nil {
		return "", ErrNoPassphrase
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(v, stringPrefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed string: %w", err)
	}
	plaintext, err := s.Open(data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}
