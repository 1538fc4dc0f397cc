package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Per-device sealing for private key material. A random seed lives in a 0600
// file; AES-256-GCM keys are derived from it per purpose with HKDF-SHA256.

const (
	seedFile = "device.seed"
	seedSize = 32
)

var (
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrBadSeed            = errors.New("device seed corrupt")
)

// Sealer encrypts and decrypts blobs bound to one purpose.
type Sealer struct {
	seed []byte
}

// NewSealer loads the device seed from dir, creating it on first use.
func NewSealer(dir string) (*Sealer, error) {
	path, err := seedPath(dir)
	if err != nil {
		return nil, err
	}
	seed, err := loadOrCreateSeed(path)
	if err != nil {
		return nil, err
	}
	return &Sealer{seed: seed}, nil
}

// NewSealerFromSeed is used by tests and by callers that manage the seed themselves.
func NewSealerFromSeed(seed []byte) (*Sealer, error) {
	if len(seed) != seedSize {
		return nil, ErrBadSeed
	}
	return &Sealer{seed: append([]byte(nil), seed...)}, nil
}

// Seal encrypts plain for purpose. The nonce is prepended to the output.
func (s *Sealer) Seal(purpose string, plain []byte) ([]byte, error) {
	gcm, err := s.aead(purpose)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, []byte(norm(purpose))), nil
}

// Open reverses Seal. Ciphertext sealed for another purpose fails authentication.
func (s *Sealer) Open(purpose string, ciphertext []byte) ([]byte, error) {
	gcm, err := s.aead(purpose)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce := ciphertext[:gcm.NonceSize()]
	body := ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, []byte(norm(purpose)))
}

func (s *Sealer) aead(purpose string) (cipher.AEAD, error) {
	if purpose = norm(purpose); purpose == "" {
		return nil, fmt.Errorf("purpose required")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, s.seed, nil, []byte("idojourney/"+purpose)), key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func seedPath(dir string) (string, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, "idojourney")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil { // restrict directory
		return "", err
	}
	return filepath.Join(dir, seedFile), nil
}

func loadOrCreateSeed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != seedSize {
			return nil, ErrBadSeed
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	seed := make([]byte, seedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, seed, 0o600); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, err
	}
	return seed, nil
}

func norm(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}
