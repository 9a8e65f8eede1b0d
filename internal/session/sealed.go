package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// ErrBadKey is returned when a key file does not hold a usable key.
var ErrBadKey = errors.New("invalid session key")

// SealedStore encrypts values before handing them to another Store.
// Each namespace seals with its own key derived from the master key.
type SealedStore struct {
	inner  Store
	key    [keySize]byte
	logger *slog.Logger
}

// NewSealedStore wraps inner. master must be 32 bytes.
func NewSealedStore(inner Store, master []byte, namespace string, logger *slog.Logger) (*SealedStore, error) {
	if len(master) != keySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrBadKey, keySize, len(master))
	}
	s := &SealedStore{inner: inner, logger: discardLogger(logger)}
	kdf := hkdf.New(sha256.New, master, nil, []byte("quill-session:"+namespace))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return s, nil
}

// LoadOrCreateKey reads a 32-byte key from path, creating it with 0600
// permissions when it does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, decErr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if decErr != nil || len(key) != keySize {
			return nil, fmt.Errorf("%w: %s", ErrBadKey, path)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read session key: %w", err)
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key) + "\n"
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("write session key: %w", err)
	}
	return key, nil
}

func (s *SealedStore) Get(ctx context.Context, key string) (string, bool) {
	sealed, ok := s.inner.Get(ctx, key)
	if !ok {
		return "", false
	}
	plain, err := s.open(sealed)
	if err != nil {
		s.logger.Warn("session value could not be decrypted", "key", key, "error", err)
		return "", false
	}
	return plain, true
}

func (s *SealedStore) Set(ctx context.Context, key, value string) error {
	sealed, err := s.seal(value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *SealedStore) Clear(ctx context.Context, key string) error {
	return s.inner.Clear(ctx, key)
}

func (s *SealedStore) Close() error {
	return s.inner.Close()
}

func (s *SealedStore) seal(value string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

func (s *SealedStore) open(sealed string) (string, error) {
	box, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	if len(box) < nonceSize+secretbox.Overhead {
		return "", errors.New("sealed value too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errors.New("sealed value failed authentication")
	}
	return string(plain), nil
}
