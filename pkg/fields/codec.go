// Package fields provides column types whose stored form differs from their
// in-memory form: encrypted strings and opaque JSON text.
package fields

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrNoCodec is returned when an encrypted value is read or written before
// a codec was installed with SetCodec.
var ErrNoCodec = errors.New("no field codec configured")

// Codec transforms an encrypted column value between its plain and stored
// forms.
type Codec interface {
	Encrypt(plain string) (string, error)
	Decrypt(stored string) (string, error)
}

var (
	codecMu sync.RWMutex
	codec   Codec
)

// SetCodec installs the process-wide codec used by EncryptedString.
func SetCodec(c Codec) {
	codecMu.Lock()
	defer codecMu.Unlock()
	codec = c
}

// CurrentCodec returns the installed codec or nil.
func CurrentCodec() Codec {
	codecMu.RLock()
	defer codecMu.RUnlock()
	return codec
}

// AEADCodec encrypts with XChaCha20-Poly1305. Stored values are the
// base64 encoding of nonce followed by ciphertext.
type AEADCodec struct {
	key []byte
}

// NewAEADCodec builds a codec from a 32 byte key. A base64 encoded key is
// accepted as well.
func NewAEADCodec(key string) (*AEADCodec, error) {
	raw := []byte(key)
	if len(raw) != chacha20poly1305.KeySize {
		decoded, err := base64.StdEncoding.DecodeString(key)
		if err != nil || len(decoded) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("encryption key must be %d bytes or their base64 encoding", chacha20poly1305.KeySize)
		}
		raw = decoded
	}
	return &AEADCodec{key: raw}, nil
}

// Encrypt implements Codec.
func (c *AEADCodec) Encrypt(plain string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt implements Codec.
func (c *AEADCodec) Decrypt(stored string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	sealed, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("encrypted value is not base64: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return "", errors.New("encrypted value too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}
	return string(plain), nil
}

// DecryptStored decodes a raw stored column value with the installed codec.
// It is used when rows are read as plain values instead of into structs.
func DecryptStored(value interface{}) (interface{}, error) {
	var stored string
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		stored = v
	case []byte:
		stored = string(v)
	default:
		return nil, fmt.Errorf("unexpected encrypted value type %T", value)
	}
	c := CurrentCodec()
	if c == nil {
		return nil, ErrNoCodec
	}
	return c.Decrypt(stored)
}
