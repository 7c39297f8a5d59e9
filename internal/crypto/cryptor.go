package crypto

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrEmptyKey   = errors.New("encryption key is empty")
	ErrCiphertext = errors.New("malformed ciphertext")
)

// Cryptor seals short secrets (OAuth tokens, client secret) with
// XChaCha20-Poly1305 and encodes them as base64 for option storage.
type Cryptor struct {
	key [chacha20poly1305.KeySize]byte
}

// NewCryptor derives the AEAD key from secret. Changing the secret makes
// previously stored values undecryptable.
func NewCryptor(secret string) (*Cryptor, error) {
	if secret == "" {
		return nil, ErrEmptyKey
	}
	return &Cryptor{key: blake2b.Sum256([]byte(secret))}, nil
}

func (c *Cryptor) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cryptor) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}

	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrCiphertext
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	return string(plain), nil
}

// OptionStore is the key/value store the vault writes through.
type OptionStore interface {
	GetOption(ctx context.Context, name string) (string, error)
	SetOption(ctx context.Context, name, value string) error
}

// Vault stores encrypted values in an OptionStore.
type Vault struct {
	options OptionStore
	cryptor *Cryptor
}

func NewVault(options OptionStore, cryptor *Cryptor) *Vault {
	return &Vault{options: options, cryptor: cryptor}
}

// Get returns the decrypted value of name. Missing or undecryptable values
// read as empty, which callers treat as "not authorized".
func (v *Vault) Get(ctx context.Context, name string) (string, error) {
	blob, err := v.options.GetOption(ctx, name)
	if err != nil {
		return "", err
	}
	if blob == "" {
		return "", nil
	}
	plain, err := v.cryptor.Decrypt(blob)
	if errors.Is(err, ErrCiphertext) {
		return "", nil
	}
	return plain, err
}

func (v *Vault) Set(ctx context.Context, name, value string) error {
	blob, err := v.cryptor.Encrypt(value)
	if err != nil {
		return err
	}
	return v.options.SetOption(ctx, name, blob)
}
