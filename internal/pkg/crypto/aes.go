// Package crypto provides cryptographic utilities for Emberstore.
// This includes AES-256-GCM encryption of stored secret keys and key generation.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the AES-256 key size in bytes.
	KeySize = 32

	// NonceSize is the GCM nonce size in bytes.
	NonceSize = 12

	// AccessKeyIDLength is the length of AWS-style access key IDs.
	AccessKeyIDLength = 20

	// SecretKeyLength is the length of AWS-style secret keys.
	SecretKeyLength = 40
)

var (
	// ErrInvalidKeySize indicates the encryption key is not 32 bytes.
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes (256 bits)")

	// ErrInvalidCiphertext indicates the ciphertext is too short or malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short or malformed")

	// ErrDecryptionFailed indicates a wrong key or corrupted data.
	ErrDecryptionFailed = errors.New("decryption failed: authentication error")
)

// Encryptor provides AES-256-GCM encryption and decryption for secrets at
// rest. Ciphertexts are self-contained: base64(nonce || ciphertext || tag).
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor creates an Encryptor from a 32-byte master key.
func NewEncryptor(masterKey []byte) (*Encryptor, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{gcm: gcm}, nil
}

// NewEncryptorFromHex creates an Encryptor from a 64-character hex key.
func NewEncryptorFromHex(hexKey string) (*Encryptor, error) {
	key, err := ParseHexKey(hexKey)
	if err != nil {
		return nil, err
	}
	return NewEncryptor(key)
}

// Encrypt seals the plaintext under a fresh random nonce and returns the
// base64-encoded result.
func (e *Encryptor) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a base64-encoded ciphertext produced by Encrypt.
func (e *Encryptor) Decrypt(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	// Nonce, at least one byte of payload, and the GCM tag.
	if len(raw) < NonceSize+1+e.gcm.Overhead() {
		return nil, ErrInvalidCiphertext
	}

	plaintext, err := e.gcm.Open(nil, raw[:NonceSize], raw[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// EncryptString is Encrypt for string plaintexts.
func (e *Encryptor) EncryptString(plaintext string) (string, error) {
	return e.Encrypt([]byte(plaintext))
}

// DecryptString is Decrypt returning a string.
func (e *Encryptor) DecryptString(encoded string) (string, error) {
	plaintext, err := e.Decrypt(encoded)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
