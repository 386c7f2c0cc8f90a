// Package secrets stores named secret values in an encrypted file. Values
// are sealed with AES-256-GCM under a key derived from the passphrase via
// scrypt, framed in a small versioned envelope.
package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/scrypt"
)

const (
	envelopeMagic   = "MSEC"
	envelopeVersion = byte(1)
	saltSize        = 16
	nonceSize       = 12
)

var (
	errEmptyPassphrase = errors.New("passphrase cannot be empty")
	errInvalidEnvelope = errors.New("invalid secrets envelope")
	errDecryptFailed   = errors.New("decrypt failed: wrong passphrase or corrupted store")
)

// ErrEmptyPassphrase reports a missing passphrase.
func ErrEmptyPassphrase() error {
	return errEmptyPassphrase
}

// ErrInvalidEnvelope reports a payload that is not a secrets envelope.
func ErrInvalidEnvelope() error {
	return errInvalidEnvelope
}

// ErrDecryptFailed reports an envelope that could not be opened.
func ErrDecryptFailed() error {
	return errDecryptFailed
}

// Encrypt seals plaintext into a fresh envelope. Every call generates a new
// salt and nonce, so the same plaintext never encrypts to the same bytes.
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errEmptyPassphrase
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	header := append([]byte(envelopeMagic), envelopeVersion)
	ciphertext := aead.Seal(nil, nonce, plaintext, header)

	var buf bytes.Buffer
	buf.Write(header)
	buf.Write(salt)
	buf.Write(nonce)
	buf.Write(ciphertext)
	return buf.Bytes(), nil
}

// IsEnvelope reports whether payload carries the secrets envelope framing.
// It inspects only the header; the payload may still fail to decrypt.
func IsEnvelope(payload []byte) bool {
	headerSize := len(envelopeMagic) + 1
	if len(payload) < headerSize+saltSize+nonceSize+1 {
		return false
	}
	return string(payload[:len(envelopeMagic)]) == envelopeMagic && payload[len(envelopeMagic)] == envelopeVersion
}

// Decrypt opens an envelope produced by Encrypt.
func Decrypt(payload []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errEmptyPassphrase
	}

	headerSize := len(envelopeMagic) + 1
	minSize := headerSize + saltSize + nonceSize + 1
	if len(payload) < minSize {
		return nil, fmt.Errorf("%w: payload too small", errInvalidEnvelope)
	}
	if string(payload[:len(envelopeMagic)]) != envelopeMagic {
		return nil, fmt.Errorf("%w: bad header", errInvalidEnvelope)
	}
	if payload[len(envelopeMagic)] != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", errInvalidEnvelope, payload[len(envelopeMagic)])
	}

	offset := headerSize
	salt := payload[offset : offset+saltSize]
	offset += saltSize
	nonce := payload[offset : offset+nonceSize]
	offset += nonceSize
	ciphertext := payload[offset:]

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	header := append([]byte(envelopeMagic), envelopeVersion)
	plaintext, err := aead.Open(nil, nonce, ciphertext, header)
	if err != nil {
		return nil, errDecryptFailed
	}
	return plaintext, nil
}

func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	passBytes := []byte(passphrase)
	key, err := scrypt.Key(passBytes, salt, 1<<15, 8, 1, 32)
	zeroBytes(passBytes)
	runtime.KeepAlive(passBytes)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return aead, nil
}

func zeroBytes(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
