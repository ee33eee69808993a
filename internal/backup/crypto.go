package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// A sealed snapshot is
//
//	magic(4) version(1) salt(16) nonce(12) ciphertext
//
// and the 33-byte header is authenticated along with the ciphertext.
const (
	magic       = "TNBK"
	version     = 1
	saltSize    = 16
	nonceSize   = 12
	headerSize  = len(magic) + 1 + saltSize + nonceSize
	keySize     = 32
	argonTime   = 3
	argonMemKiB = 64 * 1024
	argonLanes  = 4
)

var (
	// ErrNotSnapshot means the data does not start with a snapshot header.
	ErrNotSnapshot = errors.New("not a tenantry snapshot")
	// ErrDecrypt is returned for a wrong passphrase or a damaged snapshot.
	ErrDecrypt = errors.New("decrypt snapshot")
)

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemKiB, argonLanes, keySize)
}

func aead(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-256-GCM under an Argon2id key. Every call
// draws a fresh salt and nonce.
func Seal(plaintext []byte, passphrase string) ([]byte, error) {
	header := make([]byte, headerSize)
	copy(header, magic)
	header[len(magic)] = version
	if _, err := rand.Read(header[len(magic)+1:]); err != nil {
		return nil, fmt.Errorf("random salt and nonce: %w", err)
	}
	salt := header[len(magic)+1 : len(magic)+1+saltSize]
	nonce := header[headerSize-nonceSize:]

	gcm, err := aead(passphrase, salt)
	if err != nil {
		return nil, err
	}
	out := make([]byte, headerSize, headerSize+len(plaintext)+gcm.Overhead())
	copy(out, header)
	return gcm.Seal(out, nonce, plaintext, header), nil
}

// Unseal reverses Seal.
func Unseal(data []byte, passphrase string) ([]byte, error) {
	if len(data) < headerSize || !bytes.HasPrefix(data, []byte(magic)) {
		return nil, ErrNotSnapshot
	}
	if v := data[len(magic)]; v != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrNotSnapshot, v)
	}
	header := data[:headerSize]
	salt := header[len(magic)+1 : len(magic)+1+saltSize]
	nonce := header[headerSize-nonceSize:]

	gcm, err := aead(passphrase, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, data[headerSize:], header)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
