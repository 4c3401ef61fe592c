package shroud

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// Encryption sizes.
const (
	NonceSize = 12 // 96-bit GCM nonce
	TagSize   = 16 // 128-bit GCM authentication tag
)

// Encryption errors.
var (
	ErrInvalidKeySize  = errors.New("invalid key size")
	ErrCiphertextShort = errors.New("ciphertext too short")
	errOpen            = errors.New("authentication failed")
)

// sealed is the detached output of one AES-GCM encryption.
type sealed struct {
	ciphertext []byte
	tag        []byte
	nonce      []byte
}

// aesGCM implements AES-256-GCM with a detached tag.
type aesGCM struct {
	gcm cipher.AEAD
}

// newAESGCM returns an AES-256-GCM cipher. Key must be 32 bytes.
func newAESGCM(key []byte) (*aesGCM, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidKeySize, keySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCMWithTagSize(block, TagSize)
	if err != nil {
		return nil, err
	}

	return &aesGCM{gcm: gcm}, nil
}

// seal encrypts plaintext under a fresh random nonce. additional is
// authenticated but not encrypted.
func (e *aesGCM) seal(plaintext, additional []byte) (sealed, error) {
	nonce, err := randomBytes(e.gcm.NonceSize())
	if err != nil {
		return sealed{}, err
	}

	out := e.gcm.Seal(nil, nonce, plaintext, additional)
	split := len(out) - TagSize
	return sealed{
		ciphertext: out[:split],
		tag:        out[split:],
		nonce:      nonce,
	}, nil
}

// open authenticates and decrypts. Any tag mismatch returns errOpen.
func (e *aesGCM) open(s sealed, additional []byte) ([]byte, error) {
	if len(s.nonce) != e.gcm.NonceSize() || len(s.tag) != TagSize {
		return nil, ErrCiphertextShort
	}

	buf := make([]byte, 0, len(s.ciphertext)+len(s.tag))
	buf = append(buf, s.ciphertext...)
	buf = append(buf, s.tag...)

	plaintext, err := e.gcm.Open(nil, s.nonce, buf, additional)
	if err != nil {
		return nil, errOpen
	}
	return plaintext, nil
}
