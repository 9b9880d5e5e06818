package cardnum

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/bankcards/card-service/internal/errs"
)

// Codec encrypts card numbers for storage and decrypts them for masking.
// The key is injected at construction; there is no ambient key state.
type Codec struct {
	key []byte
}

// NewCodec creates a codec from a symmetric key. The key must be 16, 24,
// or 32 bytes (AES-128/192/256).
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("%w: key must be 16, 24, or 32 bytes, got %d", errs.ErrCrypto, len(key))
	}
	return &Codec{key: key}, nil
}

// Encrypt encrypts a raw card number using AES-CBC with a random IV and
// PKCS#7 padding, returning hex(iv || ciphertext).
func (c *Codec) Encrypt(number string) (string, error) {
	if number == "" {
		return "", fmt.Errorf("%w: input is empty", errs.ErrCrypto)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create cipher: %v", errs.ErrCrypto, err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("%w: failed to generate IV: %v", errs.ErrCrypto, err)
	}

	// PKCS#7 padding
	data := []byte(number)
	padding := aes.BlockSize - len(data)%aes.BlockSize
	for i := 0; i < padding; i++ {
		data = append(data, byte(padding))
	}

	ciphertext := make([]byte, len(data))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, data)

	return hex.EncodeToString(append(iv, ciphertext...)), nil
}

// Decrypt is the inverse of Encrypt. It fails on truncated, corrupted, or
// tampered input.
func (c *Codec) Decrypt(encrypted string) (string, error) {
	if encrypted == "" {
		return "", fmt.Errorf("%w: encrypted data is empty", errs.ErrCrypto)
	}

	data, err := hex.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: failed to decode hex: %v", errs.ErrCrypto, err)
	}
	if len(data) < aes.BlockSize {
		return "", fmt.Errorf("%w: encrypted data too short: %d bytes", errs.ErrCrypto, len(data))
	}

	iv := data[:aes.BlockSize]
	ciphertext := data[aes.BlockSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: invalid ciphertext length: %d bytes", errs.ErrCrypto, len(ciphertext))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create cipher: %v", errs.ErrCrypto, err)
	}

	plaintext := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plaintext, ciphertext)

	// Strip and verify PKCS#7 padding.
	padding := int(plaintext[len(plaintext)-1])
	if padding == 0 || padding > aes.BlockSize {
		return "", fmt.Errorf("%w: invalid padding value: %d", errs.ErrCrypto, padding)
	}
	for i := len(plaintext) - padding; i < len(plaintext); i++ {
		if int(plaintext[i]) != padding {
			return "", fmt.Errorf("%w: invalid padding bytes", errs.ErrCrypto)
		}
	}

	return string(plaintext[:len(plaintext)-padding]), nil
}

// DecryptMasked decrypts a stored card number and returns only its masked
// form. The clear number never leaves this function.
func (c *Codec) DecryptMasked(encrypted string) (string, error) {
	number, err := c.Decrypt(encrypted)
	if err != nil {
		return "", err
	}
	return Mask(number)
}
