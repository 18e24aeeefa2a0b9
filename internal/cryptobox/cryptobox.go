package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"regexp"
)

const nonceSize = 16

var (
	// ErrCiphertextInvalid indicates a stored blob that is not a valid
	// cryptobox ciphertext (bad encoding, truncated, or failed auth).
	ErrCiphertextInvalid = errors.New("ciphertext invalid")
)

var base32Pattern = regexp.MustCompile(`^[A-Z2-7]+=*$`)

// Box performs symmetric encryption of small secrets at rest. The key is
// derived once from the two site-wide secrets; each Encrypt call uses a
// fresh random 16-byte nonce, and the stored form is base64(nonce || sealed).
type Box struct {
	aead cipher.AEAD
}

// New derives the encryption key from the concatenation of the two site
// keys and returns a ready Box. Both keys must be non-empty.
func New(siteKey, secondKey string) (*Box, error) {
	if siteKey == "" || secondKey == "" {
		return nil, errors.New("cryptobox requires two non-empty site keys")
	}

	key := sha256.Sum256([]byte(siteKey + secondKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, err
	}

	return &Box{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns the
// base64-encoded blob suitable for storage as a string attribute.
func (b *Box) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Malformed, truncated, or
// tampered blobs return [ErrCiphertextInvalid], never a panic.
func (b *Box) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertextInvalid, err)
	}
	if len(raw) <= nonceSize {
		return "", fmt.Errorf("%w: blob too short", ErrCiphertextInvalid)
	}

	plain, err := b.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertextInvalid, err)
	}

	return string(plain), nil
}

// IsLegacyPlaintext reports whether a stored value looks like a bare base32
// secret written before encryption at rest was introduced. Such values are
// usable as-is and are re-encrypted opportunistically on first read.
func IsLegacyPlaintext(value string) bool {
	return value != "" && base32Pattern.MatchString(value)
}
