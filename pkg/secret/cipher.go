// Package secret encrypts, masks and hashes provider credentials.
//
// Ciphertexts are base64(salt ‖ iv ‖ tag ‖ ciphertext). Each call draws a
// fresh salt and IV and derives its AES-256-GCM key from the process master
// key with PBKDF2-HMAC-SHA256.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength       = 32
	ivLength         = 16
	tagLength        = 16
	keyLength        = 32
	pbkdf2Iterations = 100000

	developmentSeed = "tournevent-integrations-development-master-key"
)

// ErrDecryption is returned when a blob is malformed or fails
// authentication (tampering, corruption or a different master key).
var ErrDecryption = errors.New("decryption failed")

// Cipher performs authenticated encryption of credential blobs.
type Cipher struct {
	masterKey   []byte
	development bool
}

// NewCipher creates a cipher from a 64 hex character master key. An empty
// key yields a deterministic development key and logs a warning; that key
// must never be used in production.
func NewCipher(masterKeyHex string, logger *otelzap.Logger) (*Cipher, error) {
	masterKeyHex = strings.TrimSpace(masterKeyHex)
	if masterKeyHex == "" {
		if logger != nil {
			logger.Warn("ENCRYPTION_KEY is not set, using the development master key; never run production with it")
		}
		sum := sha256.Sum256([]byte(developmentSeed))
		return &Cipher{masterKey: sum[:], development: true}, nil
	}

	if len(masterKeyHex) != keyLength*2 {
		return nil, fmt.Errorf("master key must be %d hex characters, got %d", keyLength*2, len(masterKeyHex))
	}
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid hex: %w", err)
	}
	return &Cipher{masterKey: key}, nil
}

// IsDevelopmentKey reports whether the cipher runs on the fallback key.
func (c *Cipher) IsDevelopmentKey() bool {
	return c.development
}

// Encrypt seals plaintext and returns the base64 blob.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	iv := make([]byte, ivLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generating iv: %w", err)
	}

	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the tag after the ciphertext; the blob stores it first.
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagLength], sealed[len(sealed)-tagLength:]

	out := make([]byte, 0, saltLength+ivLength+tagLength+len(ct))
	out = append(out, salt...)
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ct...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a blob produced by Encrypt.
func (c *Cipher) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrDecryption, err)
	}
	if len(raw) < saltLength+ivLength+tagLength {
		return "", fmt.Errorf("%w: blob too short", ErrDecryption)
	}

	salt := raw[:saltLength]
	iv := raw[saltLength : saltLength+ivLength]
	tag := raw[saltLength+ivLength : saltLength+ivLength+tagLength]
	ct := raw[saltLength+ivLength+tagLength:]

	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ct)+tagLength)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication tag mismatch", ErrDecryption)
	}
	return string(plain), nil
}

// EncryptJSON marshals v and encrypts the result.
func (c *Cipher) EncryptJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshalling secret: %w", err)
	}
	return c.Encrypt(string(data))
}

// DecryptJSON decrypts blob and unmarshals it into v.
func (c *Cipher) DecryptJSON(blob string, v any) error {
	plain, err := c.Decrypt(blob)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(plain), v); err != nil {
		return fmt.Errorf("%w: decrypted payload is not JSON: %v", ErrDecryption, err)
	}
	return nil
}

func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.masterKey, salt, pbkdf2Iterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating block cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return gcm, nil
}
