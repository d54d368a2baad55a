package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
)

const (
	// EncryptionMagicHeader prefixes encrypted backup files.
	EncryptionMagicHeader = "PREPENC1"

	defaultArgon2Time    = 1
	defaultArgon2Memory  = 64 * 1024 // KiB
	defaultArgon2Threads = 4
	argon2KeyLen         = 32 // AES-256

	saltLength = 16
	gcmTagSize = 16
)

// ErrNotEncrypted is returned when decrypting a file without the magic header.
var ErrNotEncrypted = errors.New("file is not an encrypted backup")

// ErrDecryptFailed is returned when authentication of an encrypted backup
// fails, usually because of a wrong password.
var ErrDecryptFailed = errors.New("wrong password or corrupted data")

// EncryptionConfig holds the password and Argon2id cost parameters used to
// derive the backup key.
type EncryptionConfig struct {
	Password string

	// Argon2Time is the number of passes. Default: 1
	Argon2Time uint32

	// Argon2Memory is the memory cost in KiB. Default: 64 MiB
	Argon2Memory uint32

	// Argon2Threads is the parallelism. Default: 4
	Argon2Threads uint8
}

// DefaultEncryptionConfig returns encryption config with default Argon2id costs.
func DefaultEncryptionConfig(password string) *EncryptionConfig {
	return &EncryptionConfig{
		Password:      password,
		Argon2Time:    defaultArgon2Time,
		Argon2Memory:  defaultArgon2Memory,
		Argon2Threads: defaultArgon2Threads,
	}
}

func (c *EncryptionConfig) deriveKey(salt []byte) []byte {
	t, m, p := c.Argon2Time, c.Argon2Memory, c.Argon2Threads
	if t == 0 {
		t = defaultArgon2Time
	}
	if m == 0 {
		m = defaultArgon2Memory
	}
	if p == 0 {
		p = defaultArgon2Threads
	}
	return argon2.IDKey([]byte(c.Password), salt, t, m, p, argon2KeyLen)
}

func (c *EncryptionConfig) newGCM(salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// EncryptData encrypts plaintext with AES-256-GCM under a key derived from
// the password. The result is salt || nonce || ciphertext.
func EncryptData(plaintext []byte, config *EncryptionConfig) ([]byte, error) {
	if config == nil || config.Password == "" {
		return nil, fmt.Errorf("encryption config with password required")
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := config.newGCM(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(salt)+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// DecryptData reverses EncryptData.
func DecryptData(encrypted []byte, config *EncryptionConfig) ([]byte, error) {
	if config == nil || config.Password == "" {
		return nil, fmt.Errorf("encryption config with password required")
	}
	if len(encrypted) < saltLength+gcmTagSize {
		return nil, fmt.Errorf("encrypted data too short")
	}

	salt, rest := encrypted[:saltLength], encrypted[saltLength:]
	gcm, err := config.newGCM(salt)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize()+gcmTagSize {
		return nil, fmt.Errorf("encrypted data too short for nonce")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", errors.Join(ErrDecryptFailed, err))
	}
	return plaintext, nil
}

// EncryptFile writes the encrypted contents of sourcePath, prefixed with
// EncryptionMagicHeader, to destPath.
func EncryptFile(sourcePath, destPath string, config *EncryptionConfig) error {
	plaintext, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}
	encrypted, err := EncryptData(plaintext, config)
	if err != nil {
		return fmt.Errorf("encryption failed: %w", err)
	}
	data := append([]byte(EncryptionMagicHeader), encrypted...)
	if err := os.WriteFile(destPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write encrypted file: %w", err)
	}
	return nil
}

// DecryptFile writes the decrypted contents of an encrypted backup to destPath.
func DecryptFile(sourcePath, destPath string, config *EncryptionConfig) error {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to read encrypted file: %w", err)
	}
	if !bytes.HasPrefix(data, []byte(EncryptionMagicHeader)) {
		return ErrNotEncrypted
	}
	plaintext, err := DecryptData(data[len(EncryptionMagicHeader):], config)
	if err != nil {
		return fmt.Errorf("decryption failed: %w", err)
	}
	if err := os.WriteFile(destPath, plaintext, 0o600); err != nil {
		return fmt.Errorf("failed to write decrypted file: %w", err)
	}
	return nil
}

// IsEncrypted reports whether the file starts with EncryptionMagicHeader.
func IsEncrypted(filePath string) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer func() { _ = file.Close() }() //nolint:errcheck // Ignore error on cleanup

	header := make([]byte, len(EncryptionMagicHeader))
	n, err := io.ReadFull(file, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return n == len(header) && string(header) == EncryptionMagicHeader, nil
}
