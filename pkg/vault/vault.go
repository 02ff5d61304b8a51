// Package vault provides Nexus Vault authenticated encryption/decryption.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// VaultHeader is the Nexus vault file header prefix
	VaultHeader = "$NEXUS_VAULT"

	// DefaultVaultIDLabel is the default vault ID
	DefaultVaultIDLabel = "default"

	// VaultFormatVersion is the current vault format version
	VaultFormatVersion = "1.0"

	// VaultCipher is the cipher used by the Nexus vault
	VaultCipher = "AES256"

	// SaltLength is the random salt length in bytes
	SaltLength = 16

	// NonceLength is the GCM nonce length in bytes
	NonceLength = 12

	// DerivedKeyLength is the derived AES-256 key length in bytes
	DerivedKeyLength = 32

	// Argon2id parameters, per spec: m=65536 KiB, t=3, p=4
	argonMemoryKiB  = 65536
	argonIterations = 3
	argonThreads    = 4

	// lineWrap is the column at which base64 payload lines wrap
	lineWrap = 80
)

var (
	// ErrInvalidVaultFormat indicates the vault format is invalid
	ErrInvalidVaultFormat = errors.New("invalid vault format")

	// ErrInvalidPassword indicates authentication failed (wrong password or
	// corrupted ciphertext; the two are intentionally indistinguishable)
	ErrInvalidPassword = errors.New("vault authentication failed")

	// ErrUnsupportedVersion indicates an unsupported vault version
	ErrUnsupportedVersion = errors.New("unsupported vault version")
)

// Vault provides encryption and decryption in the Nexus vault format.
type Vault struct {
	password string
	vaultID  string
}

// New creates a new Vault with the given password.
func New(password string) *Vault {
	return &Vault{
		password: password,
		vaultID:  DefaultVaultIDLabel,
	}
}

// NewWithVaultID creates a new Vault with the given password and vault ID.
func NewWithVaultID(password, vaultID string) *Vault {
	return &Vault{
		password: password,
		vaultID:  vaultID,
	}
}

func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonIterations, argonMemoryKiB, argonThreads, DerivedKeyLength)
}

// Encrypt encrypts plaintext data, returning the full wire-format text
// (header line, then base64 payload wrapped at 80 columns).
func (v *Vault) Encrypt(plaintext []byte) (string, error) {
	salt := make([]byte, SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	nonce := make([]byte, NonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	key := deriveKey(v.password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	// Seal appends the authentication tag to the ciphertext.
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	payload := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, ciphertext...)

	encoded := base64.StdEncoding.EncodeToString(payload)

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s;%s;%s\n", VaultHeader, VaultFormatVersion, VaultCipher))
	for i := 0; i < len(encoded); i += lineWrap {
		end := i + lineWrap
		if end > len(encoded) {
			end = len(encoded)
		}
		result.WriteString(encoded[i:end])
		result.WriteString("\n")
	}

	return result.String(), nil
}

// Decrypt decrypts Nexus vault format data.
func (v *Vault) Decrypt(vaultData string) ([]byte, error) {
	lines := strings.Split(strings.TrimSpace(vaultData), "\n")
	if len(lines) < 2 {
		return nil, ErrInvalidVaultFormat
	}

	header := lines[0]
	headerParts := strings.Split(header, ";")
	if len(headerParts) != 3 || headerParts[0] != VaultHeader {
		return nil, ErrInvalidVaultFormat
	}

	if headerParts[1] != VaultFormatVersion {
		return nil, ErrUnsupportedVersion
	}
	if headerParts[2] != VaultCipher {
		return nil, ErrInvalidVaultFormat
	}

	encoded := strings.Join(lines[1:], "")
	if encoded == "" {
		return nil, ErrInvalidVaultFormat
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrInvalidVaultFormat, err)
	}

	if len(payload) < SaltLength+NonceLength {
		return nil, ErrInvalidVaultFormat
	}

	salt := payload[:SaltLength]
	nonce := payload[SaltLength : SaltLength+NonceLength]
	ciphertext := payload[SaltLength+NonceLength:]

	key := deriveKey(v.password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// GCM authentication failure covers both a wrong password and a
		// tampered/corrupted ciphertext; report neither specifically.
		return nil, ErrInvalidPassword
	}

	return plaintext, nil
}

// EncryptFile encrypts a file's contents.
func (v *Vault) EncryptFile(plaintext []byte) ([]byte, error) {
	encrypted, err := v.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}
	return []byte(encrypted), nil
}

// DecryptFile decrypts a file's contents.
func (v *Vault) DecryptFile(ciphertext []byte) ([]byte, error) {
	return v.Decrypt(string(ciphertext))
}

// IsVaultFile checks if data begins with the Nexus vault header.
func IsVaultFile(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte(VaultHeader))
}

// IsVaultString checks if a string is vault encrypted, either as a raw
// vault file or an inline `!vault |` tagged YAML scalar.
func IsVaultString(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, VaultHeader) || strings.HasPrefix(s, "!vault |")
}

// VaultString represents an inline encrypted value embedded in YAML.
type VaultString struct {
	vault *Vault
	value string
}

// NewVaultString creates a new vault string wrapper.
func NewVaultString(vault *Vault, value string) *VaultString {
	return &VaultString{
		vault: vault,
		value: value,
	}
}

// Encrypt encrypts the wrapped value into a YAML-embeddable `!vault |` block.
func (vs *VaultString) Encrypt() (string, error) {
	encrypted, err := vs.vault.Encrypt([]byte(vs.value))
	if err != nil {
		return "", err
	}

	lines := strings.Split(encrypted, "\n")
	var result strings.Builder
	result.WriteString("!vault |\n")
	for _, line := range lines {
		if line != "" {
			result.WriteString("          ")
			result.WriteString(line)
			result.WriteString("\n")
		}
	}

	return result.String(), nil
}

// Decrypt decrypts an inline `!vault |` tagged value.
func (vs *VaultString) Decrypt(encrypted string) (string, error) {
	encrypted = strings.TrimPrefix(encrypted, "!vault |")

	lines := strings.Split(encrypted, "\n")
	var cleanLines []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			cleanLines = append(cleanLines, trimmed)
		}
	}

	vaultData := strings.Join(cleanLines, "\n")
	decrypted, err := vs.vault.Decrypt(vaultData)
	if err != nil {
		return "", err
	}

	return string(decrypted), nil
}
