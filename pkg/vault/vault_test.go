package vault

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testPassword = "test_password_123"
const testPlaintext = "This is a secret message that needs encryption!"

func TestVaultEncryptDecrypt(t *testing.T) {
	vault := New(testPassword)

	encrypted, err := vault.Encrypt([]byte(testPlaintext))
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	if !strings.HasPrefix(encrypted, VaultHeader) {
		t.Errorf("Encrypted data should start with %s", VaultHeader)
	}
	if !strings.Contains(encrypted, VaultFormatVersion) {
		t.Errorf("Encrypted data should contain version %s", VaultFormatVersion)
	}
	if !strings.Contains(encrypted, VaultCipher) {
		t.Errorf("Encrypted data should contain cipher %s", VaultCipher)
	}

	decrypted, err := vault.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decryption failed: %v", err)
	}

	if string(decrypted) != testPlaintext {
		t.Errorf("Decrypted text doesn't match original: got %s, want %s",
			string(decrypted), testPlaintext)
	}
}

func TestVaultWrongPassword(t *testing.T) {
	vault1 := New(testPassword)
	vault2 := New("wrong_password")

	encrypted, err := vault1.Encrypt([]byte(testPlaintext))
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	_, err = vault2.Decrypt(encrypted)
	if err != ErrInvalidPassword {
		t.Errorf("Expected ErrInvalidPassword, got %v", err)
	}
}

func TestVaultSamePasswordDifferentOutput(t *testing.T) {
	v := New(testPassword)

	e1, err := v.Encrypt([]byte(testPlaintext))
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}
	e2, err := v.Encrypt([]byte(testPlaintext))
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	if e1 == e2 {
		t.Errorf("random salt/nonce should produce different ciphertext across calls")
	}

	for _, e := range []string{e1, e2} {
		d, err := v.Decrypt(e)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if string(d) != testPlaintext {
			t.Errorf("decrypted mismatch: got %s", d)
		}
	}
}

func TestVaultInvalidFormat(t *testing.T) {
	vault := New(testPassword)

	tests := []struct {
		name  string
		input string
	}{
		{"Empty string", ""},
		{"Invalid header", "NOT_A_VAULT_FILE"},
		{"Incomplete header", "$NEXUS_VAULT"},
		{"Invalid base64", "$NEXUS_VAULT;1.0;AES256\n!!!not-base64!!!"},
		{"Short payload", "$NEXUS_VAULT;1.0;AES256\nAAAA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := vault.Decrypt(tt.input)
			if err == nil {
				t.Errorf("expected an error for input %q", tt.input)
			}
		})
	}
}

func TestIsVaultFile(t *testing.T) {
	tests := []struct {
		data     []byte
		expected bool
	}{
		{[]byte("$NEXUS_VAULT;1.0;AES256\n"), true},
		{[]byte("regular text"), false},
		{[]byte(""), false},
		{[]byte("$NEXUS_VAULT"), true},
	}

	for _, tt := range tests {
		result := IsVaultFile(tt.data)
		if result != tt.expected {
			t.Errorf("IsVaultFile(%s) = %v, want %v", tt.data, result, tt.expected)
		}
	}
}

func TestVaultMultilinePayload(t *testing.T) {
	v := New(testPassword)
	long := strings.Repeat("a", 500)

	encrypted, err := v.Encrypt([]byte(long))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(encrypted, "\n"), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected wrapped payload across multiple lines, got %d", len(lines))
	}
	for _, line := range lines[1:] {
		if len(line) > 80 {
			t.Errorf("payload line exceeds 80 columns: %d", len(line))
		}
	}

	decrypted, err := v.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if string(decrypted) != long {
		t.Errorf("round trip mismatch")
	}
}

func TestVaultString(t *testing.T) {
	vault := New(testPassword)
	vs := NewVaultString(vault, "secret_value")

	encrypted, err := vs.Encrypt()
	if err != nil {
		t.Fatalf("VaultString encryption failed: %v", err)
	}

	if !strings.HasPrefix(encrypted, "!vault |") {
		t.Errorf("Encrypted string should start with '!vault |'")
	}

	decrypted, err := vs.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("VaultString decryption failed: %v", err)
	}

	if decrypted != "secret_value" {
		t.Errorf("Decrypted value doesn't match: got %s, want secret_value", decrypted)
	}
}

func TestVaultManager(t *testing.T) {
	manager := NewManager()

	manager.AddVault("default", "password1")
	manager.AddVault("prod", "password2")
	manager.AddVault("dev", "password3")

	vault, err := manager.GetVault("prod")
	if err != nil {
		t.Errorf("Failed to get vault: %v", err)
	}
	if vault.vaultID != "prod" {
		t.Errorf("Wrong vault ID: got %s, want prod", vault.vaultID)
	}

	encrypted, err := manager.Encrypt([]byte("test data"), "dev")
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	decrypted, err := manager.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decryption failed: %v", err)
	}

	if string(decrypted) != "test data" {
		t.Errorf("Decrypted data doesn't match")
	}
}

func TestVaultManagerFiles(t *testing.T) {
	tmpDir := t.TempDir()

	passwordFile := filepath.Join(tmpDir, "vault_pass.txt")
	if err := os.WriteFile(passwordFile, []byte(testPassword), 0600); err != nil {
		t.Fatalf("Failed to create password file: %v", err)
	}

	manager := NewManager()
	if err := manager.AddVaultFromFile("default", passwordFile); err != nil {
		t.Fatalf("Failed to add vault from file: %v", err)
	}

	testFile := filepath.Join(tmpDir, "test.yml")
	testContent := []byte("secret: mysecret\nkey: value")
	if err := os.WriteFile(testFile, testContent, 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if err := manager.EncryptFile(testFile, "default"); err != nil {
		t.Fatalf("Failed to encrypt file: %v", err)
	}

	encrypted, err := os.ReadFile(testFile)
	if err != nil {
		t.Fatalf("Failed to read encrypted file: %v", err)
	}

	if !IsVaultFile(encrypted) {
		t.Error("File should be encrypted")
	}

	decrypted, err := manager.DecryptFile(testFile)
	if err != nil {
		t.Fatalf("Failed to decrypt file: %v", err)
	}

	if !bytes.Equal(decrypted, testContent) {
		t.Error("Decrypted content doesn't match original")
	}
}

func TestVaultRekey(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.yml")

	manager := NewManager()
	manager.AddVault("old", "old_password")
	manager.AddVault("new", "new_password")

	content := []byte("secret: value")
	if err := os.WriteFile(testFile, content, 0600); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	if err := manager.EncryptFile(testFile, "old"); err != nil {
		t.Fatalf("Failed to encrypt file: %v", err)
	}

	if err := manager.Rekey(testFile, "old", "new"); err != nil {
		t.Fatalf("Failed to rekey file: %v", err)
	}

	oldVault := New("old_password")
	data, _ := os.ReadFile(testFile)
	_, err := oldVault.Decrypt(string(data))
	if err != ErrInvalidPassword {
		t.Error("Old password should not work after rekey")
	}

	newVault := New("new_password")
	decrypted, err := newVault.Decrypt(string(data))
	if err != nil {
		t.Errorf("New password should work: %v", err)
	}

	if !bytes.Equal(decrypted, content) {
		t.Error("Decrypted content doesn't match original")
	}
}

func TestProcessVariables(t *testing.T) {
	manager := NewManager()
	manager.AddVault("default", testPassword)

	vault := New(testPassword)
	vs := NewVaultString(vault, "secret_password")
	encrypted, err := vs.Encrypt()
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}

	vars := map[string]interface{}{
		"plain_var": "plain_value",
		"vault_var": encrypted,
		"nested": map[string]interface{}{
			"plain":  "value",
			"secret": encrypted,
		},
		"list": []interface{}{
			"item1",
			encrypted,
			"item3",
		},
	}

	if err := manager.ProcessVariables(vars); err != nil {
		t.Fatalf("Failed to process variables: %v", err)
	}

	if vars["vault_var"] != "secret_password" {
		t.Errorf("vault_var not decrypted: got %v", vars["vault_var"])
	}

	nested := vars["nested"].(map[string]interface{})
	if nested["secret"] != "secret_password" {
		t.Errorf("nested.secret not decrypted: got %v", nested["secret"])
	}

	list := vars["list"].([]interface{})
	if list[1] != "secret_password" {
		t.Errorf("list[1] not decrypted: got %v", list[1])
	}

	if vars["plain_var"] != "plain_value" {
		t.Errorf("plain_var changed: got %v", vars["plain_var"])
	}
}
