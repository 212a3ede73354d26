// Copyright (C) 2025 dwn-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package vault stores a tenant's private key material at rest, encrypted
// under a passphrase-derived key, so cmd/dwnctl never needs to hold a raw
// private key longer than one process invocation.
package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrKeyNotFound       = errors.New("key not found")
	ErrInvalidPassphrase = errors.New("invalid passphrase")
	ErrInvalidKeyID      = errors.New("invalid key ID")
)

const pbkdf2Iterations = 100_000

// SecureVault is the contract cmd/dwnctl keygen/serve rely on for holding a
// tenant's private key material across process restarts.
type SecureVault interface {
	StoreEncrypted(keyID string, key []byte, passphrase string) error
	LoadDecrypted(keyID string, passphrase string) ([]byte, error)
	SetPermissions(keyID string, mode os.FileMode) error
	Delete(keyID string) error
	Exists(keyID string) bool
	ListKeys() []string
}

// EncryptedKeyData is the on-disk envelope for one vault entry.
type EncryptedKeyData struct {
	Version    string    `json:"version"`
	KeyID      string    `json:"key_id"`
	Algorithm  string    `json:"algorithm"`
	Salt       string    `json:"salt"`
	Nonce      string    `json:"nonce"`
	Ciphertext string    `json:"ciphertext"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FileVault implements SecureVault over the filesystem, encrypting each key
// with ChaCha20-Poly1305 under a PBKDF2-derived, per-key salt.
type FileVault struct {
	basePath string
	mu       sync.RWMutex
}

var _ SecureVault = (*FileVault)(nil)

// NewFileVault creates base path if needed and returns a vault rooted there.
func NewFileVault(basePath string) (*FileVault, error) {
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}
	return &FileVault{basePath: basePath}, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, chacha20poly1305.KeySize, sha256.New)
}

// StoreEncrypted encrypts and stores key, overwriting any existing entry.
func (v *FileVault) StoreEncrypted(keyID string, key []byte, passphrase string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if keyID == "" {
		return ErrInvalidKeyID
	}

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := chacha20poly1305.New(deriveKey(passphrase, salt))
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, key, nil)

	now := time.Now()
	encData := EncryptedKeyData{
		Version:    "1.0",
		KeyID:      keyID,
		Algorithm:  "chacha20poly1305",
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	jsonData, err := json.MarshalIndent(encData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal encrypted data: %w", err)
	}

	if err := os.WriteFile(v.getKeyPath(keyID), jsonData, 0600); err != nil {
		return fmt.Errorf("failed to write encrypted key: %w", err)
	}
	return nil
}

// LoadDecrypted decrypts the stored entry under passphrase.
func (v *FileVault) LoadDecrypted(keyID string, passphrase string) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if keyID == "" {
		return nil, ErrInvalidKeyID
	}

	jsonData, err := os.ReadFile(v.getKeyPath(keyID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to read encrypted key: %w", err)
	}

	var encData EncryptedKeyData
	if err := json.Unmarshal(jsonData, &encData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal encrypted data: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(encData.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(encData.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encData.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	aead, err := chacha20poly1305.New(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	return plaintext, nil
}

// SetPermissions sets the on-disk file mode for a stored key.
func (v *FileVault) SetPermissions(keyID string, mode os.FileMode) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if keyID == "" {
		return ErrInvalidKeyID
	}
	if err := os.Chmod(v.getKeyPath(keyID), mode); err != nil {
		if os.IsNotExist(err) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	return nil
}

// Delete removes a stored key.
func (v *FileVault) Delete(keyID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if keyID == "" {
		return ErrInvalidKeyID
	}
	if err := os.Remove(v.getKeyPath(keyID)); err != nil {
		if os.IsNotExist(err) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// Exists reports whether keyID has a stored entry.
func (v *FileVault) Exists(keyID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if keyID == "" {
		return false
	}
	_, err := os.Stat(v.getKeyPath(keyID))
	return err == nil
}

// ListKeys returns every stored key ID.
func (v *FileVault) ListKeys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var ids []string
	files, err := os.ReadDir(v.basePath)
	if err != nil {
		return ids
	}
	for _, file := range files {
		if !file.IsDir() && filepath.Ext(file.Name()) == ".json" {
			ids = append(ids, file.Name()[:len(file.Name())-len(".json")])
		}
	}
	return ids
}

func (v *FileVault) getKeyPath(keyID string) string {
	safeKeyID := filepath.Base(keyID)
	return filepath.Join(v.basePath, safeKeyID+".json")
}

// MemoryVault is an in-memory SecureVault for tests, using the same
// ChaCha20-Poly1305 construction as FileVault but with no passphrase-derived
// key stretching (tests run hundreds of these, PBKDF2 would dominate runtime).
type MemoryVault struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

var _ SecureVault = (*MemoryVault)(nil)

// NewMemoryVault returns an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{keys: make(map[string][]byte)}
}

func (m *MemoryVault) StoreEncrypted(keyID string, key []byte, passphrase string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if keyID == "" {
		return ErrInvalidKeyID
	}

	salt := sha256.Sum256([]byte(passphrase))
	aead, err := chacha20poly1305.New(salt[:])
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	m.keys[keyID] = aead.Seal(nonce, nonce, key, nil)
	return nil
}

func (m *MemoryVault) LoadDecrypted(keyID string, passphrase string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if keyID == "" {
		return nil, ErrInvalidKeyID
	}
	stored, ok := m.keys[keyID]
	if !ok {
		return nil, ErrKeyNotFound
	}

	salt := sha256.Sum256([]byte(passphrase))
	aead, err := chacha20poly1305.New(salt[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	nonceSize := aead.NonceSize()
	if len(stored) < nonceSize {
		return nil, ErrInvalidPassphrase
	}
	plaintext, err := aead.Open(nil, stored[:nonceSize], stored[nonceSize:], nil)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	return plaintext, nil
}

func (m *MemoryVault) SetPermissions(keyID string, mode os.FileMode) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.keys[keyID]; !ok {
		return ErrKeyNotFound
	}
	return nil
}

func (m *MemoryVault) Delete(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if keyID == "" {
		return ErrInvalidKeyID
	}
	if _, ok := m.keys[keyID]; !ok {
		return ErrKeyNotFound
	}
	delete(m.keys, keyID)
	return nil
}

func (m *MemoryVault) Exists(keyID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[keyID]
	return ok
}

func (m *MemoryVault) ListKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.keys))
	for id := range m.keys {
		ids = append(ids, id)
	}
	return ids
}
