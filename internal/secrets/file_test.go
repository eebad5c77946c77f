// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileBackend_SetGetDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.enc")

	backend, err := NewFileBackend(path, "test-master-key")
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}
	if !backend.Available() {
		t.Fatal("expected backend to be available with explicit master key")
	}

	ctx := context.Background()

	// Get before any Set
	if _, err := backend.Get(ctx); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("Get() before set error = %v, want %v", err, ErrSecretNotFound)
	}

	// Set and Get
	if err := backend.Set(ctx, "sk_live_abc123def456"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := backend.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "sk_live_abc123def456" {
		t.Errorf("Get() = %v, want sk_live_abc123def456", got)
	}

	// The plaintext never touches disk
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read secret file: %v", err)
	}
	if strings.Contains(string(raw), "sk_live_abc123def456") {
		t.Error("secret file contains the plaintext secret")
	}

	// File permissions must be owner-only
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("failed to stat secret file: %v", err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		t.Errorf("secret file permissions too open: %o", perm)
	}

	// Overwrite
	if err := backend.Set(ctx, "sk_live_newvalue9876"); err != nil {
		t.Fatalf("Set() (update) error = %v", err)
	}
	got, err = backend.Get(ctx)
	if err != nil {
		t.Fatalf("Get() (after update) error = %v", err)
	}
	if got != "sk_live_newvalue9876" {
		t.Errorf("Get() (after update) = %v, want sk_live_newvalue9876", got)
	}

	// Delete
	if err := backend.Delete(ctx); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := backend.Get(ctx); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("Get() after delete error = %v, want %v", err, ErrSecretNotFound)
	}
	if err := backend.Delete(ctx); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("Delete() non-existent error = %v, want %v", err, ErrSecretNotFound)
	}
}

func TestFileBackend_WrongMasterKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.enc")
	ctx := context.Background()

	backend, err := NewFileBackend(path, "correct-key")
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}
	if err := backend.Set(ctx, "the-secret"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	wrong, err := NewFileBackend(path, "wrong-key")
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}

	_, err = wrong.Get(ctx)
	if err == nil {
		t.Fatal("expected decryption error with wrong master key")
	}
	if !strings.Contains(err.Error(), "decryption failed") {
		t.Errorf("Get() error = %v, want decryption failure", err)
	}
}

func TestFileBackend_MasterKeyFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.enc")
	t.Setenv("PICA_MASTER_KEY", "env-master-key")

	backend, err := NewFileBackend(path, "")
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}
	if !backend.Available() {
		t.Fatal("expected backend to be available with PICA_MASTER_KEY set")
	}

	ctx := context.Background()
	if err := backend.Set(ctx, "value-from-env-key"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := backend.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "value-from-env-key" {
		t.Errorf("Get() = %v, want value-from-env-key", got)
	}
}

func TestFileBackend_UnavailableWithoutMasterKey(t *testing.T) {
	// Isolate from any real master key sources
	home := t.TempDir()
	t.Setenv("PICA_MASTER_KEY", "")
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	path := filepath.Join(t.TempDir(), "secret.enc")
	backend, err := NewFileBackend(path, "")
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}

	if backend.Available() {
		t.Fatal("expected backend to be unavailable without a master key")
	}

	ctx := context.Background()
	if _, err := backend.Get(ctx); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Get() error = %v, want %v", err, ErrBackendUnavailable)
	}
	if err := backend.Set(ctx, "value"); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Set() error = %v, want %v", err, ErrBackendUnavailable)
	}
}

func TestFileBackend_DefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	backend, err := NewFileBackend("", "master-key")
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}

	ctx := context.Background()
	if err := backend.Set(ctx, "default-path-secret"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := backend.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "default-path-secret" {
		t.Errorf("Get() = %v, want default-path-secret", got)
	}
}

func TestFileBackend_Metadata(t *testing.T) {
	backend, err := NewFileBackend(filepath.Join(t.TempDir(), "secret.enc"), "key")
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}

	if backend.Name() != "file" {
		t.Errorf("Name() = %v, want file", backend.Name())
	}
	if backend.Priority() != FileBackendPriority {
		t.Errorf("Priority() = %v, want %v", backend.Priority(), FileBackendPriority)
	}
}

func TestVerifyFilePermissions(t *testing.T) {
	dir := t.TempDir()

	securePath := filepath.Join(dir, "secure")
	if err := os.WriteFile(securePath, []byte("x"), 0600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := verifyFilePermissions(securePath); err != nil {
		t.Errorf("verifyFilePermissions(0600) error = %v", err)
	}

	openPath := filepath.Join(dir, "open")
	if err := os.WriteFile(openPath, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := verifyFilePermissions(openPath); err == nil {
		t.Error("verifyFilePermissions(0644) = nil, want error")
	}
}
