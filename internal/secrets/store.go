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
	"fmt"
	"sort"
)

// Store manages a chain of Backends and resolves the secret by querying
// them in priority order.
type Store struct {
	backends []Backend
}

// NewStore creates a store with the given backends.
// Unavailable backends are dropped and the rest sorted by priority
// (highest first).
func NewStore(backends ...Backend) *Store {
	available := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Available() {
			available = append(available, b)
		}
	}

	sort.Slice(available, func(i, j int) bool {
		return available[i].Priority() > available[j].Priority()
	})

	return &Store{
		backends: available,
	}
}

// Open builds the default chain: env, keychain, encrypted file.
// filePath overrides the secret file location; empty means the default
// ~/.config/pica/secret.enc.
func Open(filePath string) *Store {
	backends := []Backend{
		NewEnvBackend(),
		NewKeychainBackend(),
	}

	// A file backend constructor error only means the config directory is
	// unusable; the chain still works without it.
	if fb, err := NewFileBackend(filePath, ""); err == nil {
		backends = append(backends, fb)
	}

	return NewStore(backends...)
}

// Get resolves the secret by querying backends in priority order. It returns
// the value and the name of the backend that supplied it.
func (s *Store) Get(ctx context.Context) (string, string, error) {
	if len(s.backends) == 0 {
		return "", "", fmt.Errorf("%w: no available backends", ErrBackendUnavailable)
	}

	var lastErr error
	for _, backend := range s.backends {
		value, err := backend.Get(ctx)
		if err == nil {
			return value, backend.Name(), nil
		}

		if !errors.Is(err, ErrSecretNotFound) {
			lastErr = err
		}
	}

	if lastErr != nil {
		return "", "", fmt.Errorf("failed to get secret: %w", lastErr)
	}

	return "", "", ErrSecretNotFound
}

// Resolve returns the explicit secret when non-empty, otherwise resolves
// through the chain. The second return names the source ("flag" or the
// backend name).
func (s *Store) Resolve(ctx context.Context, explicit string) (string, string, error) {
	if explicit != "" {
		return explicit, "flag", nil
	}
	return s.Get(ctx)
}

// Set stores the secret in the highest-priority writable backend and
// returns that backend's name.
func (s *Store) Set(ctx context.Context, value string) (string, error) {
	if len(s.backends) == 0 {
		return "", fmt.Errorf("%w: no available backends", ErrBackendUnavailable)
	}

	for _, backend := range s.backends {
		if ro, ok := backend.(ReadOnlyBackend); ok && ro.ReadOnly() {
			continue
		}

		if err := backend.Set(ctx, value); err != nil {
			if errors.Is(err, ErrReadOnlyBackend) {
				continue
			}
			return "", fmt.Errorf("failed to set secret in %s: %w", backend.Name(), err)
		}
		return backend.Name(), nil
	}

	return "", fmt.Errorf("no writable backend available")
}

// Clear removes the secret from every writable backend.
// Returns ErrSecretNotFound if no backend held it.
func (s *Store) Clear(ctx context.Context) error {
	if len(s.backends) == 0 {
		return fmt.Errorf("%w: no available backends", ErrBackendUnavailable)
	}

	deleted := false
	for _, backend := range s.backends {
		if ro, ok := backend.(ReadOnlyBackend); ok && ro.ReadOnly() {
			continue
		}

		if err := backend.Delete(ctx); err != nil {
			if errors.Is(err, ErrSecretNotFound) || errors.Is(err, ErrReadOnlyBackend) {
				continue
			}
			return fmt.Errorf("failed to delete secret from %s: %w", backend.Name(), err)
		}
		deleted = true
	}

	if !deleted {
		return ErrSecretNotFound
	}

	return nil
}

// Backends returns the available backends in priority order.
func (s *Store) Backends() []Backend {
	return s.backends
}
