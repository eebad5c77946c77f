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

/*
Package secrets stores and resolves the Pica API secret.

The secret is resolved through a priority-ordered chain of backends:

	env      - PICA_SECRET environment variable (read-only)
	keychain - OS keychain (macOS Keychain, Linux Secret Service,
	           Windows Credential Manager)
	file     - Encrypted file storage (~/.config/pica/secret.enc)

Each backend implements the Backend interface:

	type Backend interface {
	    Name() string
	    Priority() int
	    Available() bool
	    Get(ctx context.Context) (string, error)
	    Set(ctx context.Context, value string) error
	    Delete(ctx context.Context) error
	}

# Usage

Build the default chain and resolve:

	store := secrets.Open("")
	value, source, err := store.Get(ctx)

Set writes to the highest-priority writable backend, so the keychain wins
when it is available and the encrypted file catches headless machines. The
file backend encrypts with AES-256-GCM under a key derived via Argon2id from
the master key (PICA_MASTER_KEY or ~/.config/pica/master.key).
*/
package secrets
