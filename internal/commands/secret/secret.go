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

// Package secret implements 'pica secret'.
package secret

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/picahq/pica-go/internal/commands/shared"
	"github.com/picahq/pica-go/internal/log"
	"github.com/picahq/pica-go/internal/secrets"
)

// NewCommand creates the secret command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the stored Pica API secret",
		Long: `Manage the Pica API secret used by every command.

The secret is stored in the OS keychain when one is available, falling
back to an encrypted file under ~/.config/pica. The PICA_SECRET
environment variable always takes precedence over the stored value.`,
	}

	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newClearCommand())

	return cmd
}

func newSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the API secret",
		Long: `Store the API secret in the highest-priority writable backend.

The secret is read from the terminal without echo. In non-interactive
sessions it is read from stdin instead, so it never appears in shell
history or process listings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readSecret()
			if err != nil {
				return err
			}
			if value == "" {
				return shared.NewInvalidInputError("secret must not be empty", nil)
			}

			backend, err := secrets.Open("").Set(cmd.Context(), value)
			if err != nil {
				return shared.NewConfigError("failed to store secret", err)
			}

			fmt.Println(shared.RenderOK(fmt.Sprintf("Secret stored in %s", backend)))
			return nil
		},
	}

	return cmd
}

func newGetCommand() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show where the API secret comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, source, err := secrets.Open("").Get(cmd.Context())
			if err != nil {
				if errors.Is(err, secrets.ErrSecretNotFound) {
					return shared.NewConfigError(
						"no secret stored; run 'pica secret set' or export PICA_SECRET", nil)
				}
				return shared.NewConfigError("failed to read secret", err)
			}

			shown := log.SanitizeAPIKey(value)
			if reveal {
				shown = value
			}

			if shared.GetJSON() {
				return shared.EmitJSON(map[string]string{
					"source": source,
					"secret": shown,
				})
			}

			fmt.Printf("%s %s\n", shared.RenderLabel("source:"), source)
			fmt.Printf("%s %s\n", shared.RenderLabel("secret:"), shown)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the secret in full")

	return cmd
}

func newClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API secret",
		Long: `Remove the API secret from every writable backend. The PICA_SECRET
environment variable is unaffected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := secrets.Open("").Clear(cmd.Context()); err != nil {
				return shared.NewConfigError("failed to clear secret", err)
			}
			fmt.Println(shared.RenderOK("Secret cleared"))
			return nil
		},
	}

	return cmd
}

// readSecret reads the secret without echo when stdin is a terminal, and
// from stdin otherwise (supporting pipes and heredocs).
func readSecret() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprint(os.Stderr, "Pica API secret: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", shared.NewInvalidInputError("failed to read secret from terminal", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	var builder strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		builder.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return strings.TrimSpace(builder.String()), nil
}
