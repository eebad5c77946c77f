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

// Command pica is the CLI for the Pica integration platform: it lists
// connections, discovers platform actions, executes them through the
// passthrough endpoint, composes agent system prompts, and serves the pica
// tools over MCP.
package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/picahq/pica-go/internal/commands/actions"
	auditcmd "github.com/picahq/pica-go/internal/commands/audit"
	"github.com/picahq/pica-go/internal/commands/connections"
	"github.com/picahq/pica-go/internal/commands/execute"
	mcpcmd "github.com/picahq/pica-go/internal/commands/mcp"
	promptcmd "github.com/picahq/pica-go/internal/commands/prompt"
	secretcmd "github.com/picahq/pica-go/internal/commands/secret"
	"github.com/picahq/pica-go/internal/commands/shared"
	versioncmd "github.com/picahq/pica-go/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	shared.SetVersion(version, commit, buildDate)

	rootCmd := newRootCommand()

	rootCmd.AddCommand(connections.NewCommand())
	rootCmd.AddCommand(actions.NewCommand())
	rootCmd.AddCommand(execute.NewCommand())
	rootCmd.AddCommand(promptcmd.NewCommand())
	rootCmd.AddCommand(mcpcmd.NewCommand())
	rootCmd.AddCommand(secretcmd.NewCommand())
	rootCmd.AddCommand(auditcmd.NewCommand())
	rootCmd.AddCommand(versioncmd.NewCommand())

	if err := rootCmd.Execute(); err != nil {
		shared.HandleExitError(err)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pica",
		Short: "Pica - connect LLM agents to third-party APIs",
		Long: `Pica lets an LLM-driven agent discover and invoke third-party API
actions through a single intermediary service.

Store your API secret once with 'pica secret set', then explore:
  pica connections list
  pica actions list <platform>
  pica execute --help

Serve the same capabilities to AI assistants with 'pica mcp serve'.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	// Accept snake_case spellings of multi-word flags (--action_id etc.).
	cmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	verbose, quiet, json, config, secret := shared.RegisterFlagPointers()

	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(config, "config", "", "Path to config file (default: ~/.config/pica/config.yaml)")
	cmd.PersistentFlags().StringVar(secret, "secret", "", "Pica API secret (overrides PICA_SECRET and the stored secret)")

	return cmd
}
