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

// Package connections implements 'pica connections'.
package connections

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/picahq/pica-go/internal/commands/shared"
	"github.com/picahq/pica-go/pkg/pica"
)

// NewCommand creates the connections command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Inspect the connections available to this client",
	}

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newDefinitionsCommand())

	return cmd
}

func newListCommand() *cobra.Command {
	var connectors []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active connections",
		Long: `List the connections the configured connector filter exposes.

Only active connections appear. The filter comes from the config file
(connectors:) or PICA_CONNECTORS; --connector overrides both. Glob
patterns are allowed; "*" lists everything.

Examples:
  # List connections using the configured filter
  pica connections list

  # List every GitHub connection regardless of configuration
  pica connections list --connector 'live::github::*'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), connectors)
		},
	}

	cmd.Flags().StringArrayVar(&connectors, "connector", nil,
		"Connection key or glob to include (repeatable, overrides config)")

	return cmd
}

func runList(ctx context.Context, connectors []string) error {
	var extra []pica.Option
	if len(connectors) > 0 {
		extra = append(extra, pica.WithConnectors(connectors...))
	}

	handle, err := shared.BuildClient(ctx, extra...)
	if err != nil {
		return err
	}
	defer handle.Close(ctx)

	if err := shared.InitializeClient(ctx, handle); err != nil {
		return err
	}

	conns := handle.Client.Connections()
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].Platform != conns[j].Platform {
			return conns[i].Platform < conns[j].Platform
		}
		return conns[i].Key < conns[j].Key
	})

	if shared.GetJSON() {
		return shared.EmitJSON(map[string]interface{}{
			"count":       len(conns),
			"connections": conns,
		})
	}

	if len(conns) == 0 {
		fmt.Printf("%s No connections available\n",
			shared.Muted.Render(shared.SymbolInfo))
		fmt.Println()
		fmt.Println("Connect a platform at https://app.picaos.com, or widen the")
		fmt.Printf("connector filter: %s\n", shared.Bold.Render("pica connections list --connector '*'"))
		return nil
	}

	fmt.Printf("%s\n\n", shared.Header.Render("Connections"))
	fmt.Printf("%s %s %s\n",
		shared.Bold.Render(fmt.Sprintf("%-20s", "PLATFORM")),
		shared.Bold.Render(fmt.Sprintf("%-44s", "KEY")),
		shared.Bold.Render("STATUS"))
	for _, conn := range conns {
		key := conn.Key
		if len(key) > 42 {
			key = key[:39] + "..."
		}
		fmt.Printf("%-20s %-44s %s\n", conn.Platform, key, shared.RenderActive(conn.Active))
	}
	fmt.Printf("\n%s\n", shared.Muted.Render(fmt.Sprintf("%d connection(s)", len(conns))))
	return nil
}

func newDefinitionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definitions",
		Short: "List connectable platform definitions",
		Long: `List the connection definitions the platform publishes. Definitions
describe what can be connected, independent of any credential.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefinitions(cmd.Context())
		},
	}

	return cmd
}

func runDefinitions(ctx context.Context) error {
	handle, err := shared.BuildClient(ctx)
	if err != nil {
		return err
	}
	defer handle.Close(ctx)

	if err := shared.InitializeClient(ctx, handle); err != nil {
		return err
	}

	defs := handle.Client.ConnectionDefinitions()
	sort.Slice(defs, func(i, j int) bool { return defs[i].Platform < defs[j].Platform })

	if shared.GetJSON() {
		return shared.EmitJSON(map[string]interface{}{
			"count":       len(defs),
			"definitions": defs,
		})
	}

	if len(defs) == 0 {
		fmt.Printf("%s No connection definitions available\n",
			shared.Muted.Render(shared.SymbolInfo))
		return nil
	}

	fmt.Printf("%s\n\n", shared.Header.Render("Platforms"))
	for _, def := range defs {
		title := def.Frontend.Spec.Title
		if title == "" {
			title = def.Name
		}
		fmt.Printf("%s %s %s\n",
			shared.StatusInfo.Render(shared.SymbolInfo),
			shared.Bold.Render(fmt.Sprintf("%-20s", def.Platform)),
			title)
		if desc := def.Frontend.Spec.Description; desc != "" {
			fmt.Printf("  %s\n", shared.Muted.Render(desc))
		}
	}
	fmt.Printf("\n%s\n", shared.Muted.Render(fmt.Sprintf("%d platform(s)", len(defs))))
	return nil
}
