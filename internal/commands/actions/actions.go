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

// Package actions implements 'pica actions'.
package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/picahq/pica-go/internal/commands/shared"
	"github.com/picahq/pica-go/pkg/pica"
)

// NewCommand creates the actions command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "Discover the actions a platform supports",
	}

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newKnowledgeCommand())

	return cmd
}

func newListCommand() *cobra.Command {
	var pick bool

	cmd := &cobra.Command{
		Use:   "list <platform>",
		Short: "List available actions for a platform",
		Long: `List the actions a platform supports, trimmed to id, title, and tags.

With --pick, an interactive selector opens and prints the chosen
action's full knowledge text (equivalent to 'pica actions knowledge').

Examples:
  pica actions list github
  pica actions list gmail --pick
  pica actions list slack --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), args[0], pick)
		},
	}

	cmd.Flags().BoolVar(&pick, "pick", false,
		"Interactively select an action and print its knowledge")

	return cmd
}

func runList(ctx context.Context, platform string, pick bool) error {
	if pick && shared.IsNonInteractive() {
		return shared.NewInvalidInputError("--pick requires an interactive terminal", nil)
	}

	handle, err := shared.BuildClient(ctx)
	if err != nil {
		return err
	}
	defer handle.Close(ctx)

	if err := shared.InitializeClient(ctx, handle); err != nil {
		return err
	}

	resp := handle.Client.GetAvailableActions(ctx, platform)
	if !resp.Success {
		return envelopeError(resp.Title, resp.Message)
	}

	if pick {
		return runPick(ctx, handle.Client, platform, resp.Actions)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(resp)
	}

	if len(resp.Actions) == 0 {
		fmt.Printf("%s No supported actions for %s\n",
			shared.Muted.Render(shared.SymbolInfo), shared.Bold.Render(platform))
		return nil
	}

	fmt.Printf("%s %s\n\n",
		shared.Header.Render("Actions"),
		shared.Muted.Render("(platform: "+platform+")"))
	for _, action := range resp.Actions {
		fmt.Printf("%s %s\n", shared.StatusInfo.Render(shared.SymbolInfo), action.Title)
		fmt.Printf("  %s %s\n", shared.RenderLabel("id:"), action.ID)
		if len(action.Tags) > 0 {
			fmt.Printf("  %s %s\n", shared.RenderLabel("tags:"), strings.Join(action.Tags, ", "))
		}
	}
	fmt.Printf("\n%s\n", shared.Muted.Render(fmt.Sprintf("%d action(s)", len(resp.Actions))))
	return nil
}

// runPick lets the user choose one listed action, then prints its knowledge.
func runPick(ctx context.Context, client *pica.Client, platform string, actions []pica.ActionSummary) error {
	if len(actions) == 0 {
		fmt.Printf("%s No supported actions for %s\n",
			shared.Muted.Render(shared.SymbolInfo), shared.Bold.Render(platform))
		return nil
	}

	options := make([]string, len(actions))
	byOption := make(map[string]string, len(actions))
	for i, action := range actions {
		label := fmt.Sprintf("%s (%s)", action.Title, action.ID)
		options[i] = label
		byOption[label] = action.ID
	}

	var choice string
	prompt := &survey.Select{
		Message:  fmt.Sprintf("Select a %s action:", platform),
		Options:  options,
		PageSize: 15,
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return shared.NewDeniedError("selection cancelled")
	}

	return printKnowledge(ctx, client, platform, byOption[choice])
}

func newKnowledgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge <platform> <action-id>",
		Short: "Show the usage documentation for one action",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := shared.BuildClient(cmd.Context())
			if err != nil {
				return err
			}
			defer handle.Close(cmd.Context())

			if err := shared.InitializeClient(cmd.Context(), handle); err != nil {
				return err
			}

			return printKnowledge(cmd.Context(), handle.Client, args[0], args[1])
		},
	}

	return cmd
}

func printKnowledge(ctx context.Context, client *pica.Client, platform, actionID string) error {
	resp := client.GetActionKnowledge(ctx, platform, actionID)
	if !resp.Success {
		return envelopeError(resp.Title, resp.Message)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(resp)
	}

	action := resp.Action
	fmt.Printf("%s\n\n", shared.Header.Render(action.Title))
	fmt.Printf("%s %s\n", shared.RenderLabel("id:"), action.ID)
	fmt.Printf("%s %s\n", shared.RenderLabel("platform:"), resp.Platform)
	if action.Path != "" {
		fmt.Printf("%s %s\n", shared.RenderLabel("path:"), action.Path)
	}
	if len(action.Tags) > 0 {
		fmt.Printf("%s %s\n", shared.RenderLabel("tags:"), strings.Join(action.Tags, ", "))
	}
	if action.Knowledge != "" {
		fmt.Printf("\n%s\n", action.Knowledge)
	}
	return nil
}

// envelopeError converts a Success=false tool envelope into a CLI exit error.
func envelopeError(title, message string) error {
	if message == "" {
		message = title
	} else if title != "" {
		message = title + ": " + message
	}
	return shared.NewAPIError(message, nil)
}
