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

// Package execute implements 'pica execute'.
package execute

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/picahq/pica-go/internal/commands/shared"
	"github.com/picahq/pica-go/pkg/pica"
	"github.com/picahq/pica-go/pkg/tools/approval"
)

type executeFlags struct {
	platform      string
	actionID      string
	actionPath    string
	method        string
	connectionKey string
	data          string
	pathVars      []string
	queryParams   []string
	headers       []string
	formData      bool
	urlEncoded    bool
	jqExpr        string
	yes           bool
}

// NewCommand creates the execute command.
func NewCommand() *cobra.Command {
	var flags executeFlags

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Execute a platform action through the passthrough endpoint",
		Long: `Execute one action against a connected platform.

The action id and path come from 'pica actions list' / 'pica actions
knowledge'. The request body is JSON by default; --form switches to
multipart form data, --urlencoded to application/x-www-form-urlencoded.
Path template variables ({{name}}) are taken from --path-var, falling
back to matching keys in the request body.

Unless --yes is given (or the session is non-interactive), a
confirmation prompt shows the request before anything is sent.

Examples:
  # Send a message to a Slack channel
  pica execute --platform slack \
    --action-id conn_mod_def::GC4KDm::tUPRnA \
    --path /chat.postMessage --method POST \
    --connection-key live::slack::default::abc123 \
    --data '{"channel": "C0123", "text": "deploy finished"}'

  # Fetch a GitHub issue, projecting just the title with jq
  pica execute --platform github \
    --action-id conn_mod_def::GC4KDn::hNxqWk \
    --path '/repos/{{owner}}/{{repo}}/issues/{{issue_number}}' \
    --method GET \
    --connection-key live::github::default::def456 \
    --path-var owner=acme --path-var repo=api --path-var issue_number=17 \
    --jq '.title'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.platform, "platform", "", "Target platform (required)")
	cmd.Flags().StringVar(&flags.actionID, "action-id", "", "Action identifier (required)")
	cmd.Flags().StringVar(&flags.actionPath, "path", "", "Action path template (required)")
	cmd.Flags().StringVarP(&flags.method, "method", "X", "GET", "HTTP method")
	cmd.Flags().StringVar(&flags.connectionKey, "connection-key", "", "Connection key (required)")
	cmd.Flags().StringVarP(&flags.data, "data", "d", "", "Request body as JSON, or @file to read from a file")
	cmd.Flags().StringArrayVar(&flags.pathVars, "path-var", nil, "Path template variable as name=value (repeatable)")
	cmd.Flags().StringArrayVar(&flags.queryParams, "query", nil, "Query parameter as name=value (repeatable)")
	cmd.Flags().StringArrayVarP(&flags.headers, "header", "H", nil, "Extra request header as name=value (repeatable)")
	cmd.Flags().BoolVar(&flags.formData, "form", false, "Encode the body as multipart form data")
	cmd.Flags().BoolVar(&flags.urlEncoded, "urlencoded", false, "Encode the body as application/x-www-form-urlencoded")
	cmd.Flags().StringVar(&flags.jqExpr, "jq", "", "jq expression applied to the response data")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "Skip the confirmation prompt")

	for _, name := range []string{"platform", "action-id", "path", "connection-key"} {
		_ = cmd.MarkFlagRequired(name)
	}
	cmd.MarkFlagsMutuallyExclusive("form", "urlencoded")

	return cmd
}

func run(ctx context.Context, flags executeFlags) error {
	params, err := buildParams(flags)
	if err != nil {
		return err
	}

	extra := []pica.Option{}
	if flags.jqExpr != "" {
		extra = append(extra, pica.WithTransform(flags.jqExpr))
	}
	if !flags.yes && !shared.IsNonInteractive() {
		extra = append(extra, pica.WithApprover(&confirmApprover{}))
	}

	handle, err := shared.BuildClient(ctx, extra...)
	if err != nil {
		return err
	}
	defer handle.Close(ctx)

	if err := shared.InitializeClient(ctx, handle); err != nil {
		return err
	}

	resp := handle.Client.ExecuteAction(ctx, params)

	if shared.GetJSON() {
		if err := shared.EmitJSON(resp); err != nil {
			return err
		}
		if !resp.Success {
			return shared.NewExecutionError("", nil)
		}
		return nil
	}

	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = resp.Title
		}
		fmt.Println(shared.RenderError(msg))
		if resp.Raw != "" && resp.Raw != msg {
			fmt.Println(shared.Muted.Render(resp.Raw))
		}
		return shared.NewExecutionError("", nil)
	}

	fmt.Println(shared.RenderOK(resp.Content))
	if resp.Data != nil {
		pretty, err := json.MarshalIndent(resp.Data, "", "  ")
		if err != nil {
			fmt.Printf("%v\n", resp.Data)
		} else {
			fmt.Println(string(pretty))
		}
	}
	return nil
}

// buildParams assembles ExecuteParams from the command flags.
func buildParams(flags executeFlags) (pica.ExecuteParams, error) {
	params := pica.ExecuteParams{
		Platform:      flags.platform,
		Action:        pica.ActionRef{ID: flags.actionID, Path: flags.actionPath},
		Method:        strings.ToUpper(flags.method),
		ConnectionKey: flags.connectionKey,
		IsFormData:    flags.formData,
		IsURLEncoded:  flags.urlEncoded,
	}

	if flags.data != "" {
		raw := flags.data
		if strings.HasPrefix(raw, "@") {
			content, err := os.ReadFile(strings.TrimPrefix(raw, "@"))
			if err != nil {
				return params, shared.NewInvalidInputError("cannot read --data file", err)
			}
			raw = string(content)
		}
		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return params, shared.NewInvalidInputError("--data is not valid JSON", err)
		}
		params.Data = data
	}

	if len(flags.pathVars) > 0 {
		vars, err := parsePairs(flags.pathVars, "--path-var")
		if err != nil {
			return params, err
		}
		params.PathVariables = make(map[string]any, len(vars))
		for k, v := range vars {
			params.PathVariables[k] = v
		}
	}

	if len(flags.queryParams) > 0 {
		query, err := parsePairs(flags.queryParams, "--query")
		if err != nil {
			return params, err
		}
		params.QueryParams = make(map[string]any, len(query))
		for k, v := range query {
			params.QueryParams[k] = v
		}
	}

	if len(flags.headers) > 0 {
		headers, err := parsePairs(flags.headers, "--header")
		if err != nil {
			return params, err
		}
		params.Headers = headers
	}

	return params, nil
}

// parsePairs splits repeated name=value flag values into a map.
func parsePairs(pairs []string, flagName string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, shared.NewInvalidInputError(
				fmt.Sprintf("%s %q is not in name=value form", flagName, pair), nil)
		}
		out[name] = value
	}
	return out, nil
}

// confirmApprover shows the outgoing request and asks before dispatch. It
// satisfies approval.Approver so the same gate applies whether execution is
// driven from this command or from the tool registry.
type confirmApprover struct{}

var _ approval.Approver = (*confirmApprover)(nil)

func (c *confirmApprover) Approve(ctx context.Context, toolName, toolDescription string, inputs map[string]interface{}) (bool, error) {
	var lines []string
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, inputs[k]))
	}

	confirmed := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Execute this action?").
				Description(strings.Join(lines, "\n")).
				Affirmative("Execute").
				Negative("Cancel").
				Value(&confirmed),
		),
	)

	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			return false, nil
		}
		return false, err
	}
	return confirmed, nil
}
