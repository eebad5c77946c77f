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

// Package prompt implements 'pica prompt'.
package prompt

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/picahq/pica-go/internal/commands/shared"
)

// NewCommand creates the prompt command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt [file]",
		Short: "Compose the agent system prompt",
		Long: `Compose the full system prompt an agent needs to use the pica tools,
merging the live connection summaries with an optional caller-supplied
instruction read from the given file ("-" for stdin).

Examples:
  # Print the default system prompt
  pica prompt

  # Merge a custom instruction file
  pica prompt instructions.md

  # Pipe an instruction in
  echo "Answer tersely." | pica prompt -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userPrompt, err := readUserPrompt(args)
			if err != nil {
				return err
			}

			handle, err := shared.BuildClient(cmd.Context())
			if err != nil {
				return err
			}
			defer handle.Close(cmd.Context())

			if err := shared.InitializeClient(cmd.Context(), handle); err != nil {
				return err
			}

			composed := handle.Client.GenerateSystemPrompt(userPrompt)
			if shared.GetJSON() {
				return shared.EmitJSON(map[string]string{"prompt": composed})
			}
			fmt.Println(composed)
			return nil
		},
	}

	return cmd
}

func readUserPrompt(args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	if args[0] == "-" {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", shared.NewInvalidInputError("cannot read prompt from stdin", err)
		}
		return string(content), nil
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return "", shared.NewInvalidInputError("cannot read prompt file", err)
	}
	return string(content), nil
}
