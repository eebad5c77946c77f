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

// Package audit implements 'pica audit'.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	auditstore "github.com/picahq/pica-go/internal/audit"
	"github.com/picahq/pica-go/internal/commands/shared"
	pkgerrors "github.com/picahq/pica-go/pkg/errors"
)

// NewCommand creates the audit command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the execution audit trail",
		Long: `Inspect past action executions recorded by the audit store.

Auditing is off by default; enable it in the config file:

  audit:
    enabled: true

Secret-bearing header values are masked before a record is written, so
audit rows are safe to share.`,
	}

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newPruneCommand())

	return cmd
}

// openStore opens the configured audit database.
func openStore() (*auditstore.Store, error) {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return nil, err
	}
	path, err := cfg.AuditPath()
	if err != nil {
		return nil, shared.NewConfigError("cannot resolve audit database path", err)
	}
	store, err := auditstore.New(auditstore.Config{Path: path})
	if err != nil {
		return nil, shared.NewConfigError("cannot open audit database", err)
	}
	return store, nil
}

func newListCommand() *cobra.Command {
	var (
		platform     string
		failuresOnly bool
		limit        int
		since        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			filter := auditstore.Filter{
				Platform:     platform,
				FailuresOnly: failuresOnly,
				Limit:        limit,
			}
			if since > 0 {
				cutoff := time.Now().Add(-since)
				filter.Since = &cutoff
			}

			records, err := store.List(cmd.Context(), filter)
			if err != nil {
				return shared.NewExecutionError("failed to list audit records", err)
			}

			if shared.GetJSON() {
				return shared.EmitJSON(map[string]interface{}{
					"count":   len(records),
					"records": records,
				})
			}

			if len(records) == 0 {
				fmt.Printf("%s No executions recorded\n",
					shared.Muted.Render(shared.SymbolInfo))
				return nil
			}

			fmt.Printf("%s\n\n", shared.Header.Render("Executions"))
			for _, rec := range records {
				status := shared.RenderStatus(rec.Success, statusLabel(rec.Success))
				fmt.Printf("%s %s %s %s %s\n",
					status,
					shared.Muted.Render(rec.Timestamp.Local().Format("2006-01-02 15:04:05")),
					shared.Bold.Render(rec.Platform),
					rec.ActionTitle,
					shared.Muted.Render(fmt.Sprintf("(%dms)", rec.Duration.Milliseconds())))
				fmt.Printf("  %s %s\n", shared.RenderLabel("id:"), rec.ID)
			}
			fmt.Printf("\n%s\n", shared.Muted.Render(fmt.Sprintf("%d record(s)", len(records))))
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "Only executions against this platform")
	cmd.Flags().BoolVar(&failuresOnly, "failures", false, "Only failed executions")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of records")
	cmd.Flags().DurationVar(&since, "since", 0, "Only executions newer than this (e.g. 24h)")

	return cmd
}

func newShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded execution in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				if pkgerrors.IsNotFound(err) {
					return shared.NewInvalidInputError(
						fmt.Sprintf("no audit record with id %s", args[0]), nil)
				}
				return shared.NewExecutionError("failed to read audit record", err)
			}

			if shared.GetJSON() {
				return shared.EmitJSON(rec)
			}

			fmt.Printf("%s\n\n", shared.Header.Render(rec.ActionTitle))
			fmt.Printf("%s %s\n", shared.RenderLabel("id:"), rec.ID)
			fmt.Printf("%s %s\n", shared.RenderLabel("time:"), rec.Timestamp.Local().Format(time.RFC3339))
			fmt.Printf("%s %s\n", shared.RenderLabel("platform:"), rec.Platform)
			fmt.Printf("%s %s\n", shared.RenderLabel("action:"), rec.ActionID)
			fmt.Printf("%s %s %s\n", shared.RenderLabel("request:"), rec.Method, rec.URL)
			fmt.Printf("%s %s\n", shared.RenderLabel("connection:"), rec.ConnectionKey)
			fmt.Printf("%s %s (HTTP %d, %dms)\n", shared.RenderLabel("status:"),
				shared.RenderStatus(rec.Success, statusLabel(rec.Success)),
				rec.StatusCode, rec.Duration.Milliseconds())
			if rec.Message != "" {
				fmt.Printf("%s %s\n", shared.RenderLabel("message:"), rec.Message)
			}
			if len(rec.RequestConfig) > 0 {
				var pretty json.RawMessage = rec.RequestConfig
				indented, err := json.MarshalIndent(pretty, "", "  ")
				if err == nil {
					fmt.Printf("\n%s\n%s\n", shared.RenderLabel("request config:"), indented)
				}
			}
			return nil
		},
	}

	return cmd
}

func newPruneCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old execution records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			deleted, err := store.DeleteOlderThan(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return shared.NewExecutionError("failed to prune audit records", err)
			}

			fmt.Println(shared.RenderOK(fmt.Sprintf("Deleted %d record(s)", deleted)))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour,
		"Delete records older than this duration")

	return cmd
}

func statusLabel(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAIL"
}
