// Package approval provides execution approval hooks for pica tools.
//
// An Approver decides whether a tool invocation may proceed. The execution
// engine consults it before any network traffic for the action; the tool
// registry consults it through the approval interceptor. Both paths share
// one Approver so a denial means the same thing everywhere.
package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ExecutionMode determines how tool approvals are handled.
type ExecutionMode string

const (
	// ModeInteractive prompts the user for approval
	ModeInteractive ExecutionMode = "interactive"

	// ModeUnattended only allows auto-approved tools
	ModeUnattended ExecutionMode = "unattended"
)

// Approver handles tool execution approval decisions.
type Approver interface {
	// Approve returns true if the tool execution should proceed.
	// toolName is the name of the tool being invoked.
	// toolDescription describes what the tool does.
	// inputs are the parameters being passed to the tool.
	Approve(ctx context.Context, toolName string, toolDescription string, inputs map[string]interface{}) (bool, error)
}

// Func adapts a function to the Approver interface. Embedders that already
// have a confirmation surface pass a closure instead of defining a type.
type Func func(ctx context.Context, toolName, toolDescription string, inputs map[string]interface{}) (bool, error)

// Approve calls the function.
func (f Func) Approve(ctx context.Context, toolName, toolDescription string, inputs map[string]interface{}) (bool, error) {
	return f(ctx, toolName, toolDescription, inputs)
}

// CLIApprover prompts for approval on a terminal. Answering "always"
// remembers the approval for that tool for the rest of the run.
type CLIApprover struct {
	reader        io.Reader
	writer        io.Writer
	alwaysApprove map[string]bool
}

// NewCLIApprover creates a new CLI-based approver on stdin/stdout.
func NewCLIApprover() *CLIApprover {
	return NewCLIApproverWithIO(os.Stdin, os.Stdout)
}

// NewCLIApproverWithIO creates a CLI approver with custom IO (for testing).
func NewCLIApproverWithIO(reader io.Reader, writer io.Writer) *CLIApprover {
	return &CLIApprover{
		reader:        reader,
		writer:        writer,
		alwaysApprove: make(map[string]bool),
	}
}

// Approve prompts the user and reads one line. An empty answer, EOF, or
// anything other than y/yes/always denies.
func (c *CLIApprover) Approve(ctx context.Context, toolName string, toolDescription string, inputs map[string]interface{}) (bool, error) {
	if c.alwaysApprove[toolName] {
		return true, nil
	}

	fmt.Fprintf(c.writer, "\n")
	fmt.Fprintf(c.writer, "Approval required:\n")
	fmt.Fprintf(c.writer, "  Tool: %s\n", toolName)
	fmt.Fprintf(c.writer, "  Description: %s\n", toolDescription)
	if len(inputs) > 0 {
		fmt.Fprintf(c.writer, "  Inputs:\n")
		for _, k := range sortedInputKeys(inputs) {
			fmt.Fprintf(c.writer, "    %s: %v\n", k, inputs[k])
		}
	}
	fmt.Fprintf(c.writer, "\n")
	fmt.Fprintf(c.writer, "Approve execution? [y/N/always]: ")

	scanner := bufio.NewScanner(c.reader)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return false, fmt.Errorf("failed to read input: %w", err)
		}
		return false, nil
	}

	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return true, nil
	case "always":
		c.alwaysApprove[toolName] = true
		return true, nil
	default:
		return false, nil
	}
}

// UnattendedApprover only allows auto-approved tools.
type UnattendedApprover struct {
	autoApprovedTools map[string]bool
}

// NewUnattendedApprover creates an approver for unattended mode.
// It accepts a set of tool names that are auto-approved.
func NewUnattendedApprover(autoApprovedTools map[string]bool) *UnattendedApprover {
	return &UnattendedApprover{
		autoApprovedTools: autoApprovedTools,
	}
}

// Approve returns true only if the tool is in the auto-approved list.
func (u *UnattendedApprover) Approve(ctx context.Context, toolName string, toolDescription string, inputs map[string]interface{}) (bool, error) {
	if u.autoApprovedTools[toolName] {
		return true, nil
	}
	return false, fmt.Errorf("tool %s requires approval but running in unattended mode", toolName)
}

func sortedInputKeys(inputs map[string]interface{}) []string {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
