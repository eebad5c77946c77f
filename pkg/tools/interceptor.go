package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/picahq/pica-go/pkg/tools/approval"
)

// ApprovalInterceptor gates tool execution behind an approval hook. Only the
// tools it is configured with require approval; everything else passes
// through. Registering it on the registry funnels every execution path (CLI,
// MCP, direct embedding) through the same approver.
type ApprovalInterceptor struct {
	approver approval.Approver
	gated    map[string]bool
	logger   *slog.Logger
	redactor *Redactor
}

// NewApprovalInterceptor builds an interceptor gating the named tools. With
// no names, only pica.execute is gated: listing and knowledge lookups are
// read-only and prompting for them trains users to approve blindly.
func NewApprovalInterceptor(approver approval.Approver, logger *slog.Logger, gatedTools ...string) *ApprovalInterceptor {
	gated := make(map[string]bool, len(gatedTools))
	for _, name := range gatedTools {
		gated[name] = true
	}
	if len(gated) == 0 {
		gated[ToolExecute] = true
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ApprovalInterceptor{
		approver: approver,
		gated:    gated,
		logger:   logger,
		redactor: NewRedactor(),
	}
}

// Intercept asks the approver before a gated tool runs.
func (i *ApprovalInterceptor) Intercept(ctx context.Context, tool Tool, inputs map[string]interface{}) error {
	if i.approver == nil || !i.gated[tool.Name()] {
		return nil
	}

	approved, err := i.approver.Approve(ctx, tool.Name(), tool.Description(), inputs)
	if err != nil {
		return fmt.Errorf("approval hook failed: %w", err)
	}
	if !approved {
		i.logger.Warn("tool execution denied", "tool", tool.Name())
		return fmt.Errorf("execution of %s was not approved", tool.Name())
	}
	return nil
}

// PostExecute logs the outcome. Output summaries pass through the redactor
// before they reach the log.
func (i *ApprovalInterceptor) PostExecute(ctx context.Context, tool Tool, outputs map[string]interface{}, err error) {
	if err != nil {
		i.logger.Warn("tool execution failed",
			"tool", tool.Name(),
			"error", i.redactor.Redact(err.Error()))
		return
	}
	i.logger.Debug("tool executed",
		"tool", tool.Name(),
		"result", i.redactor.Redact(ResultText(outputs)))
}
