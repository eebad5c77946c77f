package pica

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// supportedConnectionsPattern captures a caller-marked supported-connections
// block. DOTALL so the block may span lines.
var supportedConnectionsPattern = regexp.MustCompile(`(?s)<SUPPORTED CONNECTIONS>(.*?)</SUPPORTED CONNECTIONS>`)

// GenerateSystemPrompt combines the client's system section with an optional
// caller-supplied prompt. If the caller text carries a <SUPPORTED
// CONNECTIONS>…</SUPPORTED CONNECTIONS> block, the block is removed from the
// caller text and its contents spliced into the system section right after
// the sentinel paragraph both templates carry. The result is caller text
// first, then the framing banner with the current UTC time, then the
// tool-usage section.
//
// Composition is pure string work: given the same inputs and the same
// second, it returns the same output.
func (c *Client) GenerateSystemPrompt(userPrompt string) string {
	section := c.systemPrompt

	if userPrompt != "" {
		if m := supportedConnectionsPattern.FindStringSubmatch(userPrompt); m != nil {
			supported := strings.TrimSpace(m[1])
			userPrompt = strings.TrimSpace(supportedConnectionsPattern.ReplaceAllString(userPrompt, ""))
			if supported != "" {
				section = strings.Replace(section, promptSentinel, promptSentinel+"\n\n"+supported, 1)
			}
		}
	}

	now := time.Now().UTC()

	var b strings.Builder
	b.WriteString(userPrompt)
	b.WriteString("\n=== PICA: INTEGRATION ASSISTANT ===\n")
	b.WriteString("Everything below is for Pica (picaos.com), your integration assistant that can instantly connect your AI agents to 100+ APIs.\n\n")
	b.WriteString("Current Time: ")
	b.WriteString(now.Format("2006-01-02 15:04:05"))
	b.WriteString(" (UTC)\n\n")
	b.WriteString("--- Tools Information ---\n")
	b.WriteString(section)

	return strings.TrimSpace(b.String())
}

// GenerateSystemPromptWithInit is GenerateSystemPrompt behind a lazy
// Initialize: callers that never initialized the client get the registry
// loaded first. The only error is a done context.
func (c *Client) GenerateSystemPromptWithInit(ctx context.Context, userPrompt string) (string, error) {
	if !c.initialized.Load() {
		if err := c.Initialize(ctx); err != nil {
			return "", err
		}
	}
	return c.GenerateSystemPrompt(userPrompt), nil
}
