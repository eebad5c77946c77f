package tools

import "testing"

func TestResultText(t *testing.T) {
	tests := []struct {
		name     string
		outputs  map[string]interface{}
		expected string
	}{
		{
			name:     "nil map",
			outputs:  nil,
			expected: "",
		},
		{
			name:     "empty map",
			outputs:  map[string]interface{}{},
			expected: "",
		},
		{
			name: "success envelope uses content",
			outputs: map[string]interface{}{
				"success": true,
				"content": "Executed Send Email via gmail",
			},
			expected: "Executed Send Email via gmail",
		},
		{
			name: "failure envelope joins title and message",
			outputs: map[string]interface{}{
				"success": false,
				"title":   "Failed to execute action",
				"message": "gmail not found: no active connection",
			},
			expected: "Failed to execute action: gmail not found: no active connection",
		},
		{
			name: "title alone",
			outputs: map[string]interface{}{
				"title": "Execution not approved",
			},
			expected: "Execution not approved",
		},
		{
			name: "message alone",
			outputs: map[string]interface{}{
				"message": "connection refused",
			},
			expected: "connection refused",
		},
		{
			name: "content wins over title and message",
			outputs: map[string]interface{}{
				"content": "Found 12 available actions for github",
				"title":   "ignored",
				"message": "ignored",
			},
			expected: "Found 12 available actions for github",
		},
		{
			name: "mcp text fallback",
			outputs: map[string]interface{}{
				"text": "plain text result",
			},
			expected: "plain text result",
		},
		{
			name: "prompt tool response fallback",
			outputs: map[string]interface{}{
				"response": "github",
			},
			expected: "github",
		},
		{
			name: "result fallback",
			outputs: map[string]interface{}{
				"result": "42",
			},
			expected: "42",
		},
		{
			name: "text preferred over response",
			outputs: map[string]interface{}{
				"text":     "from text",
				"response": "from response",
			},
			expected: "from text",
		},
		{
			name: "non-string values ignored",
			outputs: map[string]interface{}{
				"content": 7,
				"data":    map[string]interface{}{"id": "msg_1"},
			},
			expected: "",
		},
		{
			name: "empty content falls through to title",
			outputs: map[string]interface{}{
				"content": "",
				"title":   "Failed to get available actions",
			},
			expected: "Failed to get available actions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResultText(tt.outputs); got != tt.expected {
				t.Errorf("ResultText() = %q, want %q", got, tt.expected)
			}
		})
	}
}
