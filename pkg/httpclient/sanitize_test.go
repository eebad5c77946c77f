package httpclient

import (
	"net/url"
	"testing"
)

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no sensitive params",
			input:    "https://api.picaos.com/v1/knowledge?connectionPlatform=github&supported=true",
			expected: "https://api.picaos.com/v1/knowledge?connectionPlatform=github&supported=true",
		},
		{
			name:     "api_key param",
			input:    "https://api.example.com/resource?api_key=secret123&foo=bar",
			expected: "https://api.example.com/resource?api_key=%5BREDACTED%5D&foo=bar",
		},
		{
			name:     "token param",
			input:    "https://api.example.com/resource?token=abc123&foo=bar",
			expected: "https://api.example.com/resource?foo=bar&token=%5BREDACTED%5D",
		},
		{
			name:     "substring match catches connectionKey",
			input:    "https://api.example.com/resource?connectionKey=live::github::default",
			expected: "https://api.example.com/resource?connectionKey=%5BREDACTED%5D",
		},
		{
			name:     "case insensitive",
			input:    "https://api.example.com/resource?API_KEY=secret&TOKEN=tok",
			expected: "https://api.example.com/resource?API_KEY=%5BREDACTED%5D&TOKEN=%5BREDACTED%5D",
		},
		{
			name:     "no query string",
			input:    "https://api.picaos.com/v1/public/connection-definitions",
			expected: "https://api.picaos.com/v1/public/connection-definitions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("failed to parse URL: %v", err)
			}

			if got := sanitizeURL(u); got != tt.expected {
				t.Errorf("sanitizeURL() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSanitizeURL_Nil(t *testing.T) {
	if got := sanitizeURL(nil); got != "" {
		t.Errorf("sanitizeURL(nil) = %q, want empty", got)
	}
}

func TestIsSensitiveParam(t *testing.T) {
	tests := []struct {
		param string
		want  bool
	}{
		{"api_key", true},
		{"apikey", true},
		{"x-pica-secret", true},
		{"connection_key", true},
		{"Authorization", true},
		{"password", true},
		{"credential", true},
		{"platform", false},
		{"supported", false},
		{"limit", false},
		{"skip", false},
	}

	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			if got := IsSensitiveParam(tt.param); got != tt.want {
				t.Errorf("IsSensitiveParam(%q) = %v, want %v", tt.param, got, tt.want)
			}
		})
	}
}
