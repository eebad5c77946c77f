package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name     string
		config   ClientConfig
		errorMsg string
	}{
		{
			name: "missing server name",
			config: ClientConfig{
				Command: "echo",
			},
			errorMsg: "server name is required",
		},
		{
			name: "stdio missing command",
			config: ClientConfig{
				ServerName: "test-server",
			},
			errorMsg: "command is required",
		},
		{
			name: "stdio command not found",
			config: ClientConfig{
				ServerName: "test-server",
				Command:    "definitely-not-a-real-binary-xyz",
			},
			errorMsg: "command not found",
		},
		{
			name: "stdio unsafe argument",
			config: ClientConfig{
				ServerName: "test-server",
				Command:    "echo",
				Args:       []string{"hello; rm -rf /"},
			},
			errorMsg: "unsafe pattern",
		},
		{
			name: "sse missing url",
			config: ClientConfig{
				ServerName: "test-server",
				Transport:  "sse",
			},
			errorMsg: "url is required",
		},
		{
			name: "invalid transport",
			config: ClientConfig{
				ServerName: "test-server",
				Transport:  "websocket",
				Command:    "echo",
			},
			errorMsg: "invalid transport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			_, err := NewClient(ctx, tt.config)
			if err == nil {
				t.Fatalf("NewClient() expected error containing %q, got nil", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("NewClient() error = %v, want error containing %q", err, tt.errorMsg)
			}
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("PICA_TEST_TOKEN", "tok_123")

	tests := []struct {
		name string
		env  []string
		want []string
	}{
		{
			name: "empty",
			env:  nil,
			want: nil,
		},
		{
			name: "plain value",
			env:  []string{"KEY=value"},
			want: []string{"KEY=value"},
		},
		{
			name: "braced reference",
			env:  []string{"TOKEN=${PICA_TEST_TOKEN}"},
			want: []string{"TOKEN=tok_123"},
		},
		{
			name: "bare reference",
			env:  []string{"TOKEN=$PICA_TEST_TOKEN"},
			want: []string{"TOKEN=tok_123"},
		},
		{
			name: "unset reference expands empty",
			env:  []string{"TOKEN=${PICA_TEST_UNSET_VAR}"},
			want: []string{"TOKEN="},
		},
		{
			name: "value containing equals",
			env:  []string{"OPTS=a=b,c=d"},
			want: []string{"OPTS=a=b,c=d"},
		},
		{
			name: "malformed entry passes through",
			env:  []string{"NOEQUALS"},
			want: []string{"NOEQUALS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandEnv(tt.env)
			if len(got) != len(tt.want) {
				t.Fatalf("expandEnv() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expandEnv()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestValidateArg(t *testing.T) {
	safe := []string{
		"--verbose",
		"value=1",
		"${HOME}/data",
		"/usr/local/share",
		"user@host",
	}
	for _, arg := range safe {
		if err := validateArg(arg); err != nil {
			t.Errorf("validateArg(%q) = %v, want nil", arg, err)
		}
	}

	unsafe := []string{
		"a;b",
		"a && b",
		"a || b",
		"a | b",
		"`whoami`",
		"$(whoami)",
		"line\nbreak",
		"line\rbreak",
	}
	for _, arg := range unsafe {
		if err := validateArg(arg); err == nil {
			t.Errorf("validateArg(%q) = nil, want error", arg)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()

	script := filepath.Join(dir, "server.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	plain := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(plain, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		cmd      string
		errorMsg string
	}{
		{name: "empty", cmd: "", errorMsg: "command is required"},
		{name: "absolute executable", cmd: script},
		{name: "absolute missing", cmd: filepath.Join(dir, "missing"), errorMsg: "command not found"},
		{name: "absolute directory", cmd: dir, errorMsg: "directory"},
		{name: "absolute not executable", cmd: plain, errorMsg: "not executable"},
		{name: "in PATH", cmd: "sh"},
		{name: "not in PATH", cmd: "definitely-not-a-real-binary-xyz", errorMsg: "not found in PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCommand(tt.cmd)
			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("validateCommand(%q) = %v, want nil", tt.cmd, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("validateCommand(%q) = nil, want error containing %q", tt.cmd, tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("validateCommand(%q) error = %v, want error containing %q", tt.cmd, err, tt.errorMsg)
			}
		})
	}
}

func TestConvertContent(t *testing.T) {
	text := convertContent(mcp.TextContent{Type: "text", Text: "hello"})
	if text.Type != "text" || text.Text != "hello" {
		t.Errorf("convertContent(text) = %+v, want type=text text=hello", text)
	}

	image := convertContent(mcp.ImageContent{Type: "image", Data: "aGVsbG8=", MIMEType: "image/png"})
	if image.Type != "image" || image.Data != "aGVsbG8=" || image.MimeType != "image/png" {
		t.Errorf("convertContent(image) = %+v, want type=image with data and mime type", image)
	}
}
