package jq

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestTransformer_Apply(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		data       any
		want       any
		wantErr    bool
	}{
		{
			name:       "empty expression returns data as-is",
			expression: "",
			data:       map[string]any{"foo": "bar"},
			want:       map[string]any{"foo": "bar"},
		},
		{
			name:       "simple field extraction",
			expression: ".foo",
			data:       map[string]any{"foo": "bar"},
			want:       "bar",
		},
		{
			name:       "array map collapses to single result",
			expression: "map(.x)",
			data:       []any{map[string]any{"x": 1}, map[string]any{"x": 2}},
			want:       []any{1, 2},
		},
		{
			name:       "multiple outputs collapse into array",
			expression: ".[]",
			data:       []any{"a", "b"},
			want:       []any{"a", "b"},
		},
		{
			name:       "zero outputs yield nil",
			expression: "empty",
			data:       map[string]any{"foo": "bar"},
			want:       nil,
		},
		{
			name:       "invalid expression",
			expression: ".[",
			data:       map[string]any{"foo": "bar"},
			wantErr:    true,
		},
		{
			name:       "runtime error from expression",
			expression: `error("boom")`,
			data:       map[string]any{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(DefaultTimeout, DefaultMaxInputSize)
			got, err := tr.Apply(context.Background(), tt.expression, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Apply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Apply() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestTransformer_Validate(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		wantErr    bool
	}{
		{name: "empty expression is valid", expression: ""},
		{name: "simple expression is valid", expression: ".foo"},
		{name: "pipeline is valid", expression: ".rows | map(.id)"},
		{name: "invalid expression", expression: ".[", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(DefaultTimeout, DefaultMaxInputSize)
			if err := tr.Validate(tt.expression); (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.expression, err, tt.wantErr)
			}
		})
	}
}

func TestTransformer_Timeout(t *testing.T) {
	tr := New(100*time.Millisecond, DefaultMaxInputSize)

	// while(true; ...) never terminates; the deadline must cut it off.
	_, err := tr.Apply(context.Background(), "while(true; . + 1)", 0)
	if err == nil {
		t.Fatal("Apply() expected timeout error, got nil")
	}
}

func TestTransformer_InputSizeLimit(t *testing.T) {
	tr := New(DefaultTimeout, 16)

	_, err := tr.Apply(context.Background(), ".", map[string]any{"key": "a value larger than sixteen bytes"})
	if err == nil {
		t.Fatal("Apply() expected input size error, got nil")
	}
}
