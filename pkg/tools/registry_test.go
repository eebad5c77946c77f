package tools

import (
	"context"
	"reflect"
	"testing"
)

// mockTool is a simple tool implementation for testing
type mockTool struct {
	name        string
	description string
	schema      *Schema
	executeFn   func(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error)
}

func (m *mockTool) Name() string {
	return m.name
}

func (m *mockTool) Description() string {
	return m.description
}

func (m *mockTool) Schema() *Schema {
	return m.schema
}

func (m *mockTool) Execute(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
	if m.executeFn != nil {
		return m.executeFn(ctx, inputs)
	}
	return map[string]interface{}{"result": "success"}, nil
}

func namedTool(name string) *mockTool {
	return &mockTool{
		name:   name,
		schema: &Schema{Inputs: &ParameterSchema{Type: "object"}},
	}
}

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		tool    Tool
		wantErr bool
	}{
		{
			name:    "valid tool",
			tool:    namedTool("pica.execute"),
			wantErr: false,
		},
		{
			name:    "nil tool",
			tool:    nil,
			wantErr: true,
		},
		{
			name:    "empty name",
			tool:    namedTool(""),
			wantErr: true,
		},
		{
			name:    "nil schema",
			tool:    &mockTool{name: "pica.execute"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(tt.tool)
			if (err != nil) != tt.wantErr {
				t.Errorf("Registry.Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_DuplicateRegister(t *testing.T) {
	r := NewRegistry()
	tool := namedTool("pica.execute")

	if err := r.Register(tool); err != nil {
		t.Fatalf("first Register() failed: %v", err)
	}
	if err := r.Register(tool); err == nil {
		t.Error("second Register() should have failed with duplicate name")
	}
}

func TestRegistry_GetAndHas(t *testing.T) {
	r := NewRegistry()

	if r.Has("pica.execute") {
		t.Error("Has() returned true for unregistered tool")
	}
	if _, err := r.Get("pica.execute"); err == nil {
		t.Error("Get() should fail for unregistered tool")
	}

	if err := r.Register(namedTool("pica.execute")); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	if !r.Has("pica.execute") {
		t.Error("Has() returned false for registered tool")
	}
	retrieved, err := r.Get("pica.execute")
	if err != nil {
		t.Errorf("Get() failed: %v", err)
	}
	if retrieved.Name() != "pica.execute" {
		t.Errorf("Get() returned wrong tool: got %s", retrieved.Name())
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(namedTool("pica.execute")); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if err := r.Unregister("pica.execute"); err != nil {
		t.Errorf("Unregister() failed: %v", err)
	}
	if r.Has("pica.execute") {
		t.Error("Has() returned true after Unregister()")
	}
	if err := r.Unregister("pica.execute"); err == nil {
		t.Error("Unregister() should fail for an unknown tool")
	}
}

func TestRegistry_ListIsSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"notion.search", "pica.execute", "github.create_issue"} {
		if err := r.Register(namedTool(name)); err != nil {
			t.Fatalf("Register(%s) failed: %v", name, err)
		}
	}

	want := []string{"github.create_issue", "notion.search", "pica.execute"}
	if got := r.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}

	listed := r.ListTools()
	for i, tool := range listed {
		if tool.Name() != want[i] {
			t.Errorf("ListTools()[%d] = %s, want %s", i, tool.Name(), want[i])
		}
	}
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry()

	executeCalled := false
	tool := &mockTool{
		name:        "pica.get_available_actions",
		description: "List actions",
		schema: &Schema{
			Inputs: &ParameterSchema{
				Type:     "object",
				Required: []string{"platform"},
			},
		},
		executeFn: func(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
			executeCalled = true
			return map[string]interface{}{"platform": inputs["platform"]}, nil
		},
	}

	if err := r.Register(tool); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	tests := []struct {
		name    string
		inputs  map[string]interface{}
		wantErr bool
	}{
		{
			name:    "valid inputs",
			inputs:  map[string]interface{}{"platform": "gmail"},
			wantErr: false,
		},
		{
			name:    "missing required input",
			inputs:  map[string]interface{}{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executeCalled = false
			outputs, err := r.Execute(context.Background(), "pica.get_available_actions", tt.inputs)

			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !executeCalled {
				t.Error("Execute() did not call the tool")
			}
			if !tt.wantErr && outputs == nil {
				t.Error("Execute() returned nil outputs")
			}
			if tt.wantErr && executeCalled {
				t.Error("Execute() ran the tool despite failed validation")
			}
		})
	}
}

func TestRegistry_GetToolDescriptors(t *testing.T) {
	r := NewRegistry()

	tools := []*mockTool{
		{
			name:        "pica.execute",
			description: "Execute an action",
			schema:      &Schema{Inputs: &ParameterSchema{Type: "object"}},
		},
		{
			name:        "pica.get_action_knowledge",
			description: "Fetch action knowledge",
			schema:      &Schema{Inputs: &ParameterSchema{Type: "object"}},
		},
	}
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			t.Fatalf("Register() failed: %v", err)
		}
	}

	descriptors := r.GetToolDescriptors()
	if len(descriptors) != len(tools) {
		t.Fatalf("GetToolDescriptors() returned %d descriptors, want %d", len(descriptors), len(tools))
	}
	// ListTools sorts, so descriptors come back in name order.
	if descriptors[0].Name != "pica.execute" || descriptors[1].Name != "pica.get_action_knowledge" {
		t.Errorf("descriptors out of order: %v, %v", descriptors[0].Name, descriptors[1].Name)
	}
	for _, desc := range descriptors {
		if desc.Description == "" {
			t.Errorf("descriptor %s has empty description", desc.Name)
		}
		if desc.Schema == nil {
			t.Errorf("descriptor %s has nil schema", desc.Name)
		}
	}
}

func TestRegistry_ExpandToolPatterns(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{
		"github.list_repos",
		"github.create_issue",
		"notion.search",
		"pica.execute",
	} {
		if err := r.Register(namedTool(name)); err != nil {
			t.Fatalf("Register(%s) failed: %v", name, err)
		}
	}

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name:     "exact match",
			patterns: []string{"github.list_repos"},
			want:     []string{"github.list_repos"},
		},
		{
			name:     "namespace wildcard",
			patterns: []string{"github.*"},
			want:     []string{"github.create_issue", "github.list_repos"},
		},
		{
			name:     "all tools",
			patterns: []string{"*"},
			want:     []string{"github.create_issue", "github.list_repos", "notion.search", "pica.execute"},
		},
		{
			name:     "mixed patterns deduped",
			patterns: []string{"github.list_repos", "github.*"},
			want:     []string{"github.create_issue", "github.list_repos"},
		},
		{
			name:     "unknown names drop out",
			patterns: []string{"slack.*", "nonexistent.tool"},
			want:     nil,
		},
		{
			name:     "empty patterns",
			patterns: nil,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ExpandToolPatterns(tt.patterns)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandToolPatterns(%v) = %v, want %v", tt.patterns, got, tt.want)
			}
		})
	}
}

func TestHasNamespacePrefix(t *testing.T) {
	tests := []struct {
		toolName  string
		namespace string
		want      bool
	}{
		{toolName: "github.list_repos", namespace: "github", want: true},
		{toolName: "mcp.server.tool", namespace: "mcp", want: true},
		{toolName: "github.list_repos", namespace: "notion", want: false},
		{toolName: "standalone", namespace: "github", want: false},
		{toolName: "githubish.tool", namespace: "github", want: false},
		{toolName: "github", namespace: "github", want: false},
	}

	for _, tt := range tests {
		if got := hasNamespacePrefix(tt.toolName, tt.namespace); got != tt.want {
			t.Errorf("hasNamespacePrefix(%q, %q) = %v, want %v",
				tt.toolName, tt.namespace, got, tt.want)
		}
	}
}

func TestRegistry_Filter(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"pica.execute", "pica.get_available_actions", "github.list_repos"} {
		if err := r.Register(namedTool(name)); err != nil {
			t.Fatalf("Register(%s) failed: %v", name, err)
		}
	}
	interceptor := &mockInterceptor{}
	r.SetInterceptor(interceptor)

	filtered, err := r.Filter([]string{"pica.execute", "pica.get_available_actions"})
	if err != nil {
		t.Fatalf("Filter() failed: %v", err)
	}
	if got := filtered.List(); !reflect.DeepEqual(got, []string{"pica.execute", "pica.get_available_actions"}) {
		t.Errorf("filtered List() = %v", got)
	}
	if filtered.Has("github.list_repos") {
		t.Error("filtered registry kept an excluded tool")
	}
	if filtered.interceptor != Interceptor(interceptor) {
		t.Error("filtered registry dropped the interceptor")
	}

	if _, err := r.Filter(nil); err == nil {
		t.Error("Filter(nil) should fail")
	}
	if _, err := r.Filter([]string{"unknown.tool"}); err == nil {
		t.Error("Filter() should fail on unknown names")
	}
}
