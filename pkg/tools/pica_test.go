package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/picahq/pica-go/pkg/errors"
	"github.com/picahq/pica-go/pkg/pica"
)

// writeRows writes one {rows, total} page in the API's list shape.
func writeRows(t *testing.T, w http.ResponseWriter, rows any, total int) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"rows": rows, "total": total}); err != nil {
		t.Errorf("failed to encode rows: %v", err)
	}
}

// newPicaClient builds an initialized client against a stub API with one
// gmail connection and one listable action.
func newPicaClient(t *testing.T, opts ...pica.Option) *pica.Client {
	t.Helper()

	action := map[string]any{
		"_id":                "act::gmail::send",
		"title":              "Send Email",
		"connectionPlatform": "gmail",
		"knowledge":          "POST to send a message.",
		"path":               "/messages/send",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/vault/connections", func(w http.ResponseWriter, r *http.Request) {
		writeRows(t, w, []map[string]any{{
			"_id":      "conn_1",
			"key":      "live::gmail::k",
			"platform": "gmail",
			"active":   true,
		}}, 1)
	})
	mux.HandleFunc("/v1/public/connection-definitions", func(w http.ResponseWriter, r *http.Request) {
		writeRows(t, w, []map[string]any{{
			"_id":      "def_1",
			"platform": "gmail",
			"name":     "Gmail",
			"active":   true,
		}}, 1)
	})
	mux.HandleFunc("/v1/knowledge", func(w http.ResponseWriter, r *http.Request) {
		if id := r.URL.Query().Get("_id"); id != "" && id != "act::gmail::send" {
			writeRows(t, w, []map[string]any{}, 0)
			return
		}
		writeRows(t, w, []map[string]any{action}, 1)
	})
	mux.HandleFunc("/v1/passthrough/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	base := []pica.Option{
		pica.WithBaseURL(srv.URL),
		pica.WithConnectors("*"),
		pica.WithLogger(discardLogger()),
	}
	client, err := pica.New("test-secret", append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	return client
}

func TestRegisterPicaTools(t *testing.T) {
	client := newPicaClient(t)
	registry := NewRegistry()

	if err := RegisterPicaTools(registry, client); err != nil {
		t.Fatalf("RegisterPicaTools() failed: %v", err)
	}

	for _, name := range []string{ToolGetAvailableActions, ToolGetActionKnowledge, ToolExecute} {
		if !registry.Has(name) {
			t.Errorf("expected tool %s to be registered", name)
		}
	}
	if registry.Has(ToolPromptToConnect) {
		t.Error("prompt-to-connect tool registered without AuthKit mode")
	}
}

func TestRegisterPicaTools_AuthKit(t *testing.T) {
	client := newPicaClient(t, pica.WithAuthKit())
	registry := NewRegistry()

	if err := RegisterPicaTools(registry, client); err != nil {
		t.Fatalf("RegisterPicaTools() failed: %v", err)
	}

	if !registry.Has(ToolPromptToConnect) {
		t.Error("expected prompt-to-connect tool in AuthKit mode")
	}
}

func TestAvailableActionsTool(t *testing.T) {
	client := newPicaClient(t)
	registry := NewRegistry()
	if err := RegisterPicaTools(registry, client); err != nil {
		t.Fatalf("RegisterPicaTools() failed: %v", err)
	}

	outputs, err := registry.Execute(context.Background(), ToolGetAvailableActions, map[string]interface{}{
		"platform": "gmail",
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if success, _ := outputs["success"].(bool); !success {
		t.Errorf("expected success envelope, got %v", outputs)
	}
	content, _ := outputs["content"].(string)
	if !strings.Contains(content, "available actions for gmail") {
		t.Errorf("content = %q, want action count summary", content)
	}
	actions, _ := outputs["actions"].([]interface{})
	if len(actions) != 1 {
		t.Errorf("expected 1 action in output, got %d", len(actions))
	}
}

func TestAvailableActionsTool_MissingPlatform(t *testing.T) {
	client := newPicaClient(t)
	registry := NewRegistry()
	if err := RegisterPicaTools(registry, client); err != nil {
		t.Fatalf("RegisterPicaTools() failed: %v", err)
	}

	_, err := registry.Execute(context.Background(), ToolGetAvailableActions, map[string]interface{}{})
	if !errors.IsValidation(err) {
		t.Errorf("expected validation error for missing platform, got %v", err)
	}
}

func TestActionKnowledgeTool(t *testing.T) {
	client := newPicaClient(t)
	registry := NewRegistry()
	if err := RegisterPicaTools(registry, client); err != nil {
		t.Fatalf("RegisterPicaTools() failed: %v", err)
	}

	outputs, err := registry.Execute(context.Background(), ToolGetActionKnowledge, map[string]interface{}{
		"platform":  "gmail",
		"action_id": "act::gmail::send",
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if success, _ := outputs["success"].(bool); !success {
		t.Errorf("expected success envelope, got %v", outputs)
	}
	content, _ := outputs["content"].(string)
	if !strings.Contains(content, "Send Email") {
		t.Errorf("content = %q, want action title", content)
	}
	action, _ := outputs["action"].(map[string]interface{})
	if action["_id"] != "act::gmail::send" {
		t.Errorf("action = %v, want the full action record", outputs["action"])
	}
}

func TestExecuteTool(t *testing.T) {
	client := newPicaClient(t)
	registry := NewRegistry()
	if err := RegisterPicaTools(registry, client); err != nil {
		t.Fatalf("RegisterPicaTools() failed: %v", err)
	}

	outputs, err := registry.Execute(context.Background(), ToolExecute, map[string]interface{}{
		"platform":       "gmail",
		"action":         map[string]interface{}{"_id": "act::gmail::send", "path": "/messages/send"},
		"method":         "POST",
		"connection_key": "live::gmail::k",
		"data":           map[string]interface{}{"subject": "hi"},
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if success, _ := outputs["success"].(bool); !success {
		t.Fatalf("expected success envelope, got %v", outputs)
	}
	if content, _ := outputs["content"].(string); content != "Executed Send Email via gmail" {
		t.Errorf("content = %q", content)
	}
	data, _ := outputs["data"].(map[string]interface{})
	if data["id"] != "msg_1" {
		t.Errorf("data = %v, want passthrough response", outputs["data"])
	}
	rc, _ := outputs["requestConfig"].(map[string]interface{})
	if rc["method"] != "POST" {
		t.Errorf("requestConfig = %v, want echoed request", outputs["requestConfig"])
	}
}

func TestExecuteTool_MalformedAction(t *testing.T) {
	client := newPicaClient(t)
	registry := NewRegistry()
	if err := RegisterPicaTools(registry, client); err != nil {
		t.Fatalf("RegisterPicaTools() failed: %v", err)
	}

	// "action" must be an object; a bare string passes the required-field
	// check but fails decoding.
	_, err := registry.Execute(context.Background(), ToolExecute, map[string]interface{}{
		"platform":       "gmail",
		"action":         "act::gmail::send",
		"method":         "POST",
		"connection_key": "live::gmail::k",
	})
	if !errors.IsValidation(err) {
		t.Errorf("expected validation error for malformed action, got %v", err)
	}
}

func TestPromptToConnectTool(t *testing.T) {
	tool := NewPromptToConnectTool()

	outputs, err := tool.Execute(context.Background(), map[string]interface{}{
		"platform": "github",
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if outputs["response"] != "github" {
		t.Errorf("outputs = %v, want response echoing the platform", outputs)
	}

	_, err = tool.Execute(context.Background(), map[string]interface{}{"platform": ""})
	if !errors.IsValidation(err) {
		t.Errorf("expected validation error for empty platform, got %v", err)
	}
}

func TestDecodeExecuteInputs(t *testing.T) {
	params, err := decodeExecuteInputs(map[string]interface{}{
		"platform":       "gmail",
		"action":         map[string]interface{}{"_id": "act::gmail::send", "path": "/messages/send"},
		"method":         "POST",
		"connection_key": "live::gmail::k",
		"path_variables": map[string]interface{}{"userId": "42"},
		"is_form_data":   true,
	})
	if err != nil {
		t.Fatalf("decodeExecuteInputs() failed: %v", err)
	}

	if params.Platform != "gmail" || params.Method != "POST" || params.ConnectionKey != "live::gmail::k" {
		t.Errorf("params = %+v", params)
	}
	if params.Action.ID != "act::gmail::send" || params.Action.Path != "/messages/send" {
		t.Errorf("action = %+v", params.Action)
	}
	if params.PathVariables["userId"] != "42" {
		t.Errorf("path variables = %v", params.PathVariables)
	}
	if !params.IsFormData {
		t.Error("is_form_data not decoded")
	}

	_, err = decodeExecuteInputs(map[string]interface{}{"action": 42})
	if !errors.IsValidation(err) {
		t.Errorf("expected validation error for numeric action, got %v", err)
	}
}

func TestToOutput(t *testing.T) {
	out, err := toOutput(pica.ExecuteResponse{
		Envelope: pica.Envelope{Success: true, Content: "Executed Send Email via gmail"},
		Platform: "gmail",
	})
	if err != nil {
		t.Fatalf("toOutput() failed: %v", err)
	}

	if success, ok := out["success"].(bool); !ok || !success {
		t.Errorf("success = %v", out["success"])
	}
	if out["content"] != "Executed Send Email via gmail" {
		t.Errorf("content = %v", out["content"])
	}
	if out["platform"] != "gmail" {
		t.Errorf("platform = %v", out["platform"])
	}
}
