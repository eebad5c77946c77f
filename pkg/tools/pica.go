package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/picahq/pica-go/pkg/errors"
	"github.com/picahq/pica-go/pkg/pica"
)

// Names of the built-in pica tools.
const (
	ToolGetAvailableActions = "pica.get_available_actions"
	ToolGetActionKnowledge  = "pica.get_action_knowledge"
	ToolExecute             = "pica.execute"
	ToolPromptToConnect     = "pica.prompt_to_connect_platform"
)

// RegisterPicaTools registers the built-in pica tools on the registry. The
// prompt-to-connect tool only exists in AuthKit mode; outside it the agent
// has no way to add connections and the tool would mislead.
func RegisterPicaTools(r *Registry, client *pica.Client) error {
	toolset := []Tool{
		NewAvailableActionsTool(client),
		NewActionKnowledgeTool(client),
		NewExecuteTool(client),
	}
	if client.AuthKit() {
		toolset = append(toolset, NewPromptToConnectTool())
	}

	for _, tool := range toolset {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// AvailableActionsTool lists the actions a platform supports.
type AvailableActionsTool struct {
	client *pica.Client
}

// NewAvailableActionsTool creates the action listing tool.
func NewAvailableActionsTool(client *pica.Client) *AvailableActionsTool {
	return &AvailableActionsTool{client: client}
}

func (t *AvailableActionsTool) Name() string { return ToolGetAvailableActions }

func (t *AvailableActionsTool) Description() string {
	return "Get the available actions for a specific platform. Call this before requesting action knowledge or executing anything."
}

func (t *AvailableActionsTool) Schema() *Schema {
	return &Schema{
		Inputs: &ParameterSchema{
			Type: "object",
			Properties: map[string]*Property{
				"platform": {
					Type:        "string",
					Description: "Platform name exactly as listed in the active connections (e.g. \"gmail\")",
				},
			},
			Required: []string{"platform"},
		},
		Outputs: &ParameterSchema{
			Type:        "object",
			Description: "Envelope with success, content, and the action list",
		},
	}
}

func (t *AvailableActionsTool) Execute(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
	platform, _ := inputs["platform"].(string)
	return toOutput(t.client.GetAvailableActions(ctx, platform))
}

// ActionKnowledgeTool fetches one action's full record, including its
// knowledge text.
type ActionKnowledgeTool struct {
	client *pica.Client
}

// NewActionKnowledgeTool creates the knowledge lookup tool.
func NewActionKnowledgeTool(client *pica.Client) *ActionKnowledgeTool {
	return &ActionKnowledgeTool{client: client}
}

func (t *ActionKnowledgeTool) Name() string { return ToolGetActionKnowledge }

func (t *ActionKnowledgeTool) Description() string {
	return "Get detailed knowledge about a specific action: its path, parameters, and usage documentation. Always call this before pica.execute."
}

func (t *ActionKnowledgeTool) Schema() *Schema {
	return &Schema{
		Inputs: &ParameterSchema{
			Type: "object",
			Properties: map[string]*Property{
				"platform": {
					Type:        "string",
					Description: "Platform the action belongs to",
				},
				"action_id": {
					Type:        "string",
					Description: "Action id from pica.get_available_actions",
				},
			},
			Required: []string{"platform", "action_id"},
		},
		Outputs: &ParameterSchema{
			Type:        "object",
			Description: "Envelope with the full action record and its knowledge text",
		},
	}
}

func (t *ActionKnowledgeTool) Execute(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
	platform, _ := inputs["platform"].(string)
	actionID, _ := inputs["action_id"].(string)
	return toOutput(t.client.GetActionKnowledge(ctx, platform, actionID))
}

// ExecuteTool performs one action through the passthrough endpoint.
type ExecuteTool struct {
	client *pica.Client
}

// NewExecuteTool creates the execution tool.
func NewExecuteTool(client *pica.Client) *ExecuteTool {
	return &ExecuteTool{client: client}
}

func (t *ExecuteTool) Name() string { return ToolExecute }

func (t *ExecuteTool) Description() string {
	return "Execute a specific action through the Pica passthrough API. Requires the action knowledge to build the request correctly."
}

func (t *ExecuteTool) Schema() *Schema {
	return &Schema{
		Inputs: &ParameterSchema{
			Type: "object",
			Properties: map[string]*Property{
				"platform": {
					Type:        "string",
					Description: "Platform to execute against",
				},
				"action": {
					Type:        "object",
					Description: "The action to execute: {\"_id\": ..., \"path\": ...} from the knowledge lookup",
				},
				"method": {
					Type:        "string",
					Description: "HTTP method the action knowledge specifies",
				},
				"connection_key": {
					Type:        "string",
					Description: "Key of the connection to execute with",
				},
				"data": {
					Type:        "object",
					Description: "Request body for non-GET methods",
				},
				"path_variables": {
					Type:        "object",
					Description: "Values for {{placeholders}} in the action path",
				},
				"query_params": {
					Type:        "object",
					Description: "Query string parameters",
				},
				"headers": {
					Type:        "object",
					Description: "Extra request headers",
				},
				"is_form_data": {
					Type:        "boolean",
					Description: "Send the body as multipart/form-data",
					Default:     false,
				},
				"is_url_encoded": {
					Type:        "boolean",
					Description: "Send the body as application/x-www-form-urlencoded",
					Default:     false,
				},
			},
			Required: []string{"platform", "action", "method", "connection_key"},
		},
		Outputs: &ParameterSchema{
			Type:        "object",
			Description: "Envelope with the response data and the request configuration that was sent",
		},
	}
}

func (t *ExecuteTool) Execute(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
	params, err := decodeExecuteInputs(inputs)
	if err != nil {
		return nil, err
	}
	return toOutput(t.client.ExecuteAction(ctx, params))
}

// PromptToConnectTool tells the frontend to open the AuthKit flow for a
// platform the user has no connection to. It performs no API calls.
type PromptToConnectTool struct{}

// NewPromptToConnectTool creates the AuthKit connect prompt tool.
func NewPromptToConnectTool() *PromptToConnectTool {
	return &PromptToConnectTool{}
}

func (t *PromptToConnectTool) Name() string { return ToolPromptToConnect }

func (t *PromptToConnectTool) Description() string {
	return "Prompt the user to connect a platform they do not currently have access to. Returns the platform name for the frontend to open AuthKit with."
}

func (t *PromptToConnectTool) Schema() *Schema {
	return &Schema{
		Inputs: &ParameterSchema{
			Type: "object",
			Properties: map[string]*Property{
				"platform": {
					Type:        "string",
					Description: "Platform the user should connect",
				},
			},
			Required: []string{"platform"},
		},
		Outputs: &ParameterSchema{
			Type:        "object",
			Description: "{\"response\": platform}",
		},
	}
}

func (t *PromptToConnectTool) Execute(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
	platform, _ := inputs["platform"].(string)
	if platform == "" {
		return nil, &errors.ValidationError{
			Field:      "platform",
			Message:    "platform is required",
			Suggestion: "Pass the name of the platform the user should connect",
		}
	}
	return map[string]interface{}{"response": platform}, nil
}

// toOutput converts an envelope into the registry's map shape via JSON. Tool
// outputs cross a JSON boundary on every function-calling protocol anyway, so
// the round trip loses nothing.
func toOutput(v any) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool output: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode tool output: %w", err)
	}
	return out, nil
}

// decodeExecuteInputs maps the tool input map onto ExecuteParams through its
// JSON tags.
func decodeExecuteInputs(inputs map[string]interface{}) (pica.ExecuteParams, error) {
	raw, err := json.Marshal(inputs)
	if err != nil {
		return pica.ExecuteParams{}, &errors.ValidationError{
			Field:   "inputs",
			Message: "execute inputs are not JSON-encodable: " + err.Error(),
		}
	}
	var params pica.ExecuteParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return pica.ExecuteParams{}, &errors.ValidationError{
			Field:      "inputs",
			Message:    "malformed execute inputs: " + err.Error(),
			Suggestion: "Check field types against the pica.execute schema",
		}
	}
	return params, nil
}
