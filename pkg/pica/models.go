package pica

import (
	"encoding/json"
)

// Connection is a credentialed link to one external platform. Connections are
// created by the registry fetch during Initialize and are immutable for the
// lifetime of the client.
type Connection struct {
	ID                     string           `json:"_id"`
	PlatformVersion        string           `json:"platformVersion"`
	ConnectionDefinitionID string           `json:"connectionDefinitionId,omitempty"`
	Name                   string           `json:"name,omitempty"`
	Key                    string           `json:"key"`
	Environment            string           `json:"environment"`
	Platform               string           `json:"platform"`
	SecretsServiceID       string           `json:"secretsServiceId,omitempty"`
	Settings               map[string]any   `json:"settings,omitempty"`
	Throughput             map[string]any   `json:"throughput,omitempty"`
	CreatedAt              int64            `json:"createdAt"`
	UpdatedAt              int64            `json:"updatedAt"`
	Updated                bool             `json:"updated"`
	Version                string           `json:"version"`
	LastModifiedBy         string           `json:"lastModifiedBy"`
	Deleted                bool             `json:"deleted"`
	ChangeLog              []map[string]any `json:"changeLog,omitempty"`
	Tags                   []string         `json:"tags,omitempty"`
	Active                 bool             `json:"active"`
	Deprecated             bool             `json:"deprecated"`

	// Extra holds wire fields the typed struct does not declare, preserved
	// for round-trip display.
	Extra map[string]json.RawMessage `json:"-"`
}

// FrontendSpec is the display metadata for a connection definition.
type FrontendSpec struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Platform    string   `json:"platform"`
	Category    string   `json:"category"`
	Image       string   `json:"image"`
	Tags        []string `json:"tags"`
}

// ConnectionForm describes the fields a user fills in to create a connection.
type ConnectionForm struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	FormData    []any  `json:"formData"`
}

// Frontend bundles a definition's display spec and connection form.
type Frontend struct {
	Spec           FrontendSpec   `json:"spec"`
	ConnectionForm ConnectionForm `json:"connectionForm"`
}

// ConnectionDefinition describes a platform's integration surface,
// independent of any live credential. Definitions feed prompt generation and
// display only; execution never consults them.
type ConnectionDefinition struct {
	ID              string         `json:"_id"`
	AuthMethod      map[string]any `json:"authMethod,omitempty"`
	PlatformVersion string         `json:"platformVersion"`
	Platform        string         `json:"platform"`
	Type            string         `json:"type"`
	Name            string         `json:"name"`
	AuthSecrets     []any          `json:"authSecrets,omitempty"`
	Frontend        Frontend       `json:"frontend"`
	Paths           map[string]any `json:"paths,omitempty"`
	Settings        map[string]any `json:"settings,omitempty"`
	Hidden          bool           `json:"hidden"`
	TestConnection  *string        `json:"testConnection,omitempty"`
	CreatedAt       int64          `json:"createdAt"`
	UpdatedAt       int64          `json:"updatedAt"`
	Updated         bool           `json:"updated"`
	Version         string         `json:"version"`
	LastModifiedBy  string         `json:"lastModifiedBy"`
	Deleted         bool           `json:"deleted"`
	Tags            []string       `json:"tags,omitempty"`
	Active          bool           `json:"active"`
	Deprecated      bool           `json:"deprecated"`

	// Extra holds undeclared wire fields, preserved for round-trip display.
	Extra map[string]json.RawMessage `json:"-"`
}

// AvailableAction is one invocable operation on a platform. Every field is
// optional on the wire; actions are fetched on demand and never cached.
type AvailableAction struct {
	ID                 string   `json:"_id,omitempty"`
	Title              string   `json:"title,omitempty"`
	ConnectionPlatform string   `json:"connectionPlatform,omitempty"`
	Knowledge          string   `json:"knowledge,omitempty"`
	Path               string   `json:"path,omitempty"`
	BaseURL            string   `json:"baseUrl,omitempty"`
	Tags               []string `json:"tags,omitempty"`

	// Extra holds undeclared wire fields, preserved for round-trip display.
	Extra map[string]json.RawMessage `json:"-"`
}

// method returns the HTTP method the action declares, if any. The knowledge
// endpoint does not promise the field, so it lives in the Extra side-map
// rather than the typed struct.
func (a AvailableAction) method() string {
	raw, ok := a.Extra["method"]
	if !ok {
		return ""
	}
	var m string
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	return m
}

// ActionSummary is the trimmed listing row returned by GetAvailableActions.
// Knowledge and path are withheld from listings so the consumer requests
// them per action.
type ActionSummary struct {
	ID    string   `json:"_id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

// ActionRef identifies the action to execute: its id plus the path template
// the caller wants resolved.
type ActionRef struct {
	ID   string `json:"_id"`
	Path string `json:"path"`
}

// ExecuteParams is a request to perform one action through the passthrough
// endpoint.
type ExecuteParams struct {
	Platform      string            `json:"platform"`
	Action        ActionRef         `json:"action"`
	Method        string            `json:"method"`
	ConnectionKey string            `json:"connection_key"`
	Data          any               `json:"data,omitempty"`
	PathVariables map[string]any    `json:"path_variables,omitempty"`
	QueryParams   map[string]any    `json:"query_params,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	IsFormData    bool              `json:"is_form_data,omitempty"`
	IsURLEncoded  bool              `json:"is_url_encoded,omitempty"`
}

// RequestConfig echoes the outgoing request inside a success envelope for
// audit and debugging. Data carries the serialized body exactly as sent
// (JSON text or the encoded multipart/url-encoded payload).
type RequestConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers"`
	Params  map[string]any    `json:"params,omitempty"`
	Data    any               `json:"data,omitempty"`
}

// connectionAlias mirrors Connection without methods so UnmarshalJSON can
// decode the declared fields before collecting extras.
type connectionAlias Connection

// UnmarshalJSON decodes declared fields and shunts unknown keys into Extra.
func (c *Connection) UnmarshalJSON(data []byte) error {
	var alias connectionAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*c = Connection(alias)
	c.Extra = collectExtra(data, connectionKeys)
	return nil
}

// MarshalJSON re-merges Extra with the declared fields.
func (c Connection) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(connectionAlias(c), c.Extra)
}

type connectionDefinitionAlias ConnectionDefinition

func (d *ConnectionDefinition) UnmarshalJSON(data []byte) error {
	var alias connectionDefinitionAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*d = ConnectionDefinition(alias)
	d.Extra = collectExtra(data, connectionDefinitionKeys)
	return nil
}

func (d ConnectionDefinition) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(connectionDefinitionAlias(d), d.Extra)
}

type availableActionAlias AvailableAction

func (a *AvailableAction) UnmarshalJSON(data []byte) error {
	var alias availableActionAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*a = AvailableAction(alias)
	a.Extra = collectExtra(data, availableActionKeys)
	return nil
}

func (a AvailableAction) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(availableActionAlias(a), a.Extra)
}

// Declared wire keys per model. collectExtra treats everything else as extra.
var (
	connectionKeys = map[string]struct{}{
		"_id": {}, "platformVersion": {}, "connectionDefinitionId": {},
		"name": {}, "key": {}, "environment": {}, "platform": {},
		"secretsServiceId": {}, "settings": {}, "throughput": {},
		"createdAt": {}, "updatedAt": {}, "updated": {}, "version": {},
		"lastModifiedBy": {}, "deleted": {}, "changeLog": {}, "tags": {},
		"active": {}, "deprecated": {},
	}
	connectionDefinitionKeys = map[string]struct{}{
		"_id": {}, "authMethod": {}, "platformVersion": {}, "platform": {},
		"type": {}, "name": {}, "authSecrets": {}, "frontend": {},
		"paths": {}, "settings": {}, "hidden": {}, "testConnection": {},
		"createdAt": {}, "updatedAt": {}, "updated": {}, "version": {},
		"lastModifiedBy": {}, "deleted": {}, "tags": {}, "active": {},
		"deprecated": {},
	}
	availableActionKeys = map[string]struct{}{
		"_id": {}, "title": {}, "connectionPlatform": {}, "knowledge": {},
		"path": {}, "baseUrl": {}, "tags": {},
	}
)

// collectExtra returns the keys of data absent from declared, or nil when
// every key is declared.
func collectExtra(data []byte, declared map[string]struct{}) map[string]json.RawMessage {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil
	}
	var extra map[string]json.RawMessage
	for k, v := range all {
		if _, ok := declared[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra
}

// marshalWithExtra marshals the declared fields, then overlays the extra
// keys. Declared fields win on conflict.
func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	declared, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return declared, nil
	}
	merged := make(map[string]json.RawMessage, len(extra)+16)
	for k, raw := range extra {
		merged[k] = raw
	}
	var declaredMap map[string]json.RawMessage
	if err := json.Unmarshal(declared, &declaredMap); err != nil {
		return nil, err
	}
	for k, raw := range declaredMap {
		merged[k] = raw
	}
	return json.Marshal(merged)
}
