package pica

// Envelope is the shared shape of every tool-facing response. A response
// carries either a success payload with Content, or Title/Message/Raw on
// failure — never both. Operations that return envelopes never return Go
// errors for remote or user failures: an LLM-invoked tool needs failure as
// data it can react to, not an abort.
type Envelope struct {
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
	Raw     string `json:"raw,omitempty"`
}

// ActionsResponse is the envelope for GetAvailableActions.
type ActionsResponse struct {
	Envelope
	Platform string          `json:"platform,omitempty"`
	Actions  []ActionSummary `json:"actions,omitempty"`
}

// ActionKnowledgeResponse is the envelope for GetActionKnowledge. Platform is
// populated on failure too, so the consumer knows which platform the lookup
// was against.
type ActionKnowledgeResponse struct {
	Envelope
	Platform string           `json:"platform"`
	Action   *AvailableAction `json:"action,omitempty"`
}

// ExecuteResponse is the envelope for Execute. Action carries the resolved
// action title; RequestConfig echoes the full outgoing request for audit and
// debugging.
type ExecuteResponse struct {
	Envelope
	Data          any            `json:"data,omitempty"`
	ConnectionKey string         `json:"connectionKey,omitempty"`
	Platform      string         `json:"platform,omitempty"`
	Action        string         `json:"action,omitempty"`
	RequestConfig *RequestConfig `json:"requestConfig,omitempty"`
	Knowledge     string         `json:"knowledge,omitempty"`
}

// failure builds the Title/Message/Raw side of an envelope.
func failure(title string, err error) Envelope {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Envelope{
		Success: false,
		Title:   title,
		Message: msg,
		Raw:     msg,
	}
}

// success builds the Content side of an envelope.
func success(content string) Envelope {
	return Envelope{
		Success: true,
		Content: content,
	}
}
