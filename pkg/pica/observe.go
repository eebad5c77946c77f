package pica

import (
	"context"
	"encoding/json"
	"time"
)

// MetricsRecorder receives one measurement per action execution. The zero
// configuration is no recorder at all; the engine checks for nil before
// every emission.
type MetricsRecorder interface {
	// RecordExecution is called once per ExecuteAction call, after the
	// envelope is built. statusCode is 0 when the request never reached
	// the wire (connection check, approval denial, path errors).
	RecordExecution(platform, actionID string, statusCode int, duration time.Duration, success bool)
}

// AuditRecord is one row of the execution audit trail. RequestConfig is the
// masked request configuration: header values whose names contain "secret"
// or "key" are replaced before the record leaves the engine.
type AuditRecord struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Platform      string          `json:"platform"`
	ActionID      string          `json:"actionId"`
	ActionTitle   string          `json:"actionTitle"`
	Method        string          `json:"method"`
	URL           string          `json:"url"`
	ConnectionKey string          `json:"connectionKey"`
	StatusCode    int             `json:"statusCode"`
	Success       bool            `json:"success"`
	Duration      time.Duration   `json:"duration"`
	Message       string          `json:"message,omitempty"`
	RequestConfig json.RawMessage `json:"requestConfig,omitempty"`
}

// AuditSink persists execution audit records. Sinks must tolerate concurrent
// appends; the engine never retries a failed append, it logs and moves on.
type AuditSink interface {
	Append(ctx context.Context, rec AuditRecord) error
}
