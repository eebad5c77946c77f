package pica

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/picahq/pica-go/pkg/errors"
	"github.com/picahq/pica-go/pkg/observability"
)

// engineHeaders are set by the engine on every passthrough request; caller
// headers never override them.
var engineHeaders = map[string]bool{
	headerSecret:        true,
	headerConnectionKey: true,
	headerActionID:      true,
}

// executeOutcome carries what the wrapper needs for metrics, tracing, and
// audit besides the envelope itself.
type executeOutcome struct {
	resp   ExecuteResponse
	status int
	url    string
}

// ExecuteAction performs one action through the passthrough endpoint. Every
// failure — denied approval, unknown connection, missing path variables,
// transport errors, non-2xx statuses, a failing transform — comes back as a
// Success=false envelope; this method returns no Go error.
//
// Each call is tagged with a fresh request id that appears on its log lines,
// its span, and its audit record.
func (c *Client) ExecuteAction(ctx context.Context, params ExecuteParams) ExecuteResponse {
	requestID := uuid.NewString()
	log := c.logger.With("request_id", requestID)
	started := time.Now()

	ctx, span := c.tracer.Start(ctx, "pica.execute",
		observability.WithSpanKind(observability.SpanKindClient),
		observability.WithAttributes(map[string]any{
			"pica.platform":   params.Platform,
			"pica.action_id":  params.Action.ID,
			"pica.method":     params.Method,
			"pica.request_id": requestID,
		}))
	defer span.End()

	outcome := c.doExecute(ctx, log, params)
	duration := time.Since(started)

	span.SetAttributes(map[string]any{"http.status_code": outcome.status})
	if outcome.resp.Success {
		span.SetStatus(observability.StatusCodeOK, "")
	} else {
		span.SetStatus(observability.StatusCodeError, outcome.resp.Message)
	}

	if c.metrics != nil {
		c.metrics.RecordExecution(params.Platform, params.Action.ID, outcome.status, duration, outcome.resp.Success)
	}
	c.appendAudit(ctx, log, requestID, started, duration, params, outcome)

	return outcome.resp
}

// Execute is ExecuteAction under the original tool-facing name.
func (c *Client) Execute(ctx context.Context, params ExecuteParams) ExecuteResponse {
	return c.ExecuteAction(ctx, params)
}

// doExecute runs the execution sequence and reports the envelope plus the
// HTTP status (0 when the request never reached the wire) and the built URL
// (empty until assembled).
func (c *Client) doExecute(ctx context.Context, log *slog.Logger, params ExecuteParams) executeOutcome {
	log.Info("executing action",
		"platform", params.Platform,
		"action_id", params.Action.ID,
		"method", params.Method)

	method := strings.ToUpper(strings.TrimSpace(params.Method))
	if method == "" {
		return executeOutcome{resp: executeFailure("Failed to execute action", &pkgerrors.ValidationError{
			Field:      "method",
			Message:    "HTTP method is required",
			Suggestion: "Use the method the action knowledge specifies",
		})}
	}

	// Permissions gate before anything else, local check only.
	if !c.permissions.allowsMethod(method) {
		err := &pkgerrors.ValidationError{
			Field:      "method",
			Message:    fmt.Sprintf("method %s is not allowed with %s permissions", method, c.permissions),
			Suggestion: "Ask the user to run the client with a higher permission level",
		}
		log.Warn("method denied by permissions", "method", method, "permissions", string(c.permissions))
		return executeOutcome{resp: executeFailure("Failed to execute action", err)}
	}

	// Approval precedes any network traffic for this execution.
	if c.approver != nil {
		approved, err := c.approver.Approve(ctx, "pica.execute",
			fmt.Sprintf("Execute %s action %s via %s", params.Method, params.Action.ID, params.Platform),
			approvalInputs(params))
		if err != nil {
			log.Error("approval hook failed", "error", err)
			return executeOutcome{resp: executeFailure("Failed to execute action", err)}
		}
		if !approved {
			log.Warn("execution not approved", "platform", params.Platform, "action_id", params.Action.ID)
			return executeOutcome{resp: executeFailure("Execution not approved",
				pkgerrors.New("the user declined to approve this execution"))}
		}
	}

	// The connection must already be loaded; no network call otherwise.
	if _, ok := c.connectionForKey(params.ConnectionKey); !ok {
		err := pkgerrors.New(fmt.Sprintf("Connection not found. Please add a %s connection first.", params.Platform))
		log.Error("connection not found", "connection_key", params.ConnectionKey, "platform", params.Platform)
		return executeOutcome{resp: executeFailure("Failed to execute action", err)}
	}

	// Always re-fetch: the caller's path drives the URL, but title and
	// knowledge in the envelope come from the canonical record.
	action, err := c.getSingleAction(ctx, params.Action.ID)
	if err != nil {
		log.Error("failed to resolve action", "action_id", params.Action.ID, "error", err)
		return executeOutcome{resp: executeFailure("Failed to execute action", err)}
	}

	path, data, err := reconcilePathVariables(params.Action.Path, params.Data, params.PathVariables)
	if err != nil {
		log.Error("path variable reconciliation failed", "error", err)
		return executeOutcome{resp: executeFailure("Failed to execute action", err)}
	}

	headers, err := c.buildExecuteHeaders(params)
	if err != nil {
		log.Error("invalid caller headers", "error", err)
		return executeOutcome{resp: executeFailure("Failed to execute action", err)}
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	requestURL := c.baseURL + passthroughPath + path

	var body []byte
	contentType := "application/json"
	if method != http.MethodGet {
		body, contentType, err = buildRequestBody(data, params.IsFormData, params.IsURLEncoded)
		if err != nil {
			log.Error("failed to encode request body", "error", err)
			return executeOutcome{resp: executeFailure("Failed to execute action", err), url: requestURL}
		}
	}
	headers["Content-Type"] = contentType

	requestConfig := &RequestConfig{
		URL:     requestURL,
		Method:  method,
		Headers: headers,
		Params:  params.QueryParams,
	}
	if body != nil {
		requestConfig.Data = string(body)
	}

	log.Debug("request config assembled", "config", maskedRequestConfig(*requestConfig))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			log.Error("rate limiter wait aborted", "error", err)
			return executeOutcome{resp: executeFailure("Failed to execute action", err), url: requestURL}
		}
	}

	status, respBody, err := c.dispatch(ctx, method, requestURL, headers, params.QueryParams, body)
	if err != nil {
		log.Error("passthrough request failed", "error", err)
		return executeOutcome{resp: executeFailure("Failed to execute action", err), status: status, url: requestURL}
	}

	if status < 200 || status >= 300 {
		apiErr := &pkgerrors.APIError{
			Endpoint:   passthroughPath + path,
			StatusCode: status,
			Message:    http.StatusText(status),
		}
		log.Error("passthrough returned error status", "status", status)
		resp := executeFailure("Failed to execute action", apiErr)
		if raw := strings.TrimSpace(string(respBody)); raw != "" {
			resp.Raw = raw
		}
		return executeOutcome{resp: resp, status: status, url: requestURL}
	}

	// 2xx: JSON when it parses, raw text otherwise. A non-JSON body is not
	// an error.
	var result any
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			result = string(respBody)
		}
	}

	if c.transform != "" {
		transformed, err := c.transformer.Apply(ctx, c.transform, result)
		if err != nil {
			log.Error("response transform failed", "error", err)
			return executeOutcome{resp: executeFailure("Failed to execute action",
				pkgerrors.Wrap(err, "response transform failed")), status: status, url: requestURL}
		}
		result = transformed
	}

	log.Info("executed action", "action", action.Title, "platform", params.Platform, "status", status)

	return executeOutcome{
		resp: ExecuteResponse{
			Envelope:      success(fmt.Sprintf("Executed %s via %s", action.Title, params.Platform)),
			Data:          result,
			ConnectionKey: params.ConnectionKey,
			Platform:      params.Platform,
			Action:        action.Title,
			RequestConfig: requestConfig,
			Knowledge:     action.Knowledge,
		},
		status: status,
		url:    requestURL,
	}
}

// dispatch sends the request and returns status plus the full body. The
// status is 0 when the request never completed.
func (c *Client) dispatch(ctx context.Context, method, requestURL string, headers map[string]string, queryParams map[string]any, body []byte) (int, []byte, error) {
	if q := buildQuery(queryParams); q != "" {
		sep := "?"
		if strings.Contains(requestURL, "?") {
			sep = "&"
		}
		requestURL += sep + q
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return 0, nil, &pkgerrors.APIError{
			Endpoint: passthroughPath,
			Message:  "failed to build request",
			Cause:    err,
		}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, &pkgerrors.APIError{
			Endpoint: passthroughPath,
			Message:  "request failed",
			Cause:    err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &pkgerrors.APIError{
			Endpoint:   passthroughPath,
			StatusCode: resp.StatusCode,
			Message:    "failed to read response",
			Cause:      err,
		}
	}
	return resp.StatusCode, respBody, nil
}

// buildExecuteHeaders merges caller headers with the engine's pica headers.
// Caller values are validated against header injection; the engine's three
// headers always win.
func (c *Client) buildExecuteHeaders(params ExecuteParams) (map[string]string, error) {
	headers := make(map[string]string, len(params.Headers)+4)
	for k, v := range params.Headers {
		if engineHeaders[strings.ToLower(k)] {
			continue
		}
		if err := validateHeader(k, v); err != nil {
			return nil, err
		}
		headers[k] = v
	}
	headers[headerSecret] = c.secret
	headers[headerConnectionKey] = params.ConnectionKey
	headers[headerActionID] = params.Action.ID
	return headers, nil
}

// validateHeader rejects header injection attempts in caller-supplied
// headers.
func validateHeader(name, value string) error {
	for _, s := range [2]string{name, value} {
		for i, r := range s {
			if r == '\r' || r == '\n' || r == '\x00' {
				return &pkgerrors.ValidationError{
					Field:   "headers",
					Message: fmt.Sprintf("header %q contains invalid character at position %d", name, i),
				}
			}
		}
	}
	return nil
}

// reconcilePathVariables resolves the action path template against the
// merged variable set. Variables satisfied only through data are moved out
// of a copy of data so the request body does not duplicate them; the
// caller's map is never mutated. Explicit path variables win on conflict.
func reconcilePathVariables(path string, data any, pathVariables map[string]any) (string, any, error) {
	names := extractPathVariables(path)
	if len(names) == 0 {
		return path, data, nil
	}

	vars := make(map[string]any, len(pathVariables))
	for k, v := range pathVariables {
		vars[k] = v
	}

	dataMap, isMap := data.(map[string]any)

	combined := make(map[string]any, len(vars)+len(dataMap))
	if isMap {
		for k, v := range dataMap {
			combined[k] = v
		}
	}
	for k, v := range vars {
		combined[k] = v
	}

	if missing := missingPathVariables(names, combined); len(missing) > 0 {
		return "", nil, &pkgerrors.ValidationError{
			Field:      strings.Join(missing, ", "),
			Message:    "missing required path variables: " + strings.Join(missing, ", "),
			Suggestion: "Provide values for these variables in path_variables or data",
		}
	}

	if isMap {
		dataCopy := make(map[string]any, len(dataMap))
		for k, v := range dataMap {
			dataCopy[k] = v
		}
		for _, name := range names {
			if _, explicit := vars[name]; explicit {
				continue
			}
			if v, inData := dataCopy[name]; inData {
				vars[name] = v
				delete(dataCopy, name)
			}
		}
		data = dataCopy
	}

	resolved, err := resolvePathTemplate(path, vars)
	if err != nil {
		return "", nil, err
	}
	return resolved, data, nil
}

// buildRequestBody serializes data for a non-GET request. It returns the
// body bytes and the Content-Type to send.
func buildRequestBody(data any, isFormData, isURLEncoded bool) ([]byte, string, error) {
	dataMap, isMap := data.(map[string]any)

	switch {
	case isFormData && isMap && len(dataMap) > 0:
		return encodeMultipart(dataMap)
	case isURLEncoded && isMap && len(dataMap) > 0:
		return encodeFormValues(dataMap)
	case data == nil:
		return nil, "application/json", nil
	default:
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, "", &pkgerrors.ValidationError{
				Field:   "data",
				Message: "data is not JSON-encodable: " + err.Error(),
			}
		}
		return raw, "application/json", nil
	}
}

// encodeMultipart builds a multipart/form-data body: map and slice values
// become JSON parts tagged application/json, scalars plain string fields.
// Keys are written in sorted order so the body is deterministic apart from
// the boundary.
func encodeMultipart(data map[string]any) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, key := range sortedKeys(data) {
		value := data[key]
		switch value.(type) {
		case map[string]any, []any:
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, "", fmt.Errorf("failed to encode form part %q: %w", key, err)
			}
			h := textproto.MIMEHeader{}
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, key))
			h.Set("Content-Type", "application/json")
			part, err := w.CreatePart(h)
			if err != nil {
				return nil, "", err
			}
			if _, err := part.Write(raw); err != nil {
				return nil, "", err
			}
		default:
			if err := w.WriteField(key, fmt.Sprintf("%v", value)); err != nil {
				return nil, "", err
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// encodeFormValues builds an application/x-www-form-urlencoded body. Nested
// maps and slices are JSON-encoded into their value.
func encodeFormValues(data map[string]any) ([]byte, string, error) {
	form := url.Values{}
	for _, key := range sortedKeys(data) {
		value := data[key]
		switch value.(type) {
		case map[string]any, []any:
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, "", fmt.Errorf("failed to encode form value %q: %w", key, err)
			}
			form.Set(key, string(raw))
		default:
			form.Set(key, fmt.Sprintf("%v", value))
		}
	}
	return []byte(form.Encode()), "application/x-www-form-urlencoded", nil
}

// buildQuery stringifies query parameters. Slice values repeat the key, one
// pair per element.
func buildQuery(queryParams map[string]any) string {
	if len(queryParams) == 0 {
		return ""
	}
	q := url.Values{}
	for key, value := range queryParams {
		switch tv := value.(type) {
		case []any:
			for _, item := range tv {
				q.Add(key, fmt.Sprintf("%v", item))
			}
		case []string:
			for _, item := range tv {
				q.Add(key, item)
			}
		default:
			q.Add(key, fmt.Sprintf("%v", value))
		}
	}
	return q.Encode()
}

// maskedRequestConfig hides secret-bearing header values. A header is
// secret-bearing when its lowercased name contains "secret" or "key"; the
// three pica headers all match. Masked copies feed logs and audit records —
// the envelope itself carries the real values.
func maskedRequestConfig(cfg RequestConfig) RequestConfig {
	masked := cfg
	masked.Headers = make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		name := strings.ToLower(k)
		if strings.Contains(name, "secret") || strings.Contains(name, "key") {
			masked.Headers[k] = "********"
			continue
		}
		masked.Headers[k] = v
	}
	return masked
}

// appendAudit persists one audit row for the execution. Append failures are
// logged and dropped; auditing never affects the envelope.
func (c *Client) appendAudit(ctx context.Context, log *slog.Logger, requestID string, started time.Time, duration time.Duration, params ExecuteParams, outcome executeOutcome) {
	if c.audit == nil {
		return
	}

	rec := AuditRecord{
		ID:            requestID,
		Timestamp:     started.UTC(),
		Platform:      params.Platform,
		ActionID:      params.Action.ID,
		ActionTitle:   outcome.resp.Action,
		Method:        params.Method,
		URL:           outcome.url,
		ConnectionKey: params.ConnectionKey,
		StatusCode:    outcome.status,
		Success:       outcome.resp.Success,
		Duration:      duration,
		Message:       outcome.resp.Message,
	}
	if outcome.resp.RequestConfig != nil {
		if raw, err := json.Marshal(maskedRequestConfig(*outcome.resp.RequestConfig)); err == nil {
			rec.RequestConfig = raw
		}
	}

	if err := c.audit.Append(ctx, rec); err != nil {
		log.Warn("failed to append audit record", "error", err)
	}
}

// approvalInputs projects the execute parameters into the approval prompt.
func approvalInputs(params ExecuteParams) map[string]any {
	inputs := map[string]any{
		"platform":       params.Platform,
		"action_id":      params.Action.ID,
		"path":           params.Action.Path,
		"method":         params.Method,
		"connection_key": params.ConnectionKey,
	}
	if len(params.QueryParams) > 0 {
		inputs["query_params"] = params.QueryParams
	}
	if params.Data != nil {
		inputs["data"] = params.Data
	}
	return inputs
}

// executeFailure builds the failure side of an ExecuteResponse.
func executeFailure(title string, err error) ExecuteResponse {
	return ExecuteResponse{Envelope: failure(title, err)}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
