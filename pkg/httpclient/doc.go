// Package httpclient provides a unified HTTP client factory with consistent
// timeout, retry, and logging behavior for all Pica API traffic.
//
// The client factory composes transport layers to provide:
//   - Request logging with sanitized URLs (sensitive params redacted)
//   - User-Agent header injection
//   - Optional retries with exponential backoff and jitter
//   - TLS 1.2+ with secure defaults
//   - Connection pooling for performance
//
// The action execution path constructs its client with RetryAttempts: 0 —
// passthrough requests are dispatched exactly once and failures surface to
// the caller. Retries exist for read-only listing calls where re-sending
// is safe.
//
// Example usage:
//
//	cfg := httpclient.DefaultConfig()
//	cfg.RetryAttempts = 0
//	client, err := httpclient.New(cfg)
//	if err != nil {
//	    return err
//	}
//
//	resp, err := client.Get("https://api.picaos.com/v1/vault/connections")
package httpclient
