// Package jq evaluates jq expressions against decoded API responses.
package jq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

const (
	// DefaultTimeout bounds a single transform evaluation.
	DefaultTimeout = 1 * time.Second

	// DefaultMaxInputSize caps the serialized size of transform input (10MB).
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// Transformer applies jq expressions to response payloads with timeout and
// input-size protection.
type Transformer struct {
	timeout      time.Duration
	maxInputSize int64
}

// New returns a Transformer with the given limits. Zero values select the
// defaults.
func New(timeout time.Duration, maxInputSize int64) *Transformer {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if maxInputSize == 0 {
		maxInputSize = DefaultMaxInputSize
	}
	return &Transformer{
		timeout:      timeout,
		maxInputSize: maxInputSize,
	}
}

// Validate compiles the expression so syntax errors surface before any
// response ever reaches it. An empty expression is valid and means no
// transform.
func (t *Transformer) Validate(expression string) error {
	if expression == "" {
		return nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return fmt.Errorf("invalid jq expression: %w", err)
	}
	if _, err := gojq.Compile(query); err != nil {
		return fmt.Errorf("jq compilation failed: %w", err)
	}
	return nil
}

// Apply runs expression against data. An empty expression returns data
// unchanged. A query producing multiple outputs collapses them into an
// array; zero outputs yield nil.
func (t *Transformer) Apply(ctx context.Context, expression string, data any) (any, error) {
	if expression == "" {
		return data, nil
	}

	if err := t.checkInputSize(data); err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}

	resultCh := make(chan any, 1)
	errCh := make(chan error, 1)

	go func() {
		iter := code.Run(data)

		var results []any
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				errCh <- err
				return
			}
			results = append(results, v)
		}

		switch len(results) {
		case 0:
			resultCh <- nil
		case 1:
			resultCh <- results[0]
		default:
			resultCh <- results
		}
	}()

	select {
	case result := <-resultCh:
		return result, nil
	case err := <-errCh:
		return nil, err
	case <-execCtx.Done():
		return nil, fmt.Errorf("transform timeout after %v", t.timeout)
	}
}

func (t *Transformer) checkInputSize(data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal transform input: %w", err)
	}
	if int64(len(raw)) > t.maxInputSize {
		return fmt.Errorf("transform input (%d bytes) exceeds maximum (%d bytes)",
			len(raw), t.maxInputSize)
	}
	return nil
}
