package pica

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	pkgerrors "github.com/picahq/pica-go/pkg/errors"
)

// defaultPageSize is the number of rows requested per page when walking a
// list endpoint.
const defaultPageSize = 100

// listPage is the wire shape of one page of a paginated list endpoint.
type listPage[T any] struct {
	Rows  []T `json:"rows"`
	Total int `json:"total"`
}

// fetchAllPages walks a skip/limit list endpoint and accumulates every row.
// It issues GET requests with skip incremented by limit until the collected
// count reaches the server-reported total. The total is re-read from each
// page so a shifting total is honored; an empty rows page stops the walk
// regardless, preventing an infinite loop on an inconsistent total.
//
// Any transport or decode failure aborts the walk and returns the error with
// no partial result. The context is consulted between pages.
func fetchAllPages[T any](ctx context.Context, hc *http.Client, endpoint string, params url.Values, headers http.Header, limit int) ([]T, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	var collected []T
	skip := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageParams := url.Values{}
		for k, vs := range params {
			pageParams[k] = vs
		}
		pageParams.Set("skip", strconv.Itoa(skip))
		pageParams.Set("limit", strconv.Itoa(limit))

		page, err := fetchPage[T](ctx, hc, endpoint, pageParams, headers)
		if err != nil {
			return nil, err
		}

		collected = append(collected, page.Rows...)
		skip += limit

		if len(collected) >= page.Total || len(page.Rows) == 0 {
			return collected, nil
		}
	}
}

// fetchPage issues one GET against a paginated endpoint and decodes the page.
func fetchPage[T any](ctx context.Context, hc *http.Client, endpoint string, params url.Values, headers http.Header) (listPage[T], error) {
	var page listPage[T]

	requestURL := endpoint
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return page, &pkgerrors.APIError{
			Endpoint: endpoint,
			Message:  "failed to build request",
			Cause:    err,
		}
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := hc.Do(req)
	if err != nil {
		return page, &pkgerrors.APIError{
			Endpoint: endpoint,
			Message:  "request failed",
			Cause:    err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return page, &pkgerrors.APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    "failed to read response",
			Cause:      err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return page, &pkgerrors.APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			RequestID:  resp.Header.Get("X-Request-Id"),
		}
	}

	if err := json.Unmarshal(body, &page); err != nil {
		return page, &pkgerrors.APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    "failed to decode response",
			Cause:      err,
		}
	}

	return page, nil
}
