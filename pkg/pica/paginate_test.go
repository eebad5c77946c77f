package pica

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	pkgerrors "github.com/picahq/pica-go/pkg/errors"
)

type row struct {
	ID string `json:"_id"`
}

func TestFetchAllPages_WalksUntilTotal(t *testing.T) {
	all := make([]row, 0, 250)
	for i := 0; i < 250; i++ {
		all = append(all, row{ID: strconv.Itoa(i)})
	}

	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		end := skip + limit
		if end > len(all) {
			end = len(all)
		}
		page := []row{}
		if skip < len(all) {
			page = all[skip:end]
		}
		writePage(t, w, page, len(all))
	}))
	defer server.Close()

	got, err := fetchAllPages[row](context.Background(), server.Client(), server.URL, nil, nil, 0)
	if err != nil {
		t.Fatalf("fetchAllPages() failed: %v", err)
	}

	if len(got) != 250 {
		t.Fatalf("collected %d rows, want 250", len(got))
	}
	if got[0].ID != "0" || got[249].ID != "249" {
		t.Errorf("rows out of order: first %q last %q", got[0].ID, got[249].ID)
	}
	if len(requests) != 3 {
		t.Errorf("made %d requests, want 3 pages at the default page size", len(requests))
	}
}

func TestFetchAllPages_EmptyPageStopsInconsistentTotal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		if skip == 0 {
			writePage(t, w, []row{{ID: "a"}}, 9999)
			return
		}
		// The server claims far more rows than it serves.
		writePage(t, w, []row{}, 9999)
	}))
	defer server.Close()

	got, err := fetchAllPages[row](context.Background(), server.Client(), server.URL, nil, nil, 0)
	if err != nil {
		t.Fatalf("fetchAllPages() failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("collected %d rows, want 1", len(got))
	}
}

func TestFetchAllPages_PreservesBaseParams(t *testing.T) {
	var sawPlatform, sawSupported string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawPlatform = r.URL.Query().Get("connectionPlatform")
		sawSupported = r.URL.Query().Get("supported")
		writePage(t, w, []row{{ID: "a"}}, 1)
	}))
	defer server.Close()

	params := url.Values{}
	params.Set("supported", "true")
	params.Set("connectionPlatform", "gmail")

	if _, err := fetchAllPages[row](context.Background(), server.Client(), server.URL, params, nil, 0); err != nil {
		t.Fatalf("fetchAllPages() failed: %v", err)
	}
	if sawPlatform != "gmail" || sawSupported != "true" {
		t.Errorf("base params not preserved: platform=%q supported=%q", sawPlatform, sawSupported)
	}
}

func TestFetchPage_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := fetchPage[row](context.Background(), server.Client(), server.URL, nil, nil)
	if err == nil {
		t.Fatal("fetchPage() should fail on 403")
	}

	apiErr, ok := pkgerrors.AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", apiErr.StatusCode)
	}
}

func TestFetchPage_DecodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	if _, err := fetchPage[row](context.Background(), server.Client(), server.URL, nil, nil); err == nil {
		t.Fatal("fetchPage() should fail on undecodable body")
	}
}

func TestFetchPage_SendsHeaders(t *testing.T) {
	var gotSecret string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("x-pica-secret")
		writePage(t, w, []row{}, 0)
	}))
	defer server.Close()

	headers := http.Header{}
	headers.Set("x-pica-secret", "sk-test")

	if _, err := fetchPage[row](context.Background(), server.Client(), server.URL, nil, headers); err != nil {
		t.Fatalf("fetchPage() failed: %v", err)
	}
	if gotSecret != "sk-test" {
		t.Errorf("secret header = %q, want sk-test", gotSecret)
	}
}

func TestFetchAllPages_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(t, w, []row{{ID: "a"}}, 1)
	}))
	defer server.Close()

	if _, err := fetchAllPages[row](ctx, server.Client(), server.URL, nil, nil, 0); err == nil {
		t.Fatal("fetchAllPages() should fail when the context is already done")
	}
}
