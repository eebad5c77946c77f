// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package audit

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/picahq/pica-go/pkg/errors"
	"github.com/picahq/pica-go/pkg/pica"
)

func testRecord(id, platform string, ts time.Time, success bool) pica.AuditRecord {
	return pica.AuditRecord{
		ID:            id,
		Timestamp:     ts.UTC(),
		Platform:      platform,
		ActionID:      "act::" + platform + "::send",
		ActionTitle:   "Send Message",
		Method:        "POST",
		URL:           "https://api.example.com/messages/send",
		ConnectionKey: "live::" + platform + "::default",
		StatusCode:    200,
		Success:       success,
		Duration:      150 * time.Millisecond,
	}
}

func TestStore_AppendAndGet(t *testing.T) {
	store, err := New(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	rec := testRecord("exec-123", "gmail", time.Now(), true)
	rec.RequestConfig = json.RawMessage(`{"method":"POST","headers":{"x-pica-secret":"********"}}`)

	if err := store.Append(ctx, rec); err != nil {
		t.Fatalf("failed to append record: %v", err)
	}

	retrieved, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("failed to get record: %v", err)
	}

	if retrieved.ID != rec.ID {
		t.Errorf("expected id %s, got %s", rec.ID, retrieved.ID)
	}
	if !retrieved.Timestamp.Equal(rec.Timestamp) {
		t.Errorf("expected timestamp %v, got %v", rec.Timestamp, retrieved.Timestamp)
	}
	if retrieved.Platform != "gmail" {
		t.Errorf("expected platform gmail, got %s", retrieved.Platform)
	}
	if retrieved.ActionTitle != "Send Message" {
		t.Errorf("expected action title 'Send Message', got %s", retrieved.ActionTitle)
	}
	if !retrieved.Success {
		t.Error("expected record to be successful")
	}
	if retrieved.Duration != 150*time.Millisecond {
		t.Errorf("expected duration 150ms, got %v", retrieved.Duration)
	}
	if string(retrieved.RequestConfig) != string(rec.RequestConfig) {
		t.Errorf("expected request config %s, got %s", rec.RequestConfig, retrieved.RequestConfig)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	store, err := New(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	_, err = store.Get(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing record")
	}
	if !errors.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestStore_Append_RequiresID(t *testing.T) {
	store, err := New(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	rec := testRecord("", "gmail", time.Now(), true)
	if err := store.Append(context.Background(), rec); err == nil {
		t.Fatal("expected error for record without id")
	}
}

func TestStore_List(t *testing.T) {
	store, err := New(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	records := []pica.AuditRecord{
		testRecord("exec-1", "gmail", now.Add(-2*time.Hour), true),
		testRecord("exec-2", "slack", now.Add(-1*time.Hour), false),
		testRecord("exec-3", "gmail", now, true),
	}
	for _, rec := range records {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("failed to append %s: %v", rec.ID, err)
		}
	}

	// All records, most recent first
	all, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	if all[0].ID != "exec-3" {
		t.Errorf("expected most recent record first, got %s", all[0].ID)
	}

	// Platform filter
	gmail, err := store.List(ctx, Filter{Platform: "gmail"})
	if err != nil {
		t.Fatalf("failed to list gmail records: %v", err)
	}
	if len(gmail) != 2 {
		t.Fatalf("expected 2 gmail records, got %d", len(gmail))
	}

	// Failures only
	failures, err := store.List(ctx, Filter{FailuresOnly: true})
	if err != nil {
		t.Fatalf("failed to list failures: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failed record, got %d", len(failures))
	}
	if failures[0].ID != "exec-2" {
		t.Errorf("expected exec-2, got %s", failures[0].ID)
	}

	// Limit
	limited, err := store.List(ctx, Filter{Limit: 2})
	if err != nil {
		t.Fatalf("failed to list with limit: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 records with limit, got %d", len(limited))
	}

	// Offset skips the newest
	offset, err := store.List(ctx, Filter{Offset: 1})
	if err != nil {
		t.Fatalf("failed to list with offset: %v", err)
	}
	if len(offset) != 2 {
		t.Fatalf("expected 2 records with offset, got %d", len(offset))
	}
	if offset[0].ID != "exec-2" {
		t.Errorf("expected exec-2 first with offset, got %s", offset[0].ID)
	}
}

func TestStore_List_TimeRange(t *testing.T) {
	store, err := New(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	if err := store.Append(ctx, testRecord("exec-old", "gmail", now.Add(-48*time.Hour), true)); err != nil {
		t.Fatalf("failed to append old record: %v", err)
	}
	if err := store.Append(ctx, testRecord("exec-new", "gmail", now, true)); err != nil {
		t.Fatalf("failed to append new record: %v", err)
	}

	since := now.Add(-24 * time.Hour)
	recent, err := store.List(ctx, Filter{Since: &since})
	if err != nil {
		t.Fatalf("failed to list recent records: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 recent record, got %d", len(recent))
	}
	if recent[0].ID != "exec-new" {
		t.Errorf("expected exec-new, got %s", recent[0].ID)
	}

	until := now.Add(-24 * time.Hour)
	older, err := store.List(ctx, Filter{Until: &until})
	if err != nil {
		t.Fatalf("failed to list older records: %v", err)
	}
	if len(older) != 1 {
		t.Fatalf("expected 1 older record, got %d", len(older))
	}
	if older[0].ID != "exec-old" {
		t.Errorf("expected exec-old, got %s", older[0].ID)
	}
}

func TestStore_DeleteOlderThan(t *testing.T) {
	store, err := New(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	if err := store.Append(ctx, testRecord("exec-old", "gmail", now.Add(-48*time.Hour), true)); err != nil {
		t.Fatalf("failed to append old record: %v", err)
	}
	if err := store.Append(ctx, testRecord("exec-new", "gmail", now, true)); err != nil {
		t.Fatalf("failed to append new record: %v", err)
	}

	deleted, err := store.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("failed to delete old records: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 record deleted, got %d", deleted)
	}

	remaining, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 record remaining, got %d", len(remaining))
	}
	if remaining[0].ID != "exec-new" {
		t.Errorf("expected exec-new to remain, got %s", remaining[0].ID)
	}
}

func TestStore_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	store, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	rec := testRecord("exec-persist", "gmail", time.Now(), true)
	if err := store.Append(ctx, rec); err != nil {
		t.Fatalf("failed to append record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	// Reopen and verify the record survived
	reopened, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	retrieved, err := reopened.Get(ctx, "exec-persist")
	if err != nil {
		t.Fatalf("failed to get record after reopen: %v", err)
	}
	if retrieved.Platform != "gmail" {
		t.Errorf("expected platform gmail, got %s", retrieved.Platform)
	}
}

func TestNew_RequiresPath(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}
