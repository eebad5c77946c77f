package pica

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func knowledgeServer(t *testing.T, actions []AvailableAction) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != knowledgePath {
			http.NotFound(w, r)
			return
		}

		if id := r.URL.Query().Get("_id"); id != "" {
			matched := []AvailableAction{}
			for _, a := range actions {
				if a.ID == id {
					matched = append(matched, a)
				}
			}
			writePage(t, w, matched, len(matched))
			return
		}

		platform := r.URL.Query().Get("connectionPlatform")
		matched := []AvailableAction{}
		for _, a := range actions {
			if a.ConnectionPlatform == platform {
				matched = append(matched, a)
			}
		}

		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := skip + limit
		if end > len(matched) {
			end = len(matched)
		}
		page := []AvailableAction{}
		if skip < len(matched) {
			page = matched[skip:end]
		}
		writePage(t, w, page, len(matched))
	}))
}

func TestGetAvailableActions(t *testing.T) {
	actions := make([]AvailableAction, 0, 120)
	for i := 0; i < 120; i++ {
		actions = append(actions, AvailableAction{
			ID:                 "action-" + strconv.Itoa(i),
			Title:              "List Mail " + strconv.Itoa(i),
			ConnectionPlatform: "gmail",
			Tags:               []string{"mail"},
		})
	}
	server := knowledgeServer(t, actions)
	defer server.Close()

	c := newTestClient(t, server.URL)
	resp := c.GetAvailableActions(context.Background(), "gmail")

	require.True(t, resp.Success, "message: %s", resp.Message)
	assert.Equal(t, "gmail", resp.Platform)
	assert.Len(t, resp.Actions, 120, "both pages are collected")
	assert.Equal(t, "Found 120 available actions for gmail", resp.Content)
	assert.Equal(t, "action-0", resp.Actions[0].ID)
	assert.Equal(t, []string{"mail"}, resp.Actions[0].Tags)
}

func TestGetAvailableActions_EmptyPlatform(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid")
	resp := c.GetAvailableActions(context.Background(), "")

	assert.False(t, resp.Success)
	assert.Equal(t, "Failed to get available actions", resp.Title)
	assert.Contains(t, resp.Message, "platform")
}

func TestGetAvailableActions_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	resp := c.GetAvailableActions(context.Background(), "gmail")

	assert.False(t, resp.Success)
	assert.Equal(t, "Failed to get available actions", resp.Title)
	assert.Equal(t, "failed to fetch available actions", resp.Message,
		"the transport cause stays in the logs, not the envelope")
}

func TestGetAvailableActions_ReadPermissionsFilter(t *testing.T) {
	server := knowledgeServer(t, []AvailableAction{
		{ID: "a1", Title: "List Messages", ConnectionPlatform: "gmail"},
		{ID: "a2", Title: "Send Message", ConnectionPlatform: "gmail"},
		{ID: "a3", Title: "Delete Message", ConnectionPlatform: "gmail"},
	})
	defer server.Close()

	c := newTestClient(t, server.URL, WithPermissions(PermissionsRead))
	resp := c.GetAvailableActions(context.Background(), "gmail")

	require.True(t, resp.Success)
	require.Len(t, resp.Actions, 1)
	assert.Equal(t, "a1", resp.Actions[0].ID)
	assert.Equal(t, "Found 1 available actions for gmail", resp.Content)
}

func TestGetActionKnowledge(t *testing.T) {
	server := knowledgeServer(t, []AvailableAction{
		{ID: "a1", Title: "List Messages", ConnectionPlatform: "gmail", Knowledge: "GET /messages returns a list."},
	})
	defer server.Close()

	c := newTestClient(t, server.URL)
	resp := c.GetActionKnowledge(context.Background(), "gmail", "a1")

	require.True(t, resp.Success, "message: %s", resp.Message)
	assert.Equal(t, "Found knowledge for action: List Messages", resp.Content)
	assert.Equal(t, "gmail", resp.Platform)
	require.NotNil(t, resp.Action)
	assert.Equal(t, "GET /messages returns a list.", resp.Action.Knowledge)
}

func TestGetActionKnowledge_NotFound(t *testing.T) {
	server := knowledgeServer(t, nil)
	defer server.Close()

	c := newTestClient(t, server.URL)
	resp := c.GetActionKnowledge(context.Background(), "gmail", "missing")

	assert.False(t, resp.Success)
	assert.Equal(t, "Failed to get action knowledge", resp.Title)
	assert.Equal(t, "gmail", resp.Platform, "platform is reported even on failure")
	assert.Contains(t, resp.Message, "not found")
	assert.Nil(t, resp.Action)
}

func TestGetActionKnowledge_EmptyID(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid")
	resp := c.GetActionKnowledge(context.Background(), "gmail", "")

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "action id")
}
