package pica

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnection_UnmarshalKeepsExtras(t *testing.T) {
	payload := `{
		"_id": "conn-1",
		"platformVersion": "1.0",
		"key": "live::gmail::abc",
		"environment": "live",
		"platform": "gmail",
		"createdAt": 1612345678,
		"updatedAt": 1612345679,
		"updated": true,
		"version": "1",
		"lastModifiedBy": "user1",
		"deleted": false,
		"active": true,
		"deprecated": false,
		"oauth": true,
		"identityType": "user"
	}`

	var conn Connection
	require.NoError(t, json.Unmarshal([]byte(payload), &conn))

	assert.Equal(t, "conn-1", conn.ID)
	assert.Equal(t, "live::gmail::abc", conn.Key)
	assert.Equal(t, "gmail", conn.Platform)
	assert.True(t, conn.Active)

	// Undeclared wire fields survive in the side-map.
	require.Contains(t, conn.Extra, "oauth")
	require.Contains(t, conn.Extra, "identityType")
	assert.Equal(t, `true`, string(conn.Extra["oauth"]))

	// And they come back on re-marshal.
	out, err := json.Marshal(conn)
	require.NoError(t, err)
	var roundTrip map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &roundTrip))
	assert.Contains(t, roundTrip, "oauth")
	assert.Contains(t, roundTrip, "identityType")
	assert.Equal(t, `"live::gmail::abc"`, string(roundTrip["key"]))
}

func TestConnectionDefinition_ExtraFieldsAccessible(t *testing.T) {
	payload := `{
		"_id": "def-1",
		"platformVersion": "1.0",
		"platform": "gmail",
		"type": "api",
		"name": "Gmail",
		"frontend": {
			"spec": {"title": "Gmail", "description": "Email", "platform": "gmail", "category": "email", "image": "", "tags": []},
			"connectionForm": {"name": "", "description": "", "formData": []}
		},
		"hidden": false,
		"createdAt": 1,
		"updatedAt": 1,
		"updated": false,
		"version": "1",
		"lastModifiedBy": "x",
		"deleted": false,
		"active": true,
		"deprecated": false,
		"key": "gmail-connector",
		"oauth": true
	}`

	var def ConnectionDefinition
	require.NoError(t, json.Unmarshal([]byte(payload), &def))

	assert.Equal(t, "Gmail", def.Frontend.Spec.Title)
	require.Contains(t, def.Extra, "key")
	assert.Equal(t, `"gmail-connector"`, string(def.Extra["key"]))
	require.Contains(t, def.Extra, "oauth")
}

func TestAvailableAction_MethodFromExtra(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "declared method", payload: `{"_id": "a1", "title": "List Mail", "method": "GET"}`, want: "GET"},
		{name: "no method", payload: `{"_id": "a1", "title": "List Mail"}`, want: ""},
		{name: "non-string method", payload: `{"_id": "a1", "method": 5}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var action AvailableAction
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &action))
			assert.Equal(t, tt.want, action.method())
		})
	}
}
