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

package execute

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePairs(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{
			name:  "single pair",
			pairs: []string{"owner=acme"},
			want:  map[string]string{"owner": "acme"},
		},
		{
			name:  "value containing equals",
			pairs: []string{"filter=type=issue"},
			want:  map[string]string{"filter": "type=issue"},
		},
		{
			name:  "empty value",
			pairs: []string{"q="},
			want:  map[string]string{"q": ""},
		},
		{
			name:    "missing separator",
			pairs:   []string{"owner"},
			wantErr: true,
		},
		{
			name:    "empty name",
			pairs:   []string{"=acme"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePairs(tt.pairs, "--path-var")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildParams(t *testing.T) {
	flags := executeFlags{
		platform:      "github",
		actionID:      "conn_mod_def::abc",
		actionPath:    "/repos/{{owner}}/{{repo}}",
		method:        "post",
		connectionKey: "live::github::default::xyz",
		data:          `{"title": "bug report"}`,
		pathVars:      []string{"owner=acme", "repo=api"},
		queryParams:   []string{"state=open"},
		headers:       []string{"x-request-source=cli"},
	}

	params, err := buildParams(flags)
	require.NoError(t, err)

	assert.Equal(t, "github", params.Platform)
	assert.Equal(t, "conn_mod_def::abc", params.Action.ID)
	assert.Equal(t, "/repos/{{owner}}/{{repo}}", params.Action.Path)
	assert.Equal(t, "POST", params.Method, "method should be upper-cased")
	assert.Equal(t, "live::github::default::xyz", params.ConnectionKey)
	assert.Equal(t, map[string]any{"title": "bug report"}, params.Data)
	assert.Equal(t, map[string]any{"owner": "acme", "repo": "api"}, params.PathVariables)
	assert.Equal(t, map[string]any{"state": "open"}, params.QueryParams)
	assert.Equal(t, map[string]string{"x-request-source": "cli"}, params.Headers)
}

func TestBuildParams_DataFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "body.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"note": "hi"}`), 0o600))

	params, err := buildParams(executeFlags{
		platform:      "gmail",
		actionID:      "a1",
		actionPath:    "/send",
		method:        "POST",
		connectionKey: "k",
		data:          "@" + path,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"note": "hi"}, params.Data)
}

func TestBuildParams_InvalidData(t *testing.T) {
	_, err := buildParams(executeFlags{
		platform:      "gmail",
		actionID:      "a1",
		actionPath:    "/send",
		method:        "POST",
		connectionKey: "k",
		data:          "{not json",
	})
	assert.Error(t, err)

	_, err = buildParams(executeFlags{
		platform:      "gmail",
		actionID:      "a1",
		actionPath:    "/send",
		method:        "POST",
		connectionKey: "k",
		data:          "@/nonexistent/body.json",
	})
	assert.Error(t, err)
}

func TestBuildParams_EncodingFlags(t *testing.T) {
	params, err := buildParams(executeFlags{
		platform:      "slack",
		actionID:      "a1",
		actionPath:    "/upload",
		method:        "POST",
		connectionKey: "k",
		formData:      true,
	})
	require.NoError(t, err)
	assert.True(t, params.IsFormData)
	assert.False(t, params.IsURLEncoded)
}
