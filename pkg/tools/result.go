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

package tools

// ResultText extracts a one-line summary from a tool output map. Envelope
// outputs carry content on success and title/message on failure; tools
// adapted from external MCP servers may use text or response instead.
// Returns "" when nothing matches.
func ResultText(outputs map[string]interface{}) string {
	if len(outputs) == 0 {
		return ""
	}

	if content, ok := outputs["content"].(string); ok && content != "" {
		return content
	}

	title, _ := outputs["title"].(string)
	message, _ := outputs["message"].(string)
	switch {
	case title != "" && message != "":
		return title + ": " + message
	case title != "":
		return title
	case message != "":
		return message
	}

	for _, key := range []string{"text", "response", "result"} {
		if s, ok := outputs[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
