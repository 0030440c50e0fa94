// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bridge

import (
	"encoding/json"
	"fmt"
)

// PayloadKind discriminates the known peer payload shapes.
type PayloadKind string

const (
	// PayloadHealth is a health-check reply.
	PayloadHealth PayloadKind = "health"
	// PayloadToolResult is a tool invocation result.
	PayloadToolResult PayloadKind = "tool_result"
	// PayloadOpaque is valid JSON in no known shape, carried as-is.
	PayloadOpaque PayloadKind = "opaque"
)

// HealthInfo is the peer's health-check reply.
type HealthInfo struct {
	ServerType string `json:"serverType"`
	Version    string `json:"version"`
	Status     string `json:"status"`
}

// Healthy reports whether the peer declared itself operational.
func (h *HealthInfo) Healthy() bool {
	return h.Status == "ok" || h.Status == "healthy"
}

// ContentItem is one element of a tool result.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolResult is the outcome of a tool invocation on the peer.
type ToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Text concatenates the textual content items.
func (r *ToolResult) Text() string {
	var out string
	for _, c := range r.Content {
		if c.Type == "text" {
			out += c.Text
		}
	}
	return out
}

// Payload is a tagged union over the peer response shapes. Exactly one
// of Health, Tool, or Raw is set, per Kind.
type Payload struct {
	Kind   PayloadKind
	Health *HealthInfo
	Tool   *ToolResult
	Raw    json.RawMessage
}

// MalformedPayloadError reports a peer reply that is not valid JSON.
type MalformedPayloadError struct {
	Err error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed peer payload: %v", e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// DecodePayload classifies a raw peer reply into one of the known
// shapes. Replies matching neither shape are kept as opaque JSON so the
// caller can still log or forward them; invalid JSON is a typed error.
func DecodePayload(data []byte) (*Payload, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &MalformedPayloadError{Err: err}
	}

	if _, ok := probe["status"]; ok {
		if _, ok := probe["serverType"]; ok {
			var h HealthInfo
			if err := json.Unmarshal(data, &h); err == nil {
				return &Payload{Kind: PayloadHealth, Health: &h}, nil
			}
		}
	}

	if _, ok := probe["content"]; ok {
		var r ToolResult
		if err := json.Unmarshal(data, &r); err == nil {
			return &Payload{Kind: PayloadToolResult, Tool: &r}, nil
		}
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return &Payload{Kind: PayloadOpaque, Raw: raw}, nil
}
