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

// Package tools implements the adapter's MCP tool handlers.
//
// Each handler follows the same pattern: a struct with dependencies
// injected via constructor, Definition() returning the mcp.Tool schema,
// and Handle() processing the request. Handlers resolve the target
// instance first, then act through the per-instance client; anything
// that reaches the peer adapter passes the safety boundary first.
package tools

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"axonflow/confluence-adapter/boundary"
	"axonflow/confluence-adapter/bridge"
	"axonflow/confluence-adapter/instances"
	"axonflow/confluence-adapter/metrics"
	"axonflow/confluence-adapter/shared/logger"
)

// Deps bundles the long-lived services the tool handlers share. All
// mutable state lives in these services, injected rather than ambient,
// so handlers stay stateless.
type Deps struct {
	Registry *instances.Registry
	Resolver *instances.Resolver
	Pages    *instances.PageCache
	Boundary *boundary.Engine
	Bridge   *bridge.Manager
	Clients  *ClientCache
	Log      *logger.Logger
}

// newRequestID tags one tool invocation for log correlation.
func newRequestID() string {
	return uuid.New().String()
}

// observe records the invocation metric for one handler run.
func observe(tool string, start time.Time, status string) {
	metrics.ObserveToolCall(tool, status, time.Since(start))
}

// durationMS converts elapsed time since start to milliseconds for the
// structured log duration field.
func durationMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("failed to encode result: " + err.Error())
	}
	return mcp.NewToolResultText(string(data))
}

// intArg extracts an integer argument, returning defaultVal if the key
// is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// stringListArg extracts a list-of-strings argument.
func stringListArg(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// mapArg extracts an object argument.
func mapArg(req mcp.CallToolRequest, key string) map[string]any {
	v, ok := req.GetArguments()[key].(map[string]any)
	if !ok {
		return nil
	}
	return v
}
