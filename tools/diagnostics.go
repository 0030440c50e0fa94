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

package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"axonflow/confluence-adapter/instances"
)

// DiagnosticsTool handles the adapter_diagnostics MCP tool.
type DiagnosticsTool struct {
	deps *Deps
}

// NewDiagnosticsTool creates a DiagnosticsTool.
func NewDiagnosticsTool(deps *Deps) *DiagnosticsTool {
	return &DiagnosticsTool{deps: deps}
}

// Definition returns the MCP tool definition for adapter_diagnostics.
func (t *DiagnosticsTool) Definition() mcp.Tool {
	return mcp.NewTool("adapter_diagnostics",
		mcp.WithDescription("Report adapter internals: configured instances, registry and page cache counters, safety boundary counters, and bridge state. Optionally health-checks every instance."),
		mcp.WithBoolean("check_instances",
			mcp.Description("When true, issue a live health check against every configured instance"),
		),
	)
}

// Handle processes the adapter_diagnostics tool call.
func (t *DiagnosticsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	requestID := newRequestID()

	state, err := t.deps.Registry.Snapshot()
	if err != nil {
		observe("adapter_diagnostics", start, "error")
		return mcp.NewToolResultError("failed to load instance registry: " + err.Error()), nil
	}

	registryStats := t.deps.Registry.Stats()
	pageStats := t.deps.Pages.Stats()
	boundaryStats := t.deps.Boundary.Stats()

	report := map[string]any{
		"instances":        state.Names(),
		"default_instance": state.DefaultInstance,
		"space_routes":     len(state.SpaceRoutes),
		"registry": map[string]any{
			"hits":        registryStats.Hits,
			"reloads":     registryStats.Reloads,
			"load_errors": registryStats.LoadErrors,
			"last_reload": registryStats.LastReload,
		},
		"page_cache": map[string]any{
			"entries":   t.deps.Pages.Len(),
			"hits":      pageStats.Hits,
			"misses":    pageStats.Misses,
			"evictions": pageStats.Evictions,
		},
		"boundary": map[string]any{
			"allowed":            boundaryStats.Allowed,
			"rejected":           boundaryStats.Rejected,
			"rate_limited":       boundaryStats.RateLimited,
			"blocked_rejections": boundaryStats.BlockedRejections,
			"history_entries":    t.deps.Boundary.HistoryLen(),
		},
	}

	if t.deps.Bridge.Enabled() {
		report["bridge"] = t.deps.Bridge.Status()
	} else {
		report["bridge"] = map[string]any{"enabled": false}
	}

	if boolArg(req, "check_instances", false) {
		report["instance_health"] = t.checkInstances(ctx, requestID, state)
	}

	observe("adapter_diagnostics", start, "ok")
	return jsonResult(report), nil
}

func (t *DiagnosticsTool) checkInstances(ctx context.Context, requestID string, state *instances.State) map[string]any {
	health := make(map[string]any, len(state.Instances))
	for _, name := range state.Names() {
		res := &instances.Resolution{Name: name, Config: state.Instances[name]}
		client, err := t.deps.Clients.For(res)
		if err != nil {
			health[name] = map[string]any{"healthy": false, "error": err.Error()}
			continue
		}
		status, err := client.HealthCheck(ctx)
		if err != nil {
			health[name] = map[string]any{"healthy": false, "error": err.Error()}
			continue
		}
		if !status.Healthy {
			t.deps.Log.Warn(name, requestID, "instance health check failed", map[string]interface{}{
				"error": status.Error,
			})
		}
		health[name] = status
	}
	return health
}
