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
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"axonflow/confluence-adapter/boundary"
	"axonflow/confluence-adapter/bridge"
	"axonflow/confluence-adapter/circuit"
	"axonflow/confluence-adapter/metrics"
)

// BridgeCallTool handles the bridge_call_jira_tool MCP tool: it is the
// single gateway for outgoing cross-server operations and always passes
// the safety boundary before the peer is touched.
type BridgeCallTool struct {
	deps *Deps
}

// NewBridgeCallTool creates a BridgeCallTool.
func NewBridgeCallTool(deps *Deps) *BridgeCallTool {
	return &BridgeCallTool{deps: deps}
}

// Definition returns the MCP tool definition for bridge_call_jira_tool.
func (t *BridgeCallTool) Definition() mcp.Tool {
	return mcp.NewTool("bridge_call_jira_tool",
		mcp.WithDescription("Invoke a tool on the connected Jira adapter. The call is validated against the cross-server safety policy (allowed modes, exclusions, rate limits) before it is dispatched."),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Name of the tool on the peer adapter, e.g. jira_get_issue"),
		),
		mcp.WithObject("arguments",
			mcp.Description("Arguments forwarded to the peer tool"),
		),
		mcp.WithNumber("batch_size",
			mcp.Description("Number of items in a batched operation"),
		),
		mcp.WithBoolean("confirmed",
			mcp.Description("Set true after the user confirmed an operation that requires confirmation"),
		),
	)
}

// Handle processes the bridge_call_jira_tool tool call.
func (t *BridgeCallTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	requestID := newRequestID()

	toolName := req.GetString("tool_name", "")
	if toolName == "" {
		observe("bridge_call_jira_tool", start, "invalid")
		return mcp.NewToolResultError("'tool_name' is required"), nil
	}
	args := mapArg(req, "arguments")
	opCtx := boundary.OperationContext{
		Source:    "bridge_call_jira_tool",
		BatchSize: intArg(req, "batch_size", 0),
	}

	validation := t.deps.Boundary.Validate(ctx, boundary.Outgoing, toolName, opCtx)
	if !validation.Allowed {
		reason := "policy"
		if validation.RateLimited {
			reason = "rate_limit"
		}
		metrics.BoundaryRejections.WithLabelValues(reason).Inc()
		t.deps.Log.Warn("", requestID, "cross-server operation rejected", map[string]interface{}{
			"tool":   toolName,
			"reason": validation.Reason,
		})
		observe("bridge_call_jira_tool", start, "rejected")
		return mcp.NewToolResultError(validation.Reason), nil
	}

	if validation.RequiresConfirmation && !boolArg(req, "confirmed", false) {
		observe("bridge_call_jira_tool", start, "confirmation_required")
		return mcp.NewToolResultText(
			"Operation '" + toolName + "' requires confirmation before it is sent to the peer adapter. " +
				"Confirm with the user, then retry with confirmed=true.",
		), nil
	}

	result, err := t.deps.Bridge.CallTool(ctx, toolName, args)
	if err != nil {
		metrics.BridgeCallsTotal.WithLabelValues("error").Inc()
		observe("bridge_call_jira_tool", start, "error")
		switch {
		case errors.Is(err, bridge.ErrBridgeDisabled):
			return mcp.NewToolResultError("The Jira bridge is disabled in configuration."), nil
		case errors.Is(err, bridge.ErrPeerUnavailable):
			return mcp.NewToolResultError("No connected Jira adapter is available. The peer has not been discovered or its connection is down."), nil
		case errors.Is(err, circuit.ErrCircuitOpen):
			return mcp.NewToolResultError("The Jira adapter is currently failing and its circuit breaker is open. Retry later."), nil
		default:
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	t.deps.Boundary.RecordOperation(ctx, toolName, opCtx)
	metrics.BridgeCallsTotal.WithLabelValues("ok").Inc()

	t.deps.Log.InfoWithDuration("", requestID, "cross-server tool call completed", durationMS(start), map[string]interface{}{
		"tool": toolName,
	})
	observe("bridge_call_jira_tool", start, "ok")

	if result.IsError {
		return mcp.NewToolResultError(result.Text()), nil
	}
	return mcp.NewToolResultText(result.Text()), nil
}

// BridgeStatusTool handles the bridge_status MCP tool.
type BridgeStatusTool struct {
	deps *Deps
}

// NewBridgeStatusTool creates a BridgeStatusTool.
func NewBridgeStatusTool(deps *Deps) *BridgeStatusTool {
	return &BridgeStatusTool{deps: deps}
}

// Definition returns the MCP tool definition for bridge_status.
func (t *BridgeStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("bridge_status",
		mcp.WithDescription("Report the Jira bridge state: peer connection state machine, retry schedule, circuit breaker, and last health reply."),
	)
}

// Handle processes the bridge_status tool call.
func (t *BridgeStatusTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()

	if !t.deps.Bridge.Enabled() {
		observe("bridge_status", start, "ok")
		return mcp.NewToolResultText("The Jira bridge is disabled in configuration."), nil
	}

	status := t.deps.Bridge.Status()
	metrics.SetPeerState(string(status.State))
	observe("bridge_status", start, "ok")
	return jsonResult(status), nil
}
