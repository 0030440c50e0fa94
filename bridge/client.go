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
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// PeerClient is an established tool-invocation connection to the peer
// adapter.
type PeerClient interface {
	// CallTool invokes a named tool on the peer.
	CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error)
	// Close releases the connection.
	Close() error
}

// ClientFactory opens a PeerClient against an endpoint. Abstracted so
// the connection manager can be tested without a live peer.
type ClientFactory func(ctx context.Context, endpoint string, timeout time.Duration) (PeerClient, error)

// mcpPeerClient speaks MCP over streamable HTTP to the peer adapter.
type mcpPeerClient struct {
	inner *client.Client
}

// NewMCPPeerClient connects to the peer's MCP endpoint and performs the
// protocol handshake.
func NewMCPPeerClient(ctx context.Context, endpoint string, timeout time.Duration) (PeerClient, error) {
	c, err := client.NewStreamableHttpClient(endpoint,
		transport.WithHTTPTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer client: %w", err)
	}

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start peer connection: %w", err)
	}

	_, err = c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "confluence-adapter",
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("peer initialize failed: %w", err)
	}

	return &mcpPeerClient{inner: c}, nil
}

func (p *mcpPeerClient) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	result, err := p.inner.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("peer tool call %q failed: %w", name, err)
	}
	return convertToolResult(result), nil
}

func (p *mcpPeerClient) Close() error {
	return p.inner.Close()
}

// convertToolResult maps the SDK result into the bridge's typed shape.
// Non-text content is carried with its type tag and no body.
func convertToolResult(result *mcp.CallToolResult) *ToolResult {
	out := &ToolResult{IsError: result.IsError}
	for _, content := range result.Content {
		if text, ok := mcp.AsTextContent(content); ok {
			out.Content = append(out.Content, ContentItem{Type: "text", Text: text.Text})
			continue
		}
		out.Content = append(out.Content, ContentItem{Type: fmt.Sprintf("%T", content)})
	}
	return out
}
