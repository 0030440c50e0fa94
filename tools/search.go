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
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"axonflow/confluence-adapter/instances"
)

// SearchTool handles the confluence_search MCP tool.
type SearchTool struct {
	deps *Deps
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(deps *Deps) *SearchTool {
	return &SearchTool{deps: deps}
}

// Definition returns the MCP tool definition for confluence_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("confluence_search",
		mcp.WithDescription("Search Confluence pages with CQL or plain text. Plain text is wrapped in a text~ CQL clause."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("CQL expression or plain-text search terms"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 25)"),
		),
		mcp.WithString("instance",
			mcp.Description("Explicit instance name, overriding automatic routing"),
		),
		mcp.WithString("space_key",
			mcp.Description("Space key; scopes the search and routes the instance"),
		),
	)
}

// Handle processes the confluence_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	requestID := newRequestID()

	query := req.GetString("query", "")
	if query == "" {
		observe("confluence_search", start, "invalid")
		return mcp.NewToolResultError("'query' is required"), nil
	}

	spaceKey := req.GetString("space_key", "")
	res, client, errResult := resolveClient(t.deps, requestID, instances.ResolveArgs{
		Instance: req.GetString("instance", ""),
		SpaceKey: spaceKey,
	})
	if errResult != nil {
		observe("confluence_search", start, "error")
		return errResult, nil
	}

	cql := buildCQL(query, spaceKey)
	results, err := client.Search(ctx, cql, intArg(req, "limit", 0))
	if err != nil {
		observe("confluence_search", start, "error")
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Every hit with a space key is a page-to-instance association
	// worth remembering.
	for _, r := range results {
		if r.ID != "" {
			t.deps.Resolver.RememberPage(r.ID, r.SpaceKey, res.Name)
		}
	}

	t.deps.Log.InfoWithDuration(res.Name, requestID, "search completed", durationMS(start), map[string]interface{}{
		"results": len(results),
	})
	observe("confluence_search", start, "ok")
	return jsonResult(map[string]any{
		"instance": res.Name,
		"cql":      cql,
		"results":  results,
	}), nil
}

// buildCQL passes CQL through untouched and wraps plain text in a
// text~ clause, adding a space scope when given.
func buildCQL(query, spaceKey string) string {
	cql := query
	if !looksLikeCQL(query) {
		cql = fmt.Sprintf(`type=page AND text~%q`, query)
	}
	if spaceKey != "" && !strings.Contains(strings.ToLower(cql), "space") {
		cql = fmt.Sprintf(`space=%q AND (%s)`, spaceKey, cql)
	}
	return cql
}

func looksLikeCQL(query string) bool {
	for _, op := range []string{"=", "~", " AND ", " OR ", " NOT "} {
		if strings.Contains(query, op) {
			return true
		}
	}
	return false
}

// ListSpacesTool handles the confluence_list_spaces MCP tool.
type ListSpacesTool struct {
	deps *Deps
}

// NewListSpacesTool creates a ListSpacesTool.
func NewListSpacesTool(deps *Deps) *ListSpacesTool {
	return &ListSpacesTool{deps: deps}
}

// Definition returns the MCP tool definition for confluence_list_spaces.
func (t *ListSpacesTool) Definition() mcp.Tool {
	return mcp.NewTool("confluence_list_spaces",
		mcp.WithDescription("List the spaces visible to an instance's credential."),
		mcp.WithString("instance",
			mcp.Description("Explicit instance name, overriding automatic routing"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 25)"),
		),
	)
}

// Handle processes the confluence_list_spaces tool call.
func (t *ListSpacesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	requestID := newRequestID()

	res, client, errResult := resolveClient(t.deps, requestID, instances.ResolveArgs{
		Instance: req.GetString("instance", ""),
	})
	if errResult != nil {
		observe("confluence_list_spaces", start, "error")
		return errResult, nil
	}

	spaces, err := client.ListSpaces(ctx, intArg(req, "limit", 0))
	if err != nil {
		observe("confluence_list_spaces", start, "error")
		return mcp.NewToolResultError(err.Error()), nil
	}

	observe("confluence_list_spaces", start, "ok")
	return jsonResult(map[string]any{
		"instance": res.Name,
		"spaces":   spaces,
	}), nil
}
