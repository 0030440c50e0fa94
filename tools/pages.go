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

	"axonflow/confluence-adapter/confluence"
	"axonflow/confluence-adapter/instances"
	"axonflow/confluence-adapter/metrics"
)

// resolveArgs pulls the common routing arguments out of a request.
func resolveArgs(req mcp.CallToolRequest) instances.ResolveArgs {
	return instances.ResolveArgs{
		Instance: req.GetString("instance", ""),
		SpaceKey: req.GetString("space_key", ""),
		PageID:   req.GetString("page_id", ""),
	}
}

// resolveClient runs the resolution cascade and returns the bound
// client. The error result is ready to hand back to the MCP caller.
func resolveClient(deps *Deps, requestID string, args instances.ResolveArgs) (*instances.Resolution, *confluence.Client, *mcp.CallToolResult) {
	res, err := deps.Resolver.Resolve(requestID, args)
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues("error").Inc()
		return nil, nil, mcp.NewToolResultError(err.Error())
	}
	metrics.ResolutionsTotal.WithLabelValues("ok").Inc()

	client, err := deps.Clients.For(res)
	if err != nil {
		return nil, nil, mcp.NewToolResultError("failed to build client for instance " + res.Name + ": " + err.Error())
	}
	return res, client, nil
}

// GetPageTool handles the confluence_get_page MCP tool.
type GetPageTool struct {
	deps *Deps
}

// NewGetPageTool creates a GetPageTool.
func NewGetPageTool(deps *Deps) *GetPageTool {
	return &GetPageTool{deps: deps}
}

// Definition returns the MCP tool definition for confluence_get_page.
func (t *GetPageTool) Definition() mcp.Tool {
	return mcp.NewTool("confluence_get_page",
		mcp.WithDescription("Fetch a Confluence page by id, including body, version, labels, and parent."),
		mcp.WithString("page_id",
			mcp.Required(),
			mcp.Description("The Confluence page id"),
		),
		mcp.WithString("instance",
			mcp.Description("Explicit instance name, overriding automatic routing"),
		),
		mcp.WithString("space_key",
			mcp.Description("Space key hint for instance routing"),
		),
	)
}

// Handle processes the confluence_get_page tool call.
func (t *GetPageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	requestID := newRequestID()

	pageID := req.GetString("page_id", "")
	if pageID == "" {
		observe("confluence_get_page", start, "invalid")
		return mcp.NewToolResultError("'page_id' is required"), nil
	}

	res, client, errResult := resolveClient(t.deps, requestID, resolveArgs(req))
	if errResult != nil {
		observe("confluence_get_page", start, "error")
		return errResult, nil
	}

	page, err := client.GetPage(ctx, pageID)
	if err != nil {
		observe("confluence_get_page", start, "error")
		return mcp.NewToolResultError(err.Error()), nil
	}

	// A successful fetch pins the page to its instance for later calls
	// that only carry a page id.
	t.deps.Resolver.RememberPage(page.ID, page.SpaceKey, res.Name)

	t.deps.Log.InfoWithDuration(res.Name, requestID, "page fetched", durationMS(start), map[string]interface{}{
		"page_id": page.ID,
	})
	observe("confluence_get_page", start, "ok")
	return jsonResult(page), nil
}

// CreatePageTool handles the confluence_create_page MCP tool.
type CreatePageTool struct {
	deps *Deps
}

// NewCreatePageTool creates a CreatePageTool.
func NewCreatePageTool(deps *Deps) *CreatePageTool {
	return &CreatePageTool{deps: deps}
}

// Definition returns the MCP tool definition for confluence_create_page.
func (t *CreatePageTool) Definition() mcp.Tool {
	return mcp.NewTool("confluence_create_page",
		mcp.WithDescription("Create a Confluence page in a space. Space routes supply a default parent page and labels when none are given."),
		mcp.WithString("space_key",
			mcp.Required(),
			mcp.Description("Space key the page is created in"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Page title"),
		),
		mcp.WithString("body",
			mcp.Description("Page body in Confluence storage format"),
		),
		mcp.WithString("parent_page_id",
			mcp.Description("Parent page id; overrides the space route default"),
		),
		mcp.WithArray("labels",
			mcp.Description("Labels to attach; overrides the space route default"),
		),
		mcp.WithString("instance",
			mcp.Description("Explicit instance name, overriding automatic routing"),
		),
	)
}

// Handle processes the confluence_create_page tool call.
func (t *CreatePageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	requestID := newRequestID()

	spaceKey := req.GetString("space_key", "")
	title := req.GetString("title", "")
	if spaceKey == "" || title == "" {
		observe("confluence_create_page", start, "invalid")
		return mcp.NewToolResultError("'space_key' and 'title' are required"), nil
	}

	res, client, errResult := resolveClient(t.deps, requestID, instances.ResolveArgs{
		Instance: req.GetString("instance", ""),
		SpaceKey: spaceKey,
	})
	if errResult != nil {
		observe("confluence_create_page", start, "error")
		return errResult, nil
	}

	createReq := confluence.CreatePageRequest{
		SpaceKey: spaceKey,
		Title:    title,
		Body:     req.GetString("body", ""),
		ParentID: req.GetString("parent_page_id", ""),
		Labels:   stringListArg(req, "labels"),
	}
	// Space route defaults fill gaps, never override explicit args.
	if res.Route != nil {
		if createReq.ParentID == "" {
			createReq.ParentID = res.Route.DefaultParentPageID
		}
		if len(createReq.Labels) == 0 {
			createReq.Labels = res.Route.DefaultLabels
		}
	}

	page, err := client.CreatePage(ctx, createReq)
	if err != nil {
		observe("confluence_create_page", start, "error")
		return mcp.NewToolResultError(err.Error()), nil
	}

	t.deps.Resolver.RememberPage(page.ID, spaceKey, res.Name)
	t.deps.Log.InfoWithDuration(res.Name, requestID, "page created", durationMS(start), map[string]interface{}{
		"page_id": page.ID,
		"space":   spaceKey,
	})
	observe("confluence_create_page", start, "ok")
	return jsonResult(page), nil
}

// UpdatePageTool handles the confluence_update_page MCP tool.
type UpdatePageTool struct {
	deps *Deps
}

// NewUpdatePageTool creates an UpdatePageTool.
func NewUpdatePageTool(deps *Deps) *UpdatePageTool {
	return &UpdatePageTool{deps: deps}
}

// Definition returns the MCP tool definition for confluence_update_page.
func (t *UpdatePageTool) Definition() mcp.Tool {
	return mcp.NewTool("confluence_update_page",
		mcp.WithDescription("Update a Confluence page's title and body. The current version is fetched automatically unless supplied."),
		mcp.WithString("page_id",
			mcp.Required(),
			mcp.Description("The Confluence page id"),
		),
		mcp.WithString("title",
			mcp.Description("New title; keeps the current title when omitted"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("New body in Confluence storage format"),
		),
		mcp.WithNumber("version",
			mcp.Description("Current page version; fetched automatically when omitted"),
		),
		mcp.WithString("instance",
			mcp.Description("Explicit instance name, overriding automatic routing"),
		),
		mcp.WithString("space_key",
			mcp.Description("Space key hint for instance routing"),
		),
	)
}

// Handle processes the confluence_update_page tool call.
func (t *UpdatePageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	requestID := newRequestID()

	pageID := req.GetString("page_id", "")
	body := req.GetString("body", "")
	if pageID == "" || body == "" {
		observe("confluence_update_page", start, "invalid")
		return mcp.NewToolResultError("'page_id' and 'body' are required"), nil
	}

	res, client, errResult := resolveClient(t.deps, requestID, resolveArgs(req))
	if errResult != nil {
		observe("confluence_update_page", start, "error")
		return errResult, nil
	}

	title := req.GetString("title", "")
	version := intArg(req, "version", 0)
	if title == "" || version == 0 {
		current, err := client.GetPage(ctx, pageID)
		if err != nil {
			observe("confluence_update_page", start, "error")
			return mcp.NewToolResultError(err.Error()), nil
		}
		if title == "" {
			title = current.Title
		}
		if version == 0 {
			version = current.Version
		}
	}

	page, err := client.UpdatePage(ctx, confluence.UpdatePageRequest{
		PageID:  pageID,
		Title:   title,
		Body:    body,
		Version: version,
	})
	if err != nil {
		observe("confluence_update_page", start, "error")
		return mcp.NewToolResultError(err.Error()), nil
	}

	t.deps.Resolver.RememberPage(page.ID, page.SpaceKey, res.Name)
	t.deps.Log.InfoWithDuration(res.Name, requestID, "page updated", durationMS(start), map[string]interface{}{
		"page_id": page.ID,
		"version": page.Version,
	})
	observe("confluence_update_page", start, "ok")
	return jsonResult(page), nil
}

// DeletePageTool handles the confluence_delete_page MCP tool.
type DeletePageTool struct {
	deps *Deps
}

// NewDeletePageTool creates a DeletePageTool.
func NewDeletePageTool(deps *Deps) *DeletePageTool {
	return &DeletePageTool{deps: deps}
}

// Definition returns the MCP tool definition for confluence_delete_page.
func (t *DeletePageTool) Definition() mcp.Tool {
	return mcp.NewTool("confluence_delete_page",
		mcp.WithDescription("Delete a Confluence page by id."),
		mcp.WithString("page_id",
			mcp.Required(),
			mcp.Description("The Confluence page id"),
		),
		mcp.WithString("instance",
			mcp.Description("Explicit instance name, overriding automatic routing"),
		),
		mcp.WithString("space_key",
			mcp.Description("Space key hint for instance routing"),
		),
	)
}

// Handle processes the confluence_delete_page tool call.
func (t *DeletePageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	requestID := newRequestID()

	pageID := req.GetString("page_id", "")
	if pageID == "" {
		observe("confluence_delete_page", start, "invalid")
		return mcp.NewToolResultError("'page_id' is required"), nil
	}

	res, client, errResult := resolveClient(t.deps, requestID, resolveArgs(req))
	if errResult != nil {
		observe("confluence_delete_page", start, "error")
		return errResult, nil
	}

	if err := client.DeletePage(ctx, pageID); err != nil {
		observe("confluence_delete_page", start, "error")
		return mcp.NewToolResultError(err.Error()), nil
	}

	t.deps.Pages.Forget(pageID)
	t.deps.Log.InfoWithDuration(res.Name, requestID, "page deleted", durationMS(start), map[string]interface{}{
		"page_id": pageID,
	})
	observe("confluence_delete_page", start, "ok")
	return mcp.NewToolResultText("Page " + pageID + " deleted from instance " + res.Name + "."), nil
}
