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

package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"axonflow/confluence-adapter/config"
	"axonflow/confluence-adapter/shared/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxResponseSize caps response bodies (10MB).
	DefaultMaxResponseSize = 10 * 1024 * 1024
	// DefaultSearchLimit is used when a search supplies no limit.
	DefaultSearchLimit = 25
)

// Client is a per-instance Confluence REST client. One Client maps to
// one configured instance; the resolver decides which Client a request
// uses.
type Client struct {
	instance string
	baseURL  string
	cred     config.Credential

	httpClient      *http.Client
	maxResponseSize int64
	log             *logger.Logger
}

// ClientOptions holds optional Client settings.
type ClientOptions struct {
	HTTPClient *http.Client
	// BaseURL overrides the URL derived from the instance domain.
	// Used in tests.
	BaseURL string
	Logger  *logger.Logger
}

// NewClient creates a REST client for one configured instance.
func NewClient(instance string, cfg config.InstanceConfig, opts ClientOptions) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid instance %q: %w", instance, err)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://" + cfg.Domain + "/wiki"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("confluence")
	}

	return &Client{
		instance:        instance,
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		cred:            cfg.Credential,
		httpClient:      httpClient,
		maxResponseSize: DefaultMaxResponseSize,
		log:             log,
	}, nil
}

// Instance returns the instance name this client is bound to.
func (c *Client) Instance() string {
	return c.instance
}

// GetPage fetches a page with its body, version, and labels.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	path := "/rest/api/content/" + url.PathEscape(pageID) +
		"?expand=space,version,body.storage,ancestors,metadata.labels"

	var wire wireContent
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	return wire.toPage(), nil
}

// CreatePage creates a page in a space, optionally under a parent, and
// attaches labels when given.
func (c *Client) CreatePage(ctx context.Context, req CreatePageRequest) (*Page, error) {
	payload := map[string]any{
		"type":  "page",
		"title": req.Title,
		"space": map[string]string{"key": req.SpaceKey},
		"body": map[string]any{
			"storage": map[string]string{
				"value":          req.Body,
				"representation": "storage",
			},
		},
	}
	if req.ParentID != "" {
		payload["ancestors"] = []map[string]string{{"id": req.ParentID}}
	}

	var wire wireContent
	if err := c.doJSON(ctx, http.MethodPost, "/rest/api/content", payload, &wire); err != nil {
		return nil, err
	}
	page := wire.toPage()

	if len(req.Labels) > 0 {
		if err := c.addLabels(ctx, page.ID, req.Labels); err != nil {
			// The page exists; label attachment failing should not lose
			// that fact. Surface it in the log and return the page.
			c.log.Warn(c.instance, "", "failed to attach labels to new page", map[string]interface{}{
				"page_id": page.ID,
				"error":   err.Error(),
			})
		} else {
			page.Labels = req.Labels
		}
	}
	return page, nil
}

// UpdatePage replaces a page's title and body at the next version.
func (c *Client) UpdatePage(ctx context.Context, req UpdatePageRequest) (*Page, error) {
	payload := map[string]any{
		"type":    "page",
		"title":   req.Title,
		"version": map[string]int{"number": req.Version + 1},
		"body": map[string]any{
			"storage": map[string]string{
				"value":          req.Body,
				"representation": "storage",
			},
		},
	}

	var wire wireContent
	path := "/rest/api/content/" + url.PathEscape(req.PageID)
	if err := c.doJSON(ctx, http.MethodPut, path, payload, &wire); err != nil {
		return nil, err
	}
	return wire.toPage(), nil
}

// DeletePage removes a page.
func (c *Client) DeletePage(ctx context.Context, pageID string) error {
	path := "/rest/api/content/" + url.PathEscape(pageID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// Search runs a CQL query.
func (c *Client) Search(ctx context.Context, cql string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	path := "/rest/api/content/search?cql=" + url.QueryEscape(cql) +
		"&limit=" + strconv.Itoa(limit) + "&expand=space"

	var reply struct {
		Results []struct {
			ID      string        `json:"id"`
			Title   string        `json:"title"`
			Type    string        `json:"type"`
			Space   *contentSpace `json:"space,omitempty"`
			Excerpt string        `json:"excerpt,omitempty"`
		} `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &reply); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(reply.Results))
	for _, r := range reply.Results {
		item := SearchResult{ID: r.ID, Title: r.Title, Type: r.Type, Excerpt: r.Excerpt}
		if r.Space != nil {
			item.SpaceKey = r.Space.Key
		}
		results = append(results, item)
	}
	return results, nil
}

// ListSpaces returns the spaces visible to the instance credential.
func (c *Client) ListSpaces(ctx context.Context, limit int) ([]Space, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	path := "/rest/api/space?limit=" + strconv.Itoa(limit)

	var reply struct {
		Results []Space `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &reply); err != nil {
		return nil, err
	}
	return reply.Results, nil
}

// HealthCheck verifies the instance API is reachable with the
// configured credential.
func (c *Client) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	_, err := c.ListSpaces(ctx, 1)
	latency := time.Since(start)

	status := &HealthStatus{
		Healthy:   err == nil,
		Latency:   latency,
		Timestamp: time.Now(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status, nil
}

func (c *Client) addLabels(ctx context.Context, pageID string, labels []string) error {
	payload := make([]map[string]string, 0, len(labels))
	for _, l := range labels {
		payload = append(payload, map[string]string{"prefix": "global", "name": l})
	}
	path := "/rest/api/content/" + url.PathEscape(pageID) + "/label"
	return c.doJSON(ctx, http.MethodPost, path, payload, nil)
}

// doJSON issues one API request: marshal body, apply auth, decode the
// reply into out (when non-nil), and turn non-2xx replies into APIError.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to instance %q failed: %w", c.instance, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response from instance %q: %w", c.instance, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Instance:   c.instance,
			StatusCode: resp.StatusCode,
			Message:    apiErrorMessage(data),
		}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from instance %q: %w", c.instance, err)
	}
	return nil
}

func (c *Client) applyAuth(req *http.Request) {
	switch c.cred.Type {
	case config.AuthBasic:
		req.SetBasicAuth(c.cred.Email, c.cred.APIToken)
	case config.AuthOAuth2:
		req.Header.Set("Authorization", "Bearer "+c.cred.AccessToken)
	}
}

// apiErrorMessage pulls the human-readable message out of a Confluence
// error body, falling back to the raw body.
func apiErrorMessage(data []byte) string {
	var reply struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &reply); err == nil && reply.Message != "" {
		return reply.Message
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "no response body"
	}
	return msg
}

// IsNotFound reports whether err is a Confluence 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
