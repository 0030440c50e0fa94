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
	"fmt"
	"time"
)

// Page is the adapter-facing view of a Confluence page.
type Page struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	SpaceKey string   `json:"space_key"`
	Version  int      `json:"version"`
	Body     string   `json:"body,omitempty"`
	ParentID string   `json:"parent_id,omitempty"`
	Labels   []string `json:"labels,omitempty"`
	WebURL   string   `json:"web_url,omitempty"`
}

// Space is one Confluence space.
type Space struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// SearchResult is one CQL search hit.
type SearchResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	SpaceKey string `json:"space_key,omitempty"`
	Type     string `json:"type,omitempty"`
	Excerpt  string `json:"excerpt,omitempty"`
}

// HealthStatus reports instance reachability for diagnostics.
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// CreatePageRequest carries the fields for page creation.
type CreatePageRequest struct {
	SpaceKey string
	Title    string
	Body     string
	ParentID string
	Labels   []string
}

// UpdatePageRequest carries the fields for a page update. Version must
// be the page's current version; Confluence rejects stale updates.
type UpdatePageRequest struct {
	PageID  string
	Title   string
	Body    string
	Version int
}

// APIError is a non-2xx reply from the Confluence REST API.
type APIError struct {
	Instance   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("confluence API error on instance %q: status %d: %s", e.Instance, e.StatusCode, e.Message)
}

// Wire-level shapes of the Confluence REST API.

type contentBody struct {
	Storage struct {
		Value          string `json:"value"`
		Representation string `json:"representation"`
	} `json:"storage"`
}

type contentVersion struct {
	Number int `json:"number"`
}

type contentSpace struct {
	Key string `json:"key"`
}

type contentLinks struct {
	WebUI string `json:"webui"`
	Base  string `json:"base"`
}

type contentAncestor struct {
	ID string `json:"id"`
}

type wireContent struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Space     *contentSpace     `json:"space,omitempty"`
	Version   *contentVersion   `json:"version,omitempty"`
	Body      *contentBody      `json:"body,omitempty"`
	Ancestors []contentAncestor `json:"ancestors,omitempty"`
	Links     *contentLinks     `json:"_links,omitempty"`
	Metadata  *struct {
		Labels struct {
			Results []struct {
				Name string `json:"name"`
			} `json:"results"`
		} `json:"labels"`
	} `json:"metadata,omitempty"`
}

func (w *wireContent) toPage() *Page {
	p := &Page{
		ID:    w.ID,
		Title: w.Title,
	}
	if w.Space != nil {
		p.SpaceKey = w.Space.Key
	}
	if w.Version != nil {
		p.Version = w.Version.Number
	}
	if w.Body != nil {
		p.Body = w.Body.Storage.Value
	}
	if len(w.Ancestors) > 0 {
		p.ParentID = w.Ancestors[len(w.Ancestors)-1].ID
	}
	if w.Links != nil && w.Links.WebUI != "" {
		p.WebURL = w.Links.Base + w.Links.WebUI
	}
	if w.Metadata != nil {
		for _, l := range w.Metadata.Labels.Results {
			p.Labels = append(p.Labels, l.Name)
		}
	}
	return p
}
