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
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/confluence-adapter/config"
	"axonflow/confluence-adapter/shared/logger"
)

func basicConfig() config.InstanceConfig {
	return config.InstanceConfig{
		Domain: "acme.atlassian.net",
		Credential: config.Credential{
			Type:     config.AuthBasic,
			Email:    "bot@acme.com",
			APIToken: "token-123",
		},
	}
}

func newTestClient(t *testing.T, handler http.Handler, cfg config.InstanceConfig) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient("acme-prod", cfg, ClientOptions{
		BaseURL: srv.URL,
		Logger:  logger.NewWithWriter("confluence", io.Discard),
	})
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsInvalidInstance(t *testing.T) {
	_, err := NewClient("bad", config.InstanceConfig{Domain: "x"}, ClientOptions{})
	assert.Error(t, err)
}

func TestGetPage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/api/content/12345", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "bot@acme.com", user)
		assert.Equal(t, "token-123", pass)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "12345",
			"type": "page",
			"title": "Release Notes",
			"space": {"key": "ENG"},
			"version": {"number": 7},
			"body": {"storage": {"value": "<p>hello</p>", "representation": "storage"}},
			"ancestors": [{"id": "100"}, {"id": "200"}],
			"metadata": {"labels": {"results": [{"name": "release"}]}}
		}`))
	}), basicConfig())

	page, err := c.GetPage(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", page.ID)
	assert.Equal(t, "Release Notes", page.Title)
	assert.Equal(t, "ENG", page.SpaceKey)
	assert.Equal(t, 7, page.Version)
	assert.Equal(t, "<p>hello</p>", page.Body)
	assert.Equal(t, "200", page.ParentID, "parent is the nearest ancestor")
	assert.Equal(t, []string{"release"}, page.Labels)
}

func TestOAuth2BearerAuth(t *testing.T) {
	cfg := config.InstanceConfig{
		Domain: "acme.atlassian.net",
		Credential: config.Credential{
			Type:        config.AuthOAuth2,
			AccessToken: "abc-token",
		},
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"1","title":"x"}`))
	}), cfg)

	_, err := c.GetPage(context.Background(), "1")
	require.NoError(t, err)
}

func TestCreatePageWithParentAndLabels(t *testing.T) {
	var labelCalled bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/api/content":
			assert.Equal(t, http.MethodPost, r.Method)
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "page", payload["type"])
			assert.Equal(t, "New Page", payload["title"])
			assert.Equal(t, map[string]any{"key": "ENG"}, payload["space"])
			require.Contains(t, payload, "ancestors")

			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"id":"999","title":"New Page","space":{"key":"ENG"},"version":{"number":1}}`))
		case "/rest/api/content/999/label":
			labelCalled = true
			var labels []map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&labels))
			require.Len(t, labels, 1)
			assert.Equal(t, "docs", labels[0]["name"])
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}), basicConfig())

	page, err := c.CreatePage(context.Background(), CreatePageRequest{
		SpaceKey: "ENG",
		Title:    "New Page",
		Body:     "<p>body</p>",
		ParentID: "100",
		Labels:   []string{"docs"},
	})
	require.NoError(t, err)
	assert.Equal(t, "999", page.ID)
	assert.Equal(t, []string{"docs"}, page.Labels)
	assert.True(t, labelCalled)
}

func TestUpdatePageIncrementsVersion(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/rest/api/content/42", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		version := payload["version"].(map[string]any)
		assert.Equal(t, float64(8), version["number"])

		_, _ = w.Write([]byte(`{"id":"42","title":"Updated","version":{"number":8}}`))
	}), basicConfig())

	page, err := c.UpdatePage(context.Background(), UpdatePageRequest{
		PageID:  "42",
		Title:   "Updated",
		Body:    "<p>v8</p>",
		Version: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, 8, page.Version)
}

func TestDeletePage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/rest/api/content/42", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}), basicConfig())

	require.NoError(t, c.DeletePage(context.Background(), "42"))
}

func TestAPIErrorAndIsNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no content found with id"}`))
	}), basicConfig())

	_, err := c.GetPage(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "no content found with id")
	assert.Contains(t, err.Error(), "acme-prod")
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/content/search", r.URL.Path)
		assert.Equal(t, `type=page AND text~"release"`, r.URL.Query().Get("cql"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		_, _ = w.Write([]byte(`{"results":[
			{"id":"1","title":"Release 1","type":"page","space":{"key":"ENG"}},
			{"id":"2","title":"Release 2","type":"page"}
		]}`))
	}), basicConfig())

	results, err := c.Search(context.Background(), `type=page AND text~"release"`, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "ENG", results[0].SpaceKey)
	assert.Empty(t, results[1].SpaceKey)
}

func TestListSpaces(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/space", r.URL.Path)
		_, _ = w.Write([]byte(`{"results":[{"key":"ENG","name":"Engineering","type":"global"}]}`))
	}), basicConfig())

	spaces, err := c.ListSpaces(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, spaces, 1)
	assert.Equal(t, "ENG", spaces[0].Key)
}

func TestHealthCheck(t *testing.T) {
	healthy := true
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	}), basicConfig())

	status, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)

	healthy = false
	status, err = c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Healthy)
	assert.NotEmpty(t, status.Error)
}
