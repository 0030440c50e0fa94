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

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// DiagnosticsServer exposes the adapter's operational surface over
// HTTP, separate from the MCP stdio transport: health, bridge and
// instance diagnostics, and Prometheus metrics.
type DiagnosticsServer struct {
	adapter *Adapter
	srv     *http.Server
}

// NewDiagnosticsServer builds the diagnostics listener on the given
// address.
func NewDiagnosticsServer(adapter *Adapter, addr string) *DiagnosticsServer {
	d := &DiagnosticsServer{adapter: adapter}

	r := mux.NewRouter()
	r.HandleFunc("/health", d.healthHandler).Methods("GET")
	r.HandleFunc("/diagnostics/bridge", d.bridgeHandler).Methods("GET")
	r.HandleFunc("/diagnostics/instances", d.instancesHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	d.srv = &http.Server{
		Addr:         addr,
		Handler:      c.Handler(r),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return d
}

// Run serves until ctx is cancelled.
func (d *DiagnosticsServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return d.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (d *DiagnosticsServer) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"serverType": "confluence-adapter",
		"version":    Version,
		"status":     "ok",
	})
}

func (d *DiagnosticsServer) bridgeHandler(w http.ResponseWriter, _ *http.Request) {
	deps := d.adapter.Deps
	if !deps.Bridge.Enabled() {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": true,
		"peer":    deps.Bridge.Status(),
	})
}

func (d *DiagnosticsServer) instancesHandler(w http.ResponseWriter, _ *http.Request) {
	deps := d.adapter.Deps
	state, err := deps.Registry.Snapshot()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"instances":          state.Names(),
		"default_instance":   state.DefaultInstance,
		"space_routes":       len(state.SpaceRoutes),
		"page_cache_entries": deps.Pages.Len(),
		"loaded_at":          state.LoadedAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
