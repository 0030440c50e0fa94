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

// Package metrics declares the adapter's Prometheus collectors, exposed
// on the diagnostics listener's /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ToolCallsTotal counts tool invocations by tool name and outcome.
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confluence_adapter_tool_calls_total",
			Help: "Total number of tool invocations processed by the adapter",
		},
		[]string{"tool", "status"},
	)

	// ToolCallDuration tracks tool handler latency.
	ToolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "confluence_adapter_tool_call_duration_milliseconds",
			Help:    "Tool invocation duration in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
		},
		[]string{"tool"},
	)

	// ResolutionsTotal counts instance resolutions by outcome.
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confluence_adapter_instance_resolutions_total",
			Help: "Total number of instance resolution attempts",
		},
		[]string{"outcome"},
	)

	// BoundaryRejections counts safety boundary rejections by reason
	// class.
	BoundaryRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confluence_adapter_boundary_rejections_total",
			Help: "Total number of operations rejected by the safety boundary",
		},
		[]string{"reason"},
	)

	// BridgeCallsTotal counts cross-server tool calls by outcome.
	BridgeCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confluence_adapter_bridge_calls_total",
			Help: "Total number of tool calls routed to the peer adapter",
		},
		[]string{"status"},
	)

	// PeerState reports the peer connection state machine as a gauge
	// (one series per state, value 1 for the current state).
	PeerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "confluence_adapter_peer_state",
			Help: "Current peer connection state (1 for the active state)",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(ToolCallsTotal)
	prometheus.MustRegister(ToolCallDuration)
	prometheus.MustRegister(ResolutionsTotal)
	prometheus.MustRegister(BoundaryRejections)
	prometheus.MustRegister(BridgeCallsTotal)
	prometheus.MustRegister(PeerState)
}

// ObserveToolCall records one tool invocation.
func ObserveToolCall(tool, status string, duration time.Duration) {
	ToolCallsTotal.WithLabelValues(tool, status).Inc()
	ToolCallDuration.WithLabelValues(tool).Observe(float64(duration.Milliseconds()))
}

// SetPeerState flips the peer state gauge to the given state.
func SetPeerState(state string) {
	for _, s := range []string{"discovered", "connecting", "connected", "failed"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		PeerState.WithLabelValues(s).Set(v)
	}
}

// RuntimeGauges holds point-in-time readings sampled on scrape.
type RuntimeGauges struct {
	PageCacheEntries func() float64
	PageCacheHits    func() float64
	PageCacheMisses  func() float64
	BreakerFailures  func() float64
}

// RegisterRuntimeGauges registers a gauge function for each non-nil
// reading. Call once at startup.
func RegisterRuntimeGauges(g RuntimeGauges) {
	register := func(name, help string, read func() float64) {
		if read == nil {
			return
		}
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: name, Help: help}, read,
		))
	}
	register("confluence_adapter_page_cache_entries",
		"Number of live page-to-instance cache entries", g.PageCacheEntries)
	register("confluence_adapter_page_cache_hits_total",
		"Total page cache hits", g.PageCacheHits)
	register("confluence_adapter_page_cache_misses_total",
		"Total page cache misses", g.PageCacheMisses)
	register("confluence_adapter_peer_breaker_failures",
		"Consecutive failures recorded by the peer circuit breaker", g.BreakerFailures)
}
