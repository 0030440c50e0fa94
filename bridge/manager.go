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
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"axonflow/confluence-adapter/circuit"
	"axonflow/confluence-adapter/config"
	"axonflow/confluence-adapter/shared/logger"
)

// PeerState is the connection lifecycle state of the peer adapter.
type PeerState string

const (
	// StateDiscovered means the health probe has seen the peer but no
	// connection has been established yet.
	StateDiscovered PeerState = "discovered"
	// StateConnecting means a connection attempt is in flight.
	StateConnecting PeerState = "connecting"
	// StateConnected means tool calls can be routed to the peer.
	StateConnected PeerState = "connected"
	// StateFailed means the last probe or connection attempt failed.
	StateFailed PeerState = "failed"
)

// Reconnection backoff schedule.
const (
	backoffBase = 5 * time.Second
	backoffCap  = 60 * time.Second
)

// maxProbeBody caps the health probe response size.
const maxProbeBody = 1 << 20

// ErrPeerUnavailable means no connected peer exists. It is distinct
// from circuit.ErrCircuitOpen, which implies a peer exists but is
// unhealthy at the application level.
var ErrPeerUnavailable = errors.New("no connected peer available")

// ErrBridgeDisabled means the bridge is switched off in configuration.
var ErrBridgeDisabled = errors.New("bridge is disabled")

// peer tracks the single configured peer candidate. The manager owns
// all mutation; fields are guarded by the manager's mutex.
type peer struct {
	state  PeerState
	client PeerClient

	breaker *circuit.Breaker

	retries          int
	retriesExhausted bool
	nextRetryAt      time.Time
	schedule         *backoff.ExponentialBackOff

	lastHealth *HealthInfo
	lastError  string
}

// ManagerStats tracks discovery and connection outcomes.
type ManagerStats struct {
	mu              sync.Mutex
	Probes          int64
	ProbeFailures   int64
	ConnectAttempts int64
	ConnectFailures int64
	ToolCalls       int64
}

// Manager runs peer discovery and owns the peer connection. Transport
// reachability (the health probe) and application health (the circuit
// breaker around every tool call) are tracked separately; either one
// alone can make the peer unusable.
type Manager struct {
	mu sync.Mutex

	cfg     config.BridgeConfig
	factory ClientFactory

	httpClient *http.Client
	peer       peer

	now func() time.Time
	log *logger.Logger

	stats ManagerStats
}

// ManagerOptions holds options for creating a Manager.
type ManagerOptions struct {
	Config config.BridgeConfig
	// Factory opens peer connections. Defaults to NewMCPPeerClient.
	Factory ClientFactory
	// HTTPClient issues health probes. Optional.
	HTTPClient *http.Client
	Logger     *logger.Logger
	Now        func() time.Time
}

// NewManager creates a peer connection manager.
func NewManager(opts ManagerOptions) *Manager {
	cfg := opts.Config
	cfg.ApplyDefaults()

	factory := opts.Factory
	if factory == nil {
		factory = NewMCPPeerClient
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.ConnectTimeout()}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("bridge")
	}

	return &Manager{
		cfg:        cfg,
		factory:    factory,
		httpClient: httpClient,
		peer:       peer{schedule: newBackoffSchedule(), breaker: circuit.New(circuit.Options{Name: "peer", Now: now})},
		now:        now,
		log:        log,
	}
}

func newBackoffSchedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = backoffBase
	b.Multiplier = 2
	b.MaxInterval = backoffCap
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run drives the discovery loop until ctx is cancelled. It returns
// immediately when the bridge is disabled.
func (m *Manager) Run(ctx context.Context) {
	if !m.cfg.Enabled {
		m.log.Info("", "", "bridge disabled, discovery loop not started", nil)
		return
	}

	m.Tick(ctx)

	ticker := time.NewTicker(m.cfg.PollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick performs one discovery pass: probe the peer health endpoint,
// then promote, demote, or reconnect based on the reply and the current
// state. Exposed so the pass can be driven deterministically in tests.
func (m *Manager) Tick(ctx context.Context) {
	health, err := m.probeHealth(ctx)

	m.mu.Lock()
	p := &m.peer

	if err != nil {
		m.recordProbeFailure()
		p.lastError = err.Error()

		if p.state == StateConnected {
			// Transport-level failure on a live connection: demote,
			// release the client, and schedule a backoff reconnect.
			client := p.client
			p.client = nil
			p.state = StateFailed
			p.retries = 0
			p.retriesExhausted = false
			p.schedule.Reset()
			p.nextRetryAt = m.now().Add(p.schedule.NextBackOff())
			nextRetry := p.nextRetryAt
			m.mu.Unlock()

			if client != nil {
				_ = client.Close()
			}
			m.log.Warn("", "", "peer health probe failed, connection released", map[string]interface{}{
				"error":         err.Error(),
				"next_retry_at": nextRetry.UTC().Format(time.RFC3339),
			})
			return
		}
		m.mu.Unlock()
		return
	}

	m.recordProbe()
	p.lastHealth = health
	p.lastError = ""

	switch p.state {
	case StateConnected:
		m.mu.Unlock()
		return
	case StateFailed:
		if p.retriesExhausted {
			// The probe rediscovered a peer whose retry budget was
			// spent; start the connection cycle over.
			p.state = StateDiscovered
			p.retries = 0
			p.retriesExhausted = false
			p.schedule.Reset()
			p.nextRetryAt = time.Time{}
			m.log.Info("", "", "peer rediscovered by health probe", nil)
		} else if m.now().Before(p.nextRetryAt) {
			m.mu.Unlock()
			return
		}
	default:
		p.state = StateDiscovered
	}
	m.mu.Unlock()

	m.connect(ctx)
}

// connect attempts to establish the peer connection, moving the peer
// through connecting into connected or failed.
func (m *Manager) connect(ctx context.Context) {
	m.mu.Lock()
	m.peer.state = StateConnecting
	endpoint := m.cfg.Endpoint
	timeout := m.cfg.ConnectTimeout()
	m.mu.Unlock()

	m.recordConnectAttempt()
	client, err := m.factory(ctx, endpoint, timeout)

	m.mu.Lock()
	defer m.mu.Unlock()
	p := &m.peer

	if err != nil {
		m.recordConnectFailure()
		p.state = StateFailed
		p.lastError = err.Error()
		p.retries++

		if p.retries >= m.cfg.MaxRetries {
			p.retriesExhausted = true
			p.nextRetryAt = time.Time{}
			m.log.Warn("", "", "peer connection retries exhausted, waiting for rediscovery", map[string]interface{}{
				"retries": p.retries,
				"error":   err.Error(),
			})
			return
		}

		delay := p.schedule.NextBackOff()
		p.nextRetryAt = m.now().Add(delay)
		m.log.Warn("", "", "peer connection attempt failed", map[string]interface{}{
			"retries":  p.retries,
			"retry_in": delay.String(),
			"error":    err.Error(),
		})
		return
	}

	p.client = client
	p.state = StateConnected
	p.retries = 0
	p.retriesExhausted = false
	p.schedule.Reset()
	p.nextRetryAt = time.Time{}
	m.log.Info("", "", "peer connected", map[string]interface{}{"endpoint": endpoint})
}

// probeHealth issues the lightweight application-level health probe and
// requires a well-formed, healthy reply.
func (m *Manager) probeHealth(ctx context.Context) (*HealthInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.HealthEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build health probe: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health probe returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read health probe reply: %w", err)
	}

	payload, err := DecodePayload(body)
	if err != nil {
		return nil, err
	}
	if payload.Kind != PayloadHealth {
		return nil, fmt.Errorf("health probe reply is not a health payload (kind %s)", payload.Kind)
	}
	if !payload.Health.Healthy() {
		return nil, fmt.Errorf("peer reports status %q", payload.Health.Status)
	}
	return payload.Health, nil
}

// CallTool routes a tool call to the connected peer through its circuit
// breaker.
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	m.mu.Lock()
	if !m.cfg.Enabled {
		m.mu.Unlock()
		return nil, ErrBridgeDisabled
	}
	p := &m.peer
	if p.state != StateConnected || p.client == nil {
		m.mu.Unlock()
		return nil, ErrPeerUnavailable
	}
	client := p.client
	breaker := p.breaker
	m.mu.Unlock()

	m.recordToolCall()
	return circuit.Do(ctx, breaker, func(ctx context.Context) (*ToolResult, error) {
		return client.CallTool(ctx, name, args)
	})
}

// PeerStatus is a point-in-time snapshot of the peer for diagnostics.
type PeerStatus struct {
	Endpoint         string           `json:"endpoint"`
	State            PeerState        `json:"state"`
	Retries          int              `json:"retries"`
	RetriesExhausted bool             `json:"retries_exhausted,omitempty"`
	NextRetryAt      *time.Time       `json:"next_retry_at,omitempty"`
	LastError        string           `json:"last_error,omitempty"`
	LastHealth       *HealthInfo      `json:"last_health,omitempty"`
	Breaker          circuit.Snapshot `json:"breaker"`
}

// Status returns the current peer snapshot.
func (m *Manager) Status() PeerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &m.peer
	status := PeerStatus{
		Endpoint:         m.cfg.Endpoint,
		State:            p.state,
		Retries:          p.retries,
		RetriesExhausted: p.retriesExhausted,
		LastError:        p.lastError,
		LastHealth:       p.lastHealth,
		Breaker:          p.breaker.Snapshot(),
	}
	if !p.nextRetryAt.IsZero() {
		t := p.nextRetryAt
		status.NextRetryAt = &t
	}
	return status
}

// Enabled reports whether the bridge is switched on in configuration.
func (m *Manager) Enabled() bool {
	return m.cfg.Enabled
}

// Close releases the peer connection if one is established.
func (m *Manager) Close() {
	m.mu.Lock()
	client := m.peer.client
	m.peer.client = nil
	if m.peer.state == StateConnected {
		m.peer.state = StateDiscovered
	}
	m.mu.Unlock()

	if client != nil {
		_ = client.Close()
	}
}

// Stats returns a copy of the manager counters.
func (m *Manager) Stats() ManagerStats {
	m.stats.mu.Lock()
	defer m.stats.mu.Unlock()
	return ManagerStats{
		Probes:          m.stats.Probes,
		ProbeFailures:   m.stats.ProbeFailures,
		ConnectAttempts: m.stats.ConnectAttempts,
		ConnectFailures: m.stats.ConnectFailures,
		ToolCalls:       m.stats.ToolCalls,
	}
}

func (m *Manager) recordProbe() {
	m.stats.mu.Lock()
	m.stats.Probes++
	m.stats.mu.Unlock()
}

func (m *Manager) recordProbeFailure() {
	m.stats.mu.Lock()
	m.stats.Probes++
	m.stats.ProbeFailures++
	m.stats.mu.Unlock()
}

func (m *Manager) recordConnectAttempt() {
	m.stats.mu.Lock()
	m.stats.ConnectAttempts++
	m.stats.mu.Unlock()
}

func (m *Manager) recordConnectFailure() {
	m.stats.mu.Lock()
	m.stats.ConnectFailures++
	m.stats.mu.Unlock()
}

func (m *Manager) recordToolCall() {
	m.stats.mu.Lock()
	m.stats.ToolCalls++
	m.stats.mu.Unlock()
}
