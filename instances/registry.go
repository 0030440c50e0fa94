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

package instances

import (
	"fmt"
	"sync"
	"time"

	"axonflow/confluence-adapter/config"
)

// DefaultRegistryTTL is how long a loaded registry state stays valid
// before the next access triggers a reload.
const DefaultRegistryTTL = 5 * time.Minute

// State is one immutable load of the tenant configuration. It is built by
// the Registry and read-only to every other component.
type State struct {
	Instances       map[string]config.InstanceConfig
	SpaceRoutes     map[string]config.SpaceRoute
	DefaultInstance string

	// Order is the declaration order of the configuration source.
	// Auto-discovery ties resolve by this order; it is not guaranteed
	// stable across reconfiguration.
	Order []string

	LoadedAt time.Time
}

// Names returns instance names in declaration order.
func (s *State) Names() []string {
	names := make([]string, len(s.Order))
	copy(names, s.Order)
	return names
}

// Loader produces a fresh configuration document. The registry calls it on
// first use and whenever the cached state has outlived its TTL.
type Loader func() (*config.File, error)

// Registry loads and caches the configured instance set with a TTL.
// Configuration errors are surfaced to the caller at the point of first
// use; the registry never falls back to a stale or default state.
type Registry struct {
	mu     sync.RWMutex
	loader Loader
	ttl    time.Duration
	state  *State

	now func() time.Time

	stats RegistryStats
}

// RegistryStats tracks registry cache performance.
type RegistryStats struct {
	mu          sync.Mutex
	Hits        int64
	Reloads     int64
	LoadErrors  int64
	LastReload  time.Time
	LastFailure time.Time
}

// RegistryOptions holds options for creating a Registry.
type RegistryOptions struct {
	Loader Loader
	TTL    time.Duration

	// Now overrides the clock, used by tests to simulate TTL expiry.
	Now func() time.Time
}

// NewRegistry creates a Registry. A zero TTL uses DefaultRegistryTTL.
func NewRegistry(opts RegistryOptions) *Registry {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultRegistryTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		loader: opts.Loader,
		ttl:    ttl,
		now:    now,
	}
}

// Snapshot returns the current registry state, reloading from the
// configuration source if the cached state is absent or expired.
func (r *Registry) Snapshot() (*State, error) {
	r.mu.RLock()
	state := r.state
	fresh := state != nil && r.now().Sub(state.LoadedAt) < r.ttl
	r.mu.RUnlock()

	if fresh {
		r.recordHit()
		return state, nil
	}

	return r.reload()
}

// Invalidate drops the cached state so the next Snapshot reloads.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.state = nil
	r.mu.Unlock()
}

// reload rebuilds the state from the configuration source.
func (r *Registry) reload() (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check: another goroutine may have reloaded already.
	if r.state != nil && r.now().Sub(r.state.LoadedAt) < r.ttl {
		r.recordHit()
		return r.state, nil
	}

	if r.loader == nil {
		return nil, fmt.Errorf("registry loader not configured")
	}

	f, err := r.loader()
	if err != nil {
		r.recordLoadError()
		return nil, fmt.Errorf("failed to load instance configuration: %w", err)
	}
	if err := f.Validate(); err != nil {
		r.recordLoadError()
		return nil, fmt.Errorf("invalid instance configuration: %w", err)
	}

	order := f.InstanceOrder
	if len(order) != len(f.Instances) {
		// Loader did not record declaration order (e.g. a programmatic
		// source); fall back to map iteration, which is explicitly
		// non-deterministic on ties.
		order = make([]string, 0, len(f.Instances))
		for name := range f.Instances {
			order = append(order, name)
		}
	}

	r.state = &State{
		Instances:       f.Instances,
		SpaceRoutes:     f.SpaceRoutes,
		DefaultInstance: f.DefaultInstance,
		Order:           order,
		LoadedAt:        r.now(),
	}
	r.recordReload()

	return r.state, nil
}

// Stats returns a copy of the registry cache statistics.
func (r *Registry) Stats() RegistryStats {
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()
	return RegistryStats{
		Hits:        r.stats.Hits,
		Reloads:     r.stats.Reloads,
		LoadErrors:  r.stats.LoadErrors,
		LastReload:  r.stats.LastReload,
		LastFailure: r.stats.LastFailure,
	}
}

func (r *Registry) recordHit() {
	r.stats.mu.Lock()
	r.stats.Hits++
	r.stats.mu.Unlock()
}

func (r *Registry) recordReload() {
	r.stats.mu.Lock()
	r.stats.Reloads++
	r.stats.LastReload = r.now()
	r.stats.mu.Unlock()
}

func (r *Registry) recordLoadError() {
	r.stats.mu.Lock()
	r.stats.LoadErrors++
	r.stats.LastFailure = r.now()
	r.stats.mu.Unlock()
}
