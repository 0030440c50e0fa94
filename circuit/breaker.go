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

// Package circuit provides a generic failure-isolation wrapper for a
// single outbound dependency. The breaker counts consecutive failures
// rather than windowed rates: it protects against a persistently failing
// peer, not against transient blips.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the state of a circuit breaker
type State string

const (
	// StateClosed indicates normal operation - calls pass through
	StateClosed State = "closed"
	// StateOpen indicates failing state - calls fail immediately
	StateOpen State = "open"
	// StateHalfOpen indicates recovery testing - a single trial call is allowed
	StateHalfOpen State = "half-open"
)

// Default breaker parameters.
const (
	DefaultErrorThreshold = 5
	DefaultResetTimeout   = 30 * time.Second
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// invoking the underlying operation. It is distinct from the peer being
// absent: an open circuit means the peer exists but is unhealthy.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker wraps calls to one logical peer connection. All state is
// guarded by a mutex: two concurrent operations must not race between
// reading and incrementing the failure count.
type Breaker struct {
	mu sync.Mutex

	name string

	state               State
	consecutiveFailures int
	errorThreshold      int
	resetTimeout        time.Duration

	lastFailure time.Time

	// trialInProgress ensures exactly one call goes through while
	// half-open.
	trialInProgress bool

	now func() time.Time
}

// Options holds options for creating a Breaker.
type Options struct {
	// Name identifies the guarded connection in logs and diagnostics.
	Name string
	// ErrorThreshold is the consecutive failure count that opens the
	// circuit. Zero uses DefaultErrorThreshold.
	ErrorThreshold int
	// ResetTimeout is how long after the last failure the open circuit
	// allows a recovery trial. Zero uses DefaultResetTimeout.
	ResetTimeout time.Duration
	// Now overrides the clock, used by tests to simulate timeouts.
	Now func() time.Time
}

// New creates a Breaker in the closed state.
func New(opts Options) *Breaker {
	threshold := opts.ErrorThreshold
	if threshold <= 0 {
		threshold = DefaultErrorThreshold
	}
	timeout := opts.ResetTimeout
	if timeout <= 0 {
		timeout = DefaultResetTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		name:           opts.Name,
		state:          StateClosed,
		errorThreshold: threshold,
		resetTimeout:   timeout,
		now:            now,
	}
}

// Execute runs op through the breaker. When the circuit is open and the
// reset timeout has not elapsed since the last failure, op is not invoked
// and ErrCircuitOpen is returned immediately. A timed-out or cancelled op
// counts as a failure, never silently dropped.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := op(ctx)
	b.afterCall(err == nil)
	return err
}

// Do runs op through breaker b and returns its result. It exists because
// methods cannot take type parameters.
func Do[T any](ctx context.Context, b *Breaker, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := b.Execute(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

// beforeCall decides whether a call may proceed, transitioning
// open → half-open when the reset timeout has elapsed.
func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if b.now().Sub(b.lastFailure) >= b.resetTimeout {
			b.state = StateHalfOpen
			b.trialInProgress = true
			return nil
		}
		return ErrCircuitOpen

	case StateHalfOpen:
		// Exactly one trial call at a time.
		if b.trialInProgress {
			return ErrCircuitOpen
		}
		b.trialInProgress = true
		return nil

	default:
		return ErrCircuitOpen
	}
}

// afterCall records the outcome of a permitted call.
func (b *Breaker) afterCall(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		// Any success in the closed or half-open state resets the
		// failure count and closes the circuit.
		b.consecutiveFailures = 0
		b.trialInProgress = false
		b.state = StateClosed
		return
	}

	b.consecutiveFailures++
	b.lastFailure = b.now()
	b.trialInProgress = false

	switch b.state {
	case StateClosed:
		if b.consecutiveFailures >= b.errorThreshold {
			b.state = StateOpen
		}
	case StateHalfOpen:
		// Failed trial returns to open and restarts the failure timer.
		b.state = StateOpen
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot is an immutable view of breaker state for diagnostics.
type Snapshot struct {
	Name                string    `json:"name"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
}

// Snapshot returns a copy of the breaker state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:                b.name,
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailure:         b.lastFailure,
	}
}
