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

package boundary

import (
	"context"
	"fmt"
	"sync"
	"time"

	"axonflow/confluence-adapter/config"
	"axonflow/confluence-adapter/shared/logger"
)

// Direction of a cross-server operation relative to this adapter.
type Direction string

const (
	// Incoming operations arrive from the peer adapter.
	Incoming Direction = "incoming"
	// Outgoing operations are dispatched to the peer adapter.
	Outgoing Direction = "outgoing"
)

// History retention parameters.
const (
	minuteWindow     = time.Minute
	hourWindow       = time.Hour
	historyRetention = time.Hour
	// DefaultSweepInterval is how often the history pruner runs.
	DefaultSweepInterval = time.Minute
)

// OperationContext carries per-operation detail into validation and
// recording.
type OperationContext struct {
	// Source identifies the caller (tool name, peer id).
	Source string
	// BatchSize is the number of items in a batched operation; zero
	// means not batched.
	BatchSize int
}

// ValidationResult reports whether an operation may cross the boundary.
// The engine never blocks on confirmation itself: RequiresConfirmation
// only informs the caller, which must surface it to its human user.
type ValidationResult struct {
	Allowed              bool   `json:"allowed"`
	Reason               string `json:"reason,omitempty"`
	RequiresConfirmation bool   `json:"requires_confirmation,omitempty"`
	RateLimited          bool   `json:"rate_limited,omitempty"`
}

// OperationRecord is one entry in the bounded rate-limit history.
type OperationRecord struct {
	Source    string
	Operation string
	Timestamp time.Time
}

// Engine enforces the bidirectional safety policy over every operation
// crossing the instance or peer boundary: allow/deny mode lists, explicit
// operation exclusions, a transient block list, sliding-window rate
// limits, and batch size caps. It is independent of the connection
// manager and the circuit breaker.
type Engine struct {
	mu sync.Mutex

	cfg config.BridgeConfig

	// history backs the in-memory sliding-window rate accounting,
	// pruned of entries older than one hour by the periodic sweep.
	history []OperationRecord

	// blocked maps operation names to the time their temporary block
	// expires. Blocks self-clear lazily on validation.
	blocked map[string]time.Time

	// limiter optionally backs the rate windows with Redis so multiple
	// adapter processes share one budget. Nil means in-memory only.
	limiter *RedisLimiter

	now func() time.Time
	log *logger.Logger

	stats EngineStats
}

// EngineStats tracks policy decisions for diagnostics.
type EngineStats struct {
	mu                sync.Mutex
	Allowed           int64
	Rejected          int64
	RateLimited       int64
	BlockedRejections int64
}

// EngineOptions holds options for creating an Engine.
type EngineOptions struct {
	Config config.BridgeConfig
	// Limiter enables distributed rate accounting. Optional.
	Limiter *RedisLimiter
	Logger  *logger.Logger
	Now     func() time.Time
}

// NewEngine creates a safety boundary engine.
func NewEngine(opts EngineOptions) *Engine {
	cfg := opts.Config
	cfg.ApplyDefaults()

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("boundary")
	}

	return &Engine{
		cfg:     cfg,
		blocked: make(map[string]time.Time),
		limiter: opts.Limiter,
		now:     now,
		log:     log,
	}
}

// Validate applies the policy checks in order: explicit exclusion,
// allowed mode for the direction, transient block list (outgoing only),
// sliding-window rate limits, batch size. A passing result additionally
// reports whether the operation needs human confirmation.
func (e *Engine) Validate(ctx context.Context, direction Direction, operation string, opCtx OperationContext) ValidationResult {
	// (1) explicit exclude list for the direction
	if contains(e.excludedFor(direction), operation) {
		return e.reject(fmt.Sprintf("operation %q is excluded for %s calls", operation, direction))
	}

	// (2) mode must be allowed for the direction
	mode := ClassifyOperation(operation)
	if !contains(e.allowedFor(direction), mode) {
		return e.reject(fmt.Sprintf("operation mode %q is not in the allowed %s modes %v",
			mode, direction, e.allowedFor(direction)))
	}

	// (3) transient block list, outgoing only
	if direction == Outgoing {
		if until, ok := e.blockedUntil(operation); ok {
			e.recordBlockedRejection()
			return ValidationResult{
				Allowed: false,
				Reason:  fmt.Sprintf("operation %q is temporarily blocked until %s", operation, until.UTC().Format(time.RFC3339)),
			}
		}
	}

	// (4) sliding-window rate limits
	if result, limited := e.checkRateLimits(ctx); limited {
		return result
	}

	// (5) batch size cap
	if opCtx.BatchSize > e.cfg.MaxBatchSize {
		return e.reject(fmt.Sprintf("batch size %d exceeds maximum %d", opCtx.BatchSize, e.cfg.MaxBatchSize))
	}

	e.recordAllowed()
	return ValidationResult{
		Allowed:              true,
		RequiresConfirmation: contains(e.cfg.ConfirmationRequired, operation),
	}
}

// RecordOperation appends to the rate-limit history. Callers invoke it
// after a successful dispatch, not before.
func (e *Engine) RecordOperation(ctx context.Context, operation string, opCtx OperationContext) {
	now := e.now()

	e.mu.Lock()
	e.history = append(e.history, OperationRecord{
		Source:    opCtx.Source,
		Operation: operation,
		Timestamp: now,
	})
	e.mu.Unlock()

	if e.limiter != nil {
		if err := e.limiter.Record(ctx, now); err != nil {
			// Shared accounting is best-effort; the in-memory window
			// still counts this operation.
			e.log.Warn("", "", "distributed rate limit record failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// BlockOperation places an operation on the temporary deny-list for the
// given duration. Callers use it to penalize an operation type after
// repeated downstream failures; it is a coarser, operation-scoped guard
// than the breaker's connection-scoped one and is never invoked by the
// breaker itself.
func (e *Engine) BlockOperation(operation string, duration time.Duration) {
	e.mu.Lock()
	e.blocked[operation] = e.now().Add(duration)
	e.mu.Unlock()

	e.log.Warn("", "", "operation temporarily blocked", map[string]interface{}{
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})
}

// Sweep prunes history entries older than one hour and expired blocks.
// Returns the number of history entries removed.
func (e *Engine) Sweep() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	cutoff := now.Add(-historyRetention)

	kept := e.history[:0]
	for _, rec := range e.history {
		if rec.Timestamp.After(cutoff) {
			kept = append(kept, rec)
		}
	}
	removed := len(e.history) - len(kept)
	e.history = kept

	for op, until := range e.blocked {
		if !now.Before(until) {
			delete(e.blocked, op)
		}
	}

	return removed
}

// StartPeriodicSweep runs Sweep on a ticker until ctx is cancelled.
func (e *Engine) StartPeriodicSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Sweep()
			}
		}
	}()
}

// HistoryLen returns the current history size.
func (e *Engine) HistoryLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

// Stats returns a copy of the engine counters.
func (e *Engine) Stats() EngineStats {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()
	return EngineStats{
		Allowed:           e.stats.Allowed,
		Rejected:          e.stats.Rejected,
		RateLimited:       e.stats.RateLimited,
		BlockedRejections: e.stats.BlockedRejections,
	}
}

// checkRateLimits applies the per-minute and per-hour sliding windows.
// When a Redis limiter is configured it is consulted first; on Redis
// errors accounting falls back to the in-memory history rather than
// rejecting traffic.
func (e *Engine) checkRateLimits(ctx context.Context) (ValidationResult, bool) {
	now := e.now()

	minuteCount, hourCount, ok := e.distributedCounts(ctx)
	if !ok {
		minuteCount = e.countSince(now.Add(-minuteWindow))
		hourCount = e.countSince(now.Add(-hourWindow))
	}

	if minuteCount >= e.cfg.OperationsPerMinute {
		e.recordRateLimited()
		return ValidationResult{
			Allowed:     false,
			RateLimited: true,
			Reason: fmt.Sprintf("rate limit exceeded: %d operations in the last minute (limit: %d)",
				minuteCount, e.cfg.OperationsPerMinute),
		}, true
	}
	if hourCount >= e.cfg.OperationsPerHour {
		e.recordRateLimited()
		return ValidationResult{
			Allowed:     false,
			RateLimited: true,
			Reason: fmt.Sprintf("rate limit exceeded: %d operations in the last hour (limit: %d)",
				hourCount, e.cfg.OperationsPerHour),
		}, true
	}

	return ValidationResult{}, false
}

// distributedCounts returns window counts from the Redis limiter, or
// ok=false when the limiter is absent or unreachable.
func (e *Engine) distributedCounts(ctx context.Context) (minuteCount, hourCount int, ok bool) {
	if e.limiter == nil {
		return 0, 0, false
	}
	minuteCount, err := e.limiter.CountSince(ctx, e.now().Add(-minuteWindow))
	if err != nil {
		e.log.Warn("", "", "distributed rate limit check failed, using in-memory window", map[string]interface{}{"error": err.Error()})
		return 0, 0, false
	}
	hourCount, err = e.limiter.CountSince(ctx, e.now().Add(-hourWindow))
	if err != nil {
		e.log.Warn("", "", "distributed rate limit check failed, using in-memory window", map[string]interface{}{"error": err.Error()})
		return 0, 0, false
	}
	return minuteCount, hourCount, true
}

// countSince counts history entries newer than the cutoff.
func (e *Engine) countSince(cutoff time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for _, rec := range e.history {
		if rec.Timestamp.After(cutoff) {
			count++
		}
	}
	return count
}

// blockedUntil reports whether an operation is currently blocked,
// lazily clearing expired blocks.
func (e *Engine) blockedUntil(operation string) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	until, ok := e.blocked[operation]
	if !ok {
		return time.Time{}, false
	}
	if !e.now().Before(until) {
		delete(e.blocked, operation)
		return time.Time{}, false
	}
	return until, true
}

func (e *Engine) allowedFor(direction Direction) []string {
	if direction == Incoming {
		return e.cfg.AllowedIncomingModes
	}
	return e.cfg.AllowedOutgoingModes
}

func (e *Engine) excludedFor(direction Direction) []string {
	if direction == Incoming {
		return e.cfg.ExcludedIncomingOperations
	}
	return e.cfg.ExcludedOutgoingOperations
}

func (e *Engine) reject(reason string) ValidationResult {
	e.recordRejected()
	return ValidationResult{Allowed: false, Reason: reason}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func (e *Engine) recordAllowed() {
	e.stats.mu.Lock()
	e.stats.Allowed++
	e.stats.mu.Unlock()
}

func (e *Engine) recordRejected() {
	e.stats.mu.Lock()
	e.stats.Rejected++
	e.stats.mu.Unlock()
}

func (e *Engine) recordRateLimited() {
	e.stats.mu.Lock()
	e.stats.Rejected++
	e.stats.RateLimited++
	e.stats.mu.Unlock()
}

func (e *Engine) recordBlockedRejection() {
	e.stats.mu.Lock()
	e.stats.Rejected++
	e.stats.BlockedRejections++
	e.stats.mu.Unlock()
}
