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

package circuit

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend failure")

type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func failingOp(ctx context.Context) error { return errBackend }
func succeedingOp(ctx context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	clock := newTestClock()
	b := New(Options{ErrorThreshold: 3, ResetTimeout: 30 * time.Second, Now: clock.Now})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Execute(ctx, failingOp); !errors.Is(err, errBackend) {
			t.Fatalf("call %d: err = %v, want backend failure", i, err)
		}
	}

	if state := b.State(); state != StateOpen {
		t.Fatalf("State() = %v after threshold failures, want open", state)
	}

	// Fourth call before the reset timeout must fail fast without
	// invoking the operation.
	invoked := false
	err := b.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if invoked {
		t.Fatal("operation invoked while circuit open")
	}
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	clock := newTestClock()
	b := New(Options{ErrorThreshold: 3, ResetTimeout: 30 * time.Second, Now: clock.Now})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, failingOp)
	}

	clock.Advance(31 * time.Second)

	if err := b.Execute(ctx, succeedingOp); err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if state := b.State(); state != StateClosed {
		t.Fatalf("State() = %v after successful trial, want closed", state)
	}
	if snap := b.Snapshot(); snap.ConsecutiveFailures != 0 {
		t.Fatalf("ConsecutiveFailures = %d after recovery, want 0", snap.ConsecutiveFailures)
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newTestClock()
	b := New(Options{ErrorThreshold: 3, ResetTimeout: 30 * time.Second, Now: clock.Now})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, failingOp)
	}

	clock.Advance(31 * time.Second)

	if err := b.Execute(ctx, failingOp); !errors.Is(err, errBackend) {
		t.Fatalf("trial err = %v, want backend failure", err)
	}
	if state := b.State(); state != StateOpen {
		t.Fatalf("State() = %v after failed trial, want open", state)
	}

	// The failure timer restarted: a call shortly after must fail fast.
	clock.Advance(10 * time.Second)
	if err := b.Execute(ctx, succeedingOp); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen (timer restarted by failed trial)", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New(Options{ErrorThreshold: 3})
	ctx := context.Background()

	_ = b.Execute(ctx, failingOp)
	_ = b.Execute(ctx, failingOp)
	_ = b.Execute(ctx, succeedingOp)
	_ = b.Execute(ctx, failingOp)
	_ = b.Execute(ctx, failingOp)

	if state := b.State(); state != StateClosed {
		t.Fatalf("State() = %v, want closed (success resets the count)", state)
	}
}

func TestBreaker_Defaults(t *testing.T) {
	b := New(Options{})
	if b.errorThreshold != DefaultErrorThreshold {
		t.Errorf("errorThreshold = %d, want %d", b.errorThreshold, DefaultErrorThreshold)
	}
	if b.resetTimeout != DefaultResetTimeout {
		t.Errorf("resetTimeout = %v, want %v", b.resetTimeout, DefaultResetTimeout)
	}
	if b.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", b.State())
	}
}

func TestDo_ReturnsResultThroughBreaker(t *testing.T) {
	b := New(Options{})
	ctx := context.Background()

	got, err := Do(ctx, b, func(ctx context.Context) (string, error) {
		return "payload", nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "payload" {
		t.Errorf("Do() = %q, want %q", got, "payload")
	}
}

func TestDo_OpenCircuitShortCircuits(t *testing.T) {
	clock := newTestClock()
	b := New(Options{ErrorThreshold: 1, Now: clock.Now})
	ctx := context.Background()

	_ = b.Execute(ctx, failingOp)

	_, err := Do(ctx, b, func(ctx context.Context) (int, error) {
		t.Fatal("operation must not run while open")
		return 0, nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreaker_ContextCancellationCountsAsFailure(t *testing.T) {
	b := New(Options{ErrorThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = b.Execute(ctx, func(ctx context.Context) error {
		return ctx.Err()
	})

	if state := b.State(); state != StateOpen {
		t.Fatalf("State() = %v, want open (cancellation is a failure)", state)
	}
}
