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
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/confluence-adapter/config"
	"axonflow/confluence-adapter/shared/logger"
)

func newMiniredisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	limiter, err := NewRedisLimiter("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { limiter.Close() })
	return limiter, mr
}

func TestRedisLimiterRecordAndCount(t *testing.T) {
	limiter, _ := newMiniredisLimiter(t)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, limiter.Record(ctx, base))
	require.NoError(t, limiter.Record(ctx, base.Add(10*time.Second)))
	require.NoError(t, limiter.Record(ctx, base.Add(20*time.Second)))

	count, err := limiter.CountSince(ctx, base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Cutoff excludes the first two recordings.
	count, err = limiter.CountSince(ctx, base.Add(15*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRedisLimiterRecordPrunesOldEntries(t *testing.T) {
	limiter, _ := newMiniredisLimiter(t)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, limiter.Record(ctx, base.Add(-2*time.Hour)))
	require.NoError(t, limiter.Record(ctx, base))

	count, err := limiter.CountSince(ctx, base.Add(-3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count, "entries past retention should be pruned on record")
}

func TestRedisLimiterFlush(t *testing.T) {
	limiter, _ := newMiniredisLimiter(t)
	ctx := context.Background()

	require.NoError(t, limiter.Record(ctx, time.Now()))
	require.NoError(t, limiter.Flush(ctx))

	count, err := limiter.CountSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestNewRedisLimiterRejectsBadURL(t *testing.T) {
	_, err := NewRedisLimiter("not-a-url")
	assert.Error(t, err)
}

func TestEngineSharesBudgetThroughRedis(t *testing.T) {
	limiter, _ := newMiniredisLimiter(t)
	ctx := context.Background()
	clock := &engineClock{t: time.Now()}

	cfg := config.BridgeConfig{OperationsPerMinute: 2, OperationsPerHour: 100}
	a := NewEngine(EngineOptions{Config: cfg, Limiter: limiter, Logger: logger.NewWithWriter("boundary", io.Discard), Now: clock.Now})
	b := NewEngine(EngineOptions{Config: cfg, Limiter: limiter, Logger: logger.NewWithWriter("boundary", io.Discard), Now: clock.Now})

	a.RecordOperation(ctx, "get_page", OperationContext{})
	b.RecordOperation(ctx, "get_page", OperationContext{})

	// Each engine saw one local operation, but the shared counter holds
	// two, so both reject.
	result := a.Validate(ctx, Outgoing, "get_page", OperationContext{})
	assert.False(t, result.Allowed)
	assert.True(t, result.RateLimited)

	result = b.Validate(ctx, Outgoing, "get_page", OperationContext{})
	assert.False(t, result.Allowed)
}

func TestEngineFallsBackWhenRedisDown(t *testing.T) {
	limiter, mr := newMiniredisLimiter(t)
	ctx := context.Background()
	clock := &engineClock{t: time.Now()}

	e := NewEngine(EngineOptions{
		Config:  config.BridgeConfig{OperationsPerMinute: 2, OperationsPerHour: 100},
		Limiter: limiter,
		Logger:  logger.NewWithWriter("boundary", io.Discard),
		Now:     clock.Now,
	})

	e.RecordOperation(ctx, "get_page", OperationContext{})
	mr.Close()

	// Redis is gone; validation keeps working off the in-memory window.
	result := e.Validate(ctx, Outgoing, "get_page", OperationContext{})
	assert.True(t, result.Allowed, "redis outage must not reject traffic")
}
