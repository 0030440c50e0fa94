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
	"time"

	"github.com/go-redis/redis/v8"
)

// limiterKey is the sorted set holding one member per recorded
// cross-server operation, scored by unix nanoseconds.
const limiterKey = "confluence-adapter:boundary:ops"

// limiterKeyTTL keeps abandoned keys from lingering in Redis.
const limiterKeyTTL = 2 * time.Hour

// RedisLimiter shares the sliding-window operation history across adapter
// processes using a Redis sorted set. It only does accounting; the
// Engine still makes the allow/reject decision.
type RedisLimiter struct {
	client *redis.Client
}

// NewRedisLimiter connects to Redis and verifies the connection.
// URL format: redis://host:port or redis://host:port/db.
func NewRedisLimiter(redisURL string) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLimiter{client: client}, nil
}

// Record adds one operation at the given time and prunes members older
// than the retention horizon.
func (l *RedisLimiter) Record(ctx context.Context, at time.Time) error {
	pipe := l.client.Pipeline()

	// Remove members that have aged out of every window.
	minScore := at.Add(-historyRetention).UnixNano()
	pipe.ZRemRangeByScore(ctx, limiterKey, "0", fmt.Sprintf("%d", minScore))

	pipe.ZAdd(ctx, limiterKey, &redis.Z{
		Score:  float64(at.UnixNano()),
		Member: fmt.Sprintf("%d", at.UnixNano()),
	})

	pipe.Expire(ctx, limiterKey, limiterKeyTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}
	return nil
}

// CountSince returns the number of recorded operations newer than the
// cutoff.
func (l *RedisLimiter) CountSince(ctx context.Context, cutoff time.Time) (int, error) {
	count, err := l.client.ZCount(ctx, limiterKey,
		fmt.Sprintf("(%d", cutoff.UnixNano()), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}
	return int(count), nil
}

// Flush removes all recorded operations (admin/test operation).
func (l *RedisLimiter) Flush(ctx context.Context) error {
	if err := l.client.Del(ctx, limiterKey).Err(); err != nil {
		return fmt.Errorf("failed to flush rate limit data: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
