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
	"sync"
	"time"
)

// DefaultPageCacheTTL is how long a page-to-instance association stays
// valid.
const DefaultPageCacheTTL = 30 * time.Minute

// PageLocation is a cache hit: the instance that last served a page and
// the space it was seen in.
type PageLocation struct {
	Instance string
	SpaceKey string
}

// pageEntry is one cached page-to-instance association.
type pageEntry struct {
	location PageLocation
	cachedAt time.Time
}

// PageCache remembers which instance last served a given page id. It is a
// pure in-memory table: reads validate TTL lazily and delete stale
// entries; writes are idempotent (last write for a page id wins) and
// opportunistically sweep expired entries rather than running an eager
// background reaper.
type PageCache struct {
	mu      sync.Mutex
	entries map[string]pageEntry
	ttl     time.Duration

	now func() time.Time

	stats PageCacheStats
}

// PageCacheStats tracks page cache performance.
type PageCacheStats struct {
	mu        sync.Mutex
	Hits      int64
	Misses    int64
	Evictions int64
}

// PageCacheOptions holds options for creating a PageCache.
type PageCacheOptions struct {
	TTL time.Duration
	Now func() time.Time
}

// NewPageCache creates a PageCache. A zero TTL uses DefaultPageCacheTTL.
func NewPageCache(opts PageCacheOptions) *PageCache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultPageCacheTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &PageCache{
		entries: make(map[string]pageEntry),
		ttl:     ttl,
		now:     now,
	}
}

// Get returns the cached location for a page id, or false on a miss.
// Expired entries are deleted inside the read.
func (c *PageCache) Get(pageID string) (PageLocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[pageID]
	if !ok {
		c.recordMiss()
		return PageLocation{}, false
	}
	if c.now().Sub(entry.cachedAt) >= c.ttl {
		delete(c.entries, pageID)
		c.recordEviction()
		c.recordMiss()
		return PageLocation{}, false
	}

	c.recordHit()
	return entry.location, true
}

// Put records that instance last served pageID in spaceKey. The write also
// sweeps any expired entries, keeping the table bounded without a
// background timer.
func (c *PageCache) Put(pageID, spaceKey, instance string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, entry := range c.entries {
		if now.Sub(entry.cachedAt) >= c.ttl {
			delete(c.entries, id)
			c.recordEviction()
		}
	}

	c.entries[pageID] = pageEntry{
		location: PageLocation{Instance: instance, SpaceKey: spaceKey},
		cachedAt: now,
	}
}

// Forget removes a single page association, used when a page is deleted.
func (c *PageCache) Forget(pageID string) {
	c.mu.Lock()
	delete(c.entries, pageID)
	c.mu.Unlock()
}

// Len returns the number of cached associations, expired or not.
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a copy of the cache statistics.
func (c *PageCache) Stats() PageCacheStats {
	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()
	return PageCacheStats{
		Hits:      c.stats.Hits,
		Misses:    c.stats.Misses,
		Evictions: c.stats.Evictions,
	}
}

func (c *PageCache) recordHit() {
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
}

func (c *PageCache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}

func (c *PageCache) recordEviction() {
	c.stats.mu.Lock()
	c.stats.Evictions++
	c.stats.mu.Unlock()
}
