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

package tools

import (
	"sync"

	"axonflow/confluence-adapter/config"
	"axonflow/confluence-adapter/confluence"
	"axonflow/confluence-adapter/instances"
)

// ClientFactory builds a per-instance Confluence client.
type ClientFactory func(name string, cfg config.InstanceConfig) (*confluence.Client, error)

type cachedClient struct {
	client *confluence.Client
	domain string
	cred   config.Credential
}

// ClientCache hands out one Confluence client per instance, rebuilding
// a client when the instance's domain or credential changed across a
// registry reload.
type ClientCache struct {
	mu      sync.Mutex
	factory ClientFactory
	clients map[string]cachedClient
}

// NewClientCache creates a client cache. A nil factory uses
// confluence.NewClient directly.
func NewClientCache(factory ClientFactory) *ClientCache {
	if factory == nil {
		factory = func(name string, cfg config.InstanceConfig) (*confluence.Client, error) {
			return confluence.NewClient(name, cfg, confluence.ClientOptions{})
		}
	}
	return &ClientCache{
		factory: factory,
		clients: make(map[string]cachedClient),
	}
}

// For returns the client for a resolved instance.
func (c *ClientCache) For(res *instances.Resolution) (*confluence.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.clients[res.Name]
	if ok && cached.domain == res.Config.Domain && cached.cred == res.Config.Credential {
		return cached.client, nil
	}

	client, err := c.factory(res.Name, res.Config)
	if err != nil {
		return nil, err
	}
	c.clients[res.Name] = cachedClient{
		client: client,
		domain: res.Config.Domain,
		cred:   res.Config.Credential,
	}
	return client, nil
}
