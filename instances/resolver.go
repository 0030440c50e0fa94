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
	"axonflow/confluence-adapter/config"
	"axonflow/confluence-adapter/shared/logger"
)

// ResolveArgs is the operation context the resolver works from.
type ResolveArgs struct {
	// Instance is an explicit instance override supplied by the caller.
	Instance string
	// SpaceKey is the tenant-space key of the operation, when known.
	SpaceKey string
	// PageID is the page identifier of the operation, when known.
	PageID string
}

// Resolution is the routing decision for one operation.
type Resolution struct {
	Name   string
	Config config.InstanceConfig

	// SpaceKey is filled from the page cache when the resolution came
	// from a page id with no space context.
	SpaceKey string

	// Route carries the per-space defaults when the resolution came
	// from a space route.
	Route *config.SpaceRoute
}

// Resolver picks the instance an operation routes to, using a fixed
// priority cascade over the registry state and the page cache.
type Resolver struct {
	registry *Registry
	pages    *PageCache
	log      *logger.Logger
}

// NewResolver creates a Resolver over the given registry and page cache.
func NewResolver(registry *Registry, pages *PageCache, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.New("resolver")
	}
	return &Resolver{registry: registry, pages: pages, log: log}
}

// Resolve applies the cascade, first match wins:
//
//  1. explicit instance override
//  2. space route binding for the space key
//  3. space key listed in some instance's known spaces (declaration
//     order breaks ties)
//  4. page cache association for the page id (only when neither an
//     explicit instance nor a space key was given; a hit naming an
//     instance that no longer exists fails closed and counts as a miss)
//  5. configured default instance
//  6. the single configured instance, when exactly one exists
//
// Anything else is ambiguous and the error lists the configured instance
// names so the caller can disambiguate. Resolution is idempotent for a
// given argument triple while the configuration is unchanged.
func (r *Resolver) Resolve(requestID string, args ResolveArgs) (*Resolution, error) {
	state, err := r.registry.Snapshot()
	if err != nil {
		return nil, err
	}

	// Step 1: explicit override.
	if args.Instance != "" {
		cfg, ok := state.Instances[args.Instance]
		if !ok {
			return nil, &NotFoundError{Name: args.Instance, Available: state.Names()}
		}
		return &Resolution{Name: args.Instance, Config: cfg, SpaceKey: args.SpaceKey}, nil
	}

	if args.SpaceKey != "" {
		// Step 2: space route binding.
		if route, ok := state.SpaceRoutes[args.SpaceKey]; ok {
			cfg, ok := state.Instances[route.Instance]
			if !ok {
				// Dangling reference is a configuration error,
				// never silently ignored.
				return nil, &NotFoundError{Name: route.Instance, Available: state.Names()}
			}
			routeCopy := route
			return &Resolution{Name: route.Instance, Config: cfg, SpaceKey: args.SpaceKey, Route: &routeCopy}, nil
		}

		// Step 3: known-spaces auto-discovery, declaration order.
		for _, name := range state.Order {
			cfg := state.Instances[name]
			for _, space := range cfg.Spaces {
				if space == args.SpaceKey {
					return &Resolution{Name: name, Config: cfg, SpaceKey: args.SpaceKey}, nil
				}
			}
		}
	}

	// Step 4: page cache, only when there is no space context at all.
	if args.SpaceKey == "" && args.PageID != "" && r.pages != nil {
		if loc, ok := r.pages.Get(args.PageID); ok {
			cfg, exists := state.Instances[loc.Instance]
			if exists {
				return &Resolution{Name: loc.Instance, Config: cfg, SpaceKey: loc.SpaceKey}, nil
			}
			// The instance was removed by a registry reload after the
			// entry was cached. Fail closed: drop the dangling entry
			// and continue as a miss.
			r.pages.Forget(args.PageID)
			r.log.Warn(loc.Instance, requestID, "page cache referenced removed instance, treating as miss",
				map[string]interface{}{"page_id": args.PageID})
		}
	}

	// Step 5: configured default.
	if state.DefaultInstance != "" {
		cfg, ok := state.Instances[state.DefaultInstance]
		if !ok {
			return nil, &NotFoundError{Name: state.DefaultInstance, Available: state.Names()}
		}
		return &Resolution{Name: state.DefaultInstance, Config: cfg, SpaceKey: args.SpaceKey}, nil
	}

	// Step 6: exactly one instance configured.
	if len(state.Order) == 1 {
		name := state.Order[0]
		return &Resolution{Name: name, Config: state.Instances[name], SpaceKey: args.SpaceKey}, nil
	}

	return nil, &AmbiguousError{Available: state.Names()}
}

// RememberPage records a page-to-instance association after a successful
// read or search, feeding the step-4 lookup of later resolutions.
func (r *Resolver) RememberPage(pageID, spaceKey, instance string) {
	if r.pages == nil || pageID == "" || instance == "" {
		return
	}
	r.pages.Put(pageID, spaceKey, instance)
}
