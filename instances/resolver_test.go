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
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/confluence-adapter/config"
	"axonflow/confluence-adapter/shared/logger"
)

// staticRegistry builds a Registry over a fixed configuration.
func staticRegistry(f *config.File) *Registry {
	return NewRegistry(RegistryOptions{
		Loader: func() (*config.File, error) { return f, nil },
	})
}

func quietLogger() *logger.Logger {
	return logger.NewWithWriter("resolver", io.Discard)
}

func twoInstanceFile() *config.File {
	return &config.File{
		Instances: map[string]config.InstanceConfig{
			"acme-prod":    basicInstance("acme.atlassian.net", "ENG", "DOCS"),
			"acme-staging": basicInstance("acme-staging.atlassian.net", "SANDBOX"),
		},
		SpaceRoutes: map[string]config.SpaceRoute{
			"LEGAL": {Instance: "acme-staging", DefaultParentPageID: "42"},
		},
		InstanceOrder: []string{"acme-prod", "acme-staging"},
	}
}

func TestResolve_ExplicitInstance(t *testing.T) {
	r := NewResolver(staticRegistry(twoInstanceFile()), NewPageCache(PageCacheOptions{}), quietLogger())

	res, err := r.Resolve("req", ResolveArgs{Instance: "acme-staging"})
	require.NoError(t, err)
	assert.Equal(t, "acme-staging", res.Name)
	assert.Equal(t, "acme-staging.atlassian.net", res.Config.Domain)
}

func TestResolve_ExplicitUnknownAlwaysFails(t *testing.T) {
	r := NewResolver(staticRegistry(twoInstanceFile()), NewPageCache(PageCacheOptions{}), quietLogger())

	// Even with a resolvable space key present, an explicit unknown
	// instance is an error.
	_, err := r.Resolve("req", ResolveArgs{Instance: "ghost", SpaceKey: "ENG", PageID: "1"})
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "ghost", nf.Name)
	assert.ElementsMatch(t, []string{"acme-prod", "acme-staging"}, nf.Available)
}

func TestResolve_SpaceRouteWinsOverKnownSpaces(t *testing.T) {
	f := twoInstanceFile()
	// ENG is in acme-prod's known spaces AND routed to acme-staging.
	f.SpaceRoutes["ENG"] = config.SpaceRoute{Instance: "acme-staging"}
	r := NewResolver(staticRegistry(f), NewPageCache(PageCacheOptions{}), quietLogger())

	res, err := r.Resolve("req", ResolveArgs{SpaceKey: "ENG"})
	require.NoError(t, err)
	assert.Equal(t, "acme-staging", res.Name, "space route binding must precede known-spaces discovery")
}

func TestResolve_SpaceRouteDanglingIsError(t *testing.T) {
	f := twoInstanceFile()
	f.SpaceRoutes["ENG"] = config.SpaceRoute{Instance: "removed"}
	// Bypass file validation to simulate a reload race where the
	// instance disappeared.
	reg := NewRegistry(RegistryOptions{Loader: func() (*config.File, error) { return f, nil }})
	reg.state = &State{
		Instances:   f.Instances,
		SpaceRoutes: f.SpaceRoutes,
		Order:       f.InstanceOrder,
		LoadedAt:    reg.now(),
	}
	r := NewResolver(reg, NewPageCache(PageCacheOptions{}), quietLogger())

	_, err := r.Resolve("req", ResolveArgs{SpaceKey: "ENG"})
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf), "dangling route must be a configuration error, got %v", err)
}

func TestResolve_KnownSpaces(t *testing.T) {
	r := NewResolver(staticRegistry(twoInstanceFile()), NewPageCache(PageCacheOptions{}), quietLogger())

	res, err := r.Resolve("req", ResolveArgs{SpaceKey: "SANDBOX"})
	require.NoError(t, err)
	assert.Equal(t, "acme-staging", res.Name)
}

func TestResolve_KnownSpacesTieBreaksByOrder(t *testing.T) {
	f := &config.File{
		Instances: map[string]config.InstanceConfig{
			"beta":  basicInstance("beta.atlassian.net", "SHARED"),
			"alpha": basicInstance("alpha.atlassian.net", "SHARED"),
		},
		InstanceOrder: []string{"beta", "alpha"},
	}
	r := NewResolver(staticRegistry(f), NewPageCache(PageCacheOptions{}), quietLogger())

	res, err := r.Resolve("req", ResolveArgs{SpaceKey: "SHARED"})
	require.NoError(t, err)
	assert.Equal(t, "beta", res.Name, "first declared instance wins ties")
}

func TestResolve_PageCacheHit(t *testing.T) {
	cache := NewPageCache(PageCacheOptions{})
	cache.Put("777", "ENG", "acme-staging")
	r := NewResolver(staticRegistry(twoInstanceFile()), cache, quietLogger())

	res, err := r.Resolve("req", ResolveArgs{PageID: "777"})
	require.NoError(t, err)
	assert.Equal(t, "acme-staging", res.Name)
	assert.Equal(t, "ENG", res.SpaceKey)
}

func TestResolve_PageCacheSkippedWhenSpaceGiven(t *testing.T) {
	cache := NewPageCache(PageCacheOptions{})
	cache.Put("777", "ENG", "acme-staging")
	r := NewResolver(staticRegistry(twoInstanceFile()), cache, quietLogger())

	res, err := r.Resolve("req", ResolveArgs{SpaceKey: "ENG", PageID: "777"})
	require.NoError(t, err)
	assert.Equal(t, "acme-prod", res.Name, "space context must take precedence over the page cache")
}

func TestResolve_PageCacheDanglingFailsClosed(t *testing.T) {
	cache := NewPageCache(PageCacheOptions{})
	cache.Put("777", "ENG", "decommissioned")

	f := twoInstanceFile()
	f.DefaultInstance = "acme-prod"
	r := NewResolver(staticRegistry(f), cache, quietLogger())

	res, err := r.Resolve("req", ResolveArgs{PageID: "777"})
	require.NoError(t, err)
	assert.Equal(t, "acme-prod", res.Name, "dangling hit must fall through to the default instance")

	_, ok := cache.Get("777")
	assert.False(t, ok, "dangling entry must be dropped")
}

func TestResolve_DefaultInstance(t *testing.T) {
	f := twoInstanceFile()
	f.DefaultInstance = "acme-staging"
	r := NewResolver(staticRegistry(f), NewPageCache(PageCacheOptions{}), quietLogger())

	res, err := r.Resolve("req", ResolveArgs{})
	require.NoError(t, err)
	assert.Equal(t, "acme-staging", res.Name)
}

func TestResolve_SingleInstanceNoHints(t *testing.T) {
	f := &config.File{
		Instances: map[string]config.InstanceConfig{
			"only": basicInstance("only.atlassian.net"),
		},
		InstanceOrder: []string{"only"},
	}
	r := NewResolver(staticRegistry(f), NewPageCache(PageCacheOptions{}), quietLogger())

	res, err := r.Resolve("req", ResolveArgs{})
	require.NoError(t, err)
	assert.Equal(t, "only", res.Name)
}

func TestResolve_AmbiguousListsAllInstances(t *testing.T) {
	r := NewResolver(staticRegistry(twoInstanceFile()), NewPageCache(PageCacheOptions{}), quietLogger())

	_, err := r.Resolve("req", ResolveArgs{})
	var amb *AmbiguousError
	require.True(t, errors.As(err, &amb))
	assert.ElementsMatch(t, []string{"acme-prod", "acme-staging"}, amb.Available)
}

func TestResolve_Idempotent(t *testing.T) {
	cache := NewPageCache(PageCacheOptions{})
	cache.Put("777", "ENG", "acme-prod")
	r := NewResolver(staticRegistry(twoInstanceFile()), cache, quietLogger())

	args := ResolveArgs{SpaceKey: "LEGAL", PageID: "777"}
	first, err := r.Resolve("req-1", args)
	require.NoError(t, err)
	second, err := r.Resolve("req-2", args)
	require.NoError(t, err)

	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.SpaceKey, second.SpaceKey)
}

func TestResolve_SpaceRouteCarriesDefaults(t *testing.T) {
	r := NewResolver(staticRegistry(twoInstanceFile()), NewPageCache(PageCacheOptions{}), quietLogger())

	res, err := r.Resolve("req", ResolveArgs{SpaceKey: "LEGAL"})
	require.NoError(t, err)
	require.NotNil(t, res.Route)
	assert.Equal(t, "42", res.Route.DefaultParentPageID)
}
