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

// Package server is the composition root: it loads configuration,
// creates the long-lived services (registry, resolver, page cache,
// safety boundary, bridge manager), and wires the MCP tool handlers
// into the stdio server. No business logic lives here.
package server

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"axonflow/confluence-adapter/boundary"
	"axonflow/confluence-adapter/bridge"
	"axonflow/confluence-adapter/config"
	"axonflow/confluence-adapter/instances"
	"axonflow/confluence-adapter/metrics"
	"axonflow/confluence-adapter/shared/logger"
	"axonflow/confluence-adapter/tools"
)

// Version of the adapter, reported in diagnostics and the MCP
// handshake.
const Version = "1.0.0"

// Options holds adapter startup settings.
type Options struct {
	// ConfigPath is the configuration file; empty falls back to the
	// CONFLUENCE_CONFIG_FILE env var and then the scalar overrides.
	ConfigPath string
	// RedisURL enables distributed rate-limit accounting when set.
	RedisURL string
}

// Adapter bundles the MCP server with the services behind it.
type Adapter struct {
	MCP  *server.MCPServer
	Deps *tools.Deps

	log     *logger.Logger
	limiter *boundary.RedisLimiter
}

// New builds the adapter. Configuration errors are fatal here: without
// tenant data there is nothing to serve.
func New(opts Options) (*Adapter, error) {
	log := logger.New("server")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	var limiter *boundary.RedisLimiter
	if opts.RedisURL != "" {
		limiter, err = boundary.NewRedisLimiter(opts.RedisURL)
		if err != nil {
			// Distributed accounting is an enhancement; the in-memory
			// window still enforces the limits.
			log.Warn("", "", "redis rate limiter unavailable, using in-memory windows", map[string]interface{}{
				"error": err.Error(),
			})
			limiter = nil
		}
	}

	registry := instances.NewRegistry(instances.RegistryOptions{
		Loader: func() (*config.File, error) { return config.Load(opts.ConfigPath) },
	})
	// Fail fast on unusable configuration before serving.
	if _, err := registry.Snapshot(); err != nil {
		return nil, fmt.Errorf("instance registry: %w", err)
	}

	pages := instances.NewPageCache(instances.PageCacheOptions{})
	resolver := instances.NewResolver(registry, pages, logger.New("resolver"))

	engine := boundary.NewEngine(boundary.EngineOptions{
		Config:  cfg.Bridge,
		Limiter: limiter,
		Logger:  logger.New("boundary"),
	})

	manager := bridge.NewManager(bridge.ManagerOptions{
		Config: cfg.Bridge,
		Logger: logger.New("bridge"),
	})

	deps := &tools.Deps{
		Registry: registry,
		Resolver: resolver,
		Pages:    pages,
		Boundary: engine,
		Bridge:   manager,
		Clients:  tools.NewClientCache(nil),
		Log:      logger.New("tools"),
	}

	s := server.NewMCPServer(
		"confluence-adapter",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	registerTools(s, deps)

	metrics.RegisterRuntimeGauges(metrics.RuntimeGauges{
		PageCacheEntries: func() float64 { return float64(pages.Len()) },
		PageCacheHits:    func() float64 { return float64(pages.Stats().Hits) },
		PageCacheMisses:  func() float64 { return float64(pages.Stats().Misses) },
		BreakerFailures:  func() float64 { return float64(manager.Status().Breaker.ConsecutiveFailures) },
	})

	log.Info("", "", "adapter initialized", map[string]interface{}{
		"instances":      len(cfg.Instances),
		"bridge_enabled": cfg.Bridge.Enabled,
	})

	return &Adapter{MCP: s, Deps: deps, log: log, limiter: limiter}, nil
}

// registerTools wires every tool handler into the MCP server.
func registerTools(s *server.MCPServer, deps *tools.Deps) {
	getPage := tools.NewGetPageTool(deps)
	s.AddTool(getPage.Definition(), getPage.Handle)

	createPage := tools.NewCreatePageTool(deps)
	s.AddTool(createPage.Definition(), createPage.Handle)

	updatePage := tools.NewUpdatePageTool(deps)
	s.AddTool(updatePage.Definition(), updatePage.Handle)

	deletePage := tools.NewDeletePageTool(deps)
	s.AddTool(deletePage.Definition(), deletePage.Handle)

	search := tools.NewSearchTool(deps)
	s.AddTool(search.Definition(), search.Handle)

	listSpaces := tools.NewListSpacesTool(deps)
	s.AddTool(listSpaces.Definition(), listSpaces.Handle)

	bridgeCall := tools.NewBridgeCallTool(deps)
	s.AddTool(bridgeCall.Definition(), bridgeCall.Handle)

	bridgeStatus := tools.NewBridgeStatusTool(deps)
	s.AddTool(bridgeStatus.Definition(), bridgeStatus.Handle)

	diagnostics := tools.NewDiagnosticsTool(deps)
	s.AddTool(diagnostics.Definition(), diagnostics.Handle)
}

// Start launches the background loops: peer discovery and the boundary
// history sweep. It returns immediately.
func (a *Adapter) Start(ctx context.Context) {
	go a.Deps.Bridge.Run(ctx)
	a.Deps.Boundary.StartPeriodicSweep(ctx, boundary.DefaultSweepInterval)
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (a *Adapter) ServeStdio() error {
	return server.ServeStdio(a.MCP)
}

// Close releases held resources.
func (a *Adapter) Close() {
	a.Deps.Bridge.Close()
	if a.limiter != nil {
		if err := a.limiter.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close redis limiter: %v\n", err)
		}
	}
}
