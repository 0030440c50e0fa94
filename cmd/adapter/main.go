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

// Confluence Adapter: multi-instance Confluence MCP server.
//
// Exposes Confluence page, search and space operations as MCP tools
// over stdio, routes each request to the right Confluence instance,
// and optionally bridges tool calls to a peer Jira adapter.
//
// Usage:
//
//	confluence-adapter serve    # Start MCP server (stdio transport)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"axonflow/confluence-adapter/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("confluence-adapter v%s\n", server.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	adapter, err := server.New(server.Options{
		ConfigPath: os.Getenv("CONFLUENCE_CONFIG_FILE"),
		RedisURL:   os.Getenv("REDIS_URL"),
	})
	if err != nil {
		return fmt.Errorf("creating adapter: %w", err)
	}
	defer adapter.Close()

	// Graceful shutdown on interrupt.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	adapter.Start(ctx)

	// Diagnostics listener runs beside the stdio transport; all of
	// its failures go to stderr so stdout stays clean for MCP.
	if addr := diagnosticsAddr(); addr != "" {
		diag := server.NewDiagnosticsServer(adapter, addr)
		go func() {
			if err := diag.Run(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "diagnostics server: %v\n", err)
			}
		}()
	}

	return adapter.ServeStdio()
}

func diagnosticsAddr() string {
	if port := os.Getenv("DIAGNOSTICS_PORT"); port != "" {
		return ":" + port
	}
	return ""
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Confluence Adapter v%s — multi-instance Confluence MCP server

Usage:
  confluence-adapter serve    Start the MCP server (stdio transport)

Environment:
  CONFLUENCE_CONFIG_FILE   Path to the YAML configuration file
  REDIS_URL                Optional Redis URL for shared rate limiting
  DIAGNOSTICS_PORT         Optional port for the HTTP diagnostics listener

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "confluence": {
        "command": "confluence-adapter",
        "args": ["serve"]
      }
    }
  }
`, server.Version)
}
