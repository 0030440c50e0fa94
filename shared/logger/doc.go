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

/*
Package logger provides structured JSON logging with multi-instance support
for the Confluence adapter.

# Overview

The logger outputs single-line JSON to stderr, making logs consumable by
CloudWatch, ELK, or any other log aggregation system. stderr is used rather
than stdout because the adapter speaks MCP over stdio: stdout belongs to the
protocol and a stray log line there corrupts the framing.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (resolver, bridge, boundary, etc.)
  - Container name (for distributed tracing)
  - Instance name (the Confluence instance an operation routed to)
  - Request ID (for request correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("bridge")

Log messages with instance and request context:

	log.Info("acme-prod", "req-456", "Connected to peer", map[string]interface{}{
	    "endpoint": "http://localhost:9010",
	})

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
