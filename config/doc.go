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
Package config defines the adapter configuration document and its loader.

Configuration priority: YAML file (CONFLUENCE_CONFIG_FILE) > scalar
environment overrides. The scalar overrides synthesize a single-instance
configuration and are only useful when one tenant exists; if neither source
is present Load fails with ErrNoConfiguration, which is fatal at startup.

The file describes the configured Confluence instances (domain + credential
+ known spaces), optional per-space routing overrides, a default instance,
and the peer bridge settings (endpoint, health endpoint, poll interval,
allow/deny mode lists, rate limits, batch size).

Environment variable references inside the file (${VAR}, ${VAR:-default},
$VAR) are expanded before parsing, so credentials can stay out of the file
itself:

	instances:
	  acme-prod:
	    domain: acme.atlassian.net
	    auth:
	      type: basic
	      email: bot@acme.example
	      api_token: ${ACME_PROD_TOKEN}
	    spaces: [ENG, DOCS]
*/
package config
