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
Package instances decides which configured Confluence instance an operation
routes to.

Three pieces cooperate:

  - Registry: loads and validates the configured instance set from the
    configuration source and caches it with a TTL (5 minutes by default).
    Configuration errors fail at the point of first use; the registry never
    silently falls back to a default tenant.
  - PageCache: a TTL-bounded in-memory table remembering which instance
    last served a given page id, consulted when an operation supplies a
    page id but no space context.
  - Resolver: the fixed priority cascade (explicit override, space route,
    known spaces, page cache, default instance, single instance) producing
    the routing decision. Known-space ties resolve by configuration
    declaration order, which is not stable across reconfiguration.

A page cache hit that references an instance removed by a registry reload
fails closed: the entry is dropped and resolution continues as a miss,
never returning a dangling tenant.
*/
package instances
