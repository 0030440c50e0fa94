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
	"fmt"
	"strings"
)

// NotFoundError is returned when a resolver step names an instance that is
// not present in the registry. It carries the valid instance names so the
// caller can retry with a disambiguating parameter.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("instance %q not found (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// AmbiguousError is returned when no cascade step selects an instance and
// more than one is configured. It lists all configured instance names.
type AmbiguousError struct {
	Available []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("multiple instances configured, cannot pick one automatically; specify one of: %s",
		strings.Join(e.Available, ", "))
}
