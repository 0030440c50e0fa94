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

package boundary

import (
	"strings"

	"axonflow/confluence-adapter/config"
)

// modePattern maps an operation-name substring to a mode.
type modePattern struct {
	substring string
	mode      string
}

// modePatterns is the central classification table, checked in order with
// first match winning. Classification is a heuristic over names, not a
// registry of true operation semantics: an operation named
// "update_status_display" that is actually read-only is still classified
// as update. This is a known limitation, kept central here so the rules
// stay auditable rather than special-cased at call sites.
var modePatterns = []modePattern{
	{"delete", config.ModeDelete},
	{"remove", config.ModeDelete},
	{"destroy", config.ModeDelete},
	{"update", config.ModeUpdate},
	{"edit", config.ModeUpdate},
	{"modify", config.ModeUpdate},
	{"patch", config.ModeUpdate},
	{"create", config.ModeCreate},
	{"add", config.ModeCreate},
	{"insert", config.ModeCreate},
	{"post", config.ModeCreate},
}

// ClassifyOperation returns the coarse mode (read/create/update/delete)
// for an operation name. Names matching no pattern are read.
func ClassifyOperation(name string) string {
	lower := strings.ToLower(name)
	for _, p := range modePatterns {
		if strings.Contains(lower, p.substring) {
			return p.mode
		}
	}
	return config.ModeRead
}
