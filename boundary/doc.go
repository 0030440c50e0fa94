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

// Package boundary enforces the safety policy for operations crossing
// the adapter boundary in either direction: mode allow-lists, explicit
// operation exclusions, a transient block list, sliding-window rate
// limits, and batch size caps. Validation never blocks on human
// confirmation; it only reports whether confirmation is required.
package boundary
