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

package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	l := New("test-component")
	if l.Component != "test-component" {
		t.Errorf("Component = %q, want %q", l.Component, "test-component")
	}
	if l.Container == "" {
		t.Error("Container should never be empty")
	}
}

func TestLog_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("resolver", &buf)

	l.Info("acme-prod", "req-123", "resolved instance", map[string]interface{}{
		"space_key": "ENG",
	})

	line := strings.TrimSpace(buf.String())
	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v (line: %s)", err, line)
	}

	if entry.Level != INFO {
		t.Errorf("Level = %q, want %q", entry.Level, INFO)
	}
	if entry.Component != "resolver" {
		t.Errorf("Component = %q, want %q", entry.Component, "resolver")
	}
	if entry.Instance != "acme-prod" {
		t.Errorf("Instance = %q, want %q", entry.Instance, "acme-prod")
	}
	if entry.RequestID != "req-123" {
		t.Errorf("RequestID = %q, want %q", entry.RequestID, "req-123")
	}
	if entry.Message != "resolved instance" {
		t.Errorf("Message = %q, want %q", entry.Message, "resolved instance")
	}
	if entry.Fields["space_key"] != "ENG" {
		t.Errorf("Fields[space_key] = %v, want ENG", entry.Fields["space_key"])
	}
}

func TestLog_Levels(t *testing.T) {
	tests := []struct {
		name  string
		logFn func(l *Logger)
		want  LogLevel
	}{
		{"debug", func(l *Logger) { l.Debug("", "", "m", nil) }, DEBUG},
		{"info", func(l *Logger) { l.Info("", "", "m", nil) }, INFO},
		{"warn", func(l *Logger) { l.Warn("", "", "m", nil) }, WARN},
		{"error", func(l *Logger) { l.Error("", "", "m", nil) }, ERROR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWithWriter("test", &buf)
			tt.logFn(l)

			var entry LogEntry
			if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if entry.Level != tt.want {
				t.Errorf("Level = %q, want %q", entry.Level, tt.want)
			}
		})
	}
}

func TestErrorWithErr(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("test", &buf)

	l.ErrorWithErr("inst", "req", "operation failed", errTest, nil)

	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry.Fields["error"] != "boom" {
		t.Errorf("Fields[error] = %v, want boom", entry.Fields["error"])
	}
}

func TestInfoWithDuration(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("test", &buf)

	l.InfoWithDuration("inst", "req", "done", 12.5, nil)

	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry.Fields["duration_ms"] != 12.5 {
		t.Errorf("Fields[duration_ms] = %v, want 12.5", entry.Fields["duration_ms"])
	}
}

type testErr struct{}

func (testErr) Error() string { return "boom" }

var errTest = testErr{}
