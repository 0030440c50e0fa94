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
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// Logger provides structured logging with multi-instance support.
// Output goes to stderr: stdout is reserved for the MCP stdio transport
// and must never carry log lines.
type Logger struct {
	Component string
	Container string

	mu  sync.Mutex
	out io.Writer
}

// LogEntry represents a structured log entry with required fields for
// multi-instance logging
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Component string                 `json:"component"`
	Container string                 `json:"container"`
	Instance  string                 `json:"instance,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// New creates a new Logger for the specified component
func New(component string) *Logger {
	// Get container name from hostname
	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	return &Logger{
		Component: component,
		Container: container,
		out:       os.Stderr,
	}
}

// NewWithWriter creates a Logger that writes to the given writer.
// Used by tests to capture output.
func NewWithWriter(component string, w io.Writer) *Logger {
	l := New(component)
	l.out = w
	return l
}

// Log creates a structured log entry and writes it as single-line JSON
func (l *Logger) Log(level LogLevel, instance, requestID, message string, fields map[string]interface{}) {
	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Component: l.Component,
		Container: l.Container,
		Instance:  instance,
		RequestID: requestID,
		Message:   message,
		Fields:    fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		l.mu.Lock()
		_, _ = l.out.Write([]byte("ERROR: failed to marshal log entry: " + err.Error() + "\n"))
		l.mu.Unlock()
		return
	}

	l.mu.Lock()
	_, _ = l.out.Write(append(jsonBytes, '\n'))
	l.mu.Unlock()
}

// Info logs an informational message
func (l *Logger) Info(instance, requestID, message string, fields map[string]interface{}) {
	l.Log(INFO, instance, requestID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(instance, requestID, message string, fields map[string]interface{}) {
	l.Log(ERROR, instance, requestID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(instance, requestID, message string, fields map[string]interface{}) {
	l.Log(WARN, instance, requestID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(instance, requestID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, instance, requestID, message, fields)
}

// InfoWithDuration logs an info message with duration field
func (l *Logger) InfoWithDuration(instance, requestID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(instance, requestID, message, fields)
}

// ErrorWithErr logs an error message with the error attached as a field
func (l *Logger) ErrorWithErr(instance, requestID, message string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(instance, requestID, message, fields)
}
