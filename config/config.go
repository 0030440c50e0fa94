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

package config

import (
	"fmt"
	"time"
)

// Auth type constants for the per-instance credential union.
const (
	AuthBasic  = "basic"
	AuthOAuth2 = "oauth2"
)

// Operation mode constants shared between configuration and the safety
// boundary engine.
const (
	ModeRead   = "read"
	ModeCreate = "create"
	ModeUpdate = "update"
	ModeDelete = "delete"
)

// Credential is the tagged credential union for one Confluence instance.
// Exactly one variant must be populated, selected by Type.
type Credential struct {
	Type string `yaml:"type" json:"type"`

	// basic variant
	Email    string `yaml:"email,omitempty" json:"email,omitempty"`
	APIToken string `yaml:"api_token,omitempty" json:"-"`

	// oauth2 variant
	AccessToken  string `yaml:"access_token,omitempty" json:"-"`
	RefreshToken string `yaml:"refresh_token,omitempty" json:"-"`
	ClientID     string `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty" json:"-"`
}

// Validate checks that exactly one credential variant is populated.
func (c *Credential) Validate() error {
	switch c.Type {
	case AuthBasic:
		if c.Email == "" || c.APIToken == "" {
			return fmt.Errorf("basic credential requires email and api_token")
		}
		if c.AccessToken != "" {
			return fmt.Errorf("basic credential must not carry oauth2 fields")
		}
	case AuthOAuth2:
		if c.AccessToken == "" {
			return fmt.Errorf("oauth2 credential requires access_token")
		}
		if c.Email != "" || c.APIToken != "" {
			return fmt.Errorf("oauth2 credential must not carry basic fields")
		}
	case "":
		return fmt.Errorf("credential type is required (basic or oauth2)")
	default:
		return fmt.Errorf("unsupported credential type: %s", c.Type)
	}
	return nil
}

// InstanceConfig describes one configured Confluence instance (tenant).
type InstanceConfig struct {
	Domain     string     `yaml:"domain" json:"domain"`
	Credential Credential `yaml:"auth" json:"auth"`

	// Spaces lists the tenant-space keys known to live on this instance,
	// used for auto-discovery routing. Order is preserved from the
	// configuration source.
	Spaces []string `yaml:"spaces,omitempty" json:"spaces,omitempty"`
}

// Validate checks the instance invariants: non-empty domain and a valid
// credential variant.
func (c *InstanceConfig) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if err := c.Credential.Validate(); err != nil {
		return fmt.Errorf("invalid credential: %w", err)
	}
	return nil
}

// SpaceRoute is an optional per-space override binding a space key to a
// specific instance, with per-space defaults applied on create.
type SpaceRoute struct {
	Instance            string   `yaml:"instance" json:"instance"`
	DefaultParentPageID string   `yaml:"default_parent_page_id,omitempty" json:"default_parent_page_id,omitempty"`
	DefaultLabels       []string `yaml:"default_labels,omitempty" json:"default_labels,omitempty"`
}

// BridgeConfig holds the peer adapter endpoint configuration and the
// safety boundary policy lists.
type BridgeConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	Endpoint       string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	HealthEndpoint string `yaml:"health_endpoint,omitempty" json:"health_endpoint,omitempty"`

	PollIntervalMs   int `yaml:"poll_interval_ms,omitempty" json:"poll_interval_ms,omitempty"`
	ConnectTimeoutMs int `yaml:"connect_timeout_ms,omitempty" json:"connect_timeout_ms,omitempty"`
	MaxRetries       int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	AllowedIncomingModes       []string `yaml:"allowed_incoming_modes,omitempty" json:"allowed_incoming_modes,omitempty"`
	AllowedOutgoingModes       []string `yaml:"allowed_outgoing_modes,omitempty" json:"allowed_outgoing_modes,omitempty"`
	ExcludedIncomingOperations []string `yaml:"excluded_incoming_operations,omitempty" json:"excluded_incoming_operations,omitempty"`
	ExcludedOutgoingOperations []string `yaml:"excluded_outgoing_operations,omitempty" json:"excluded_outgoing_operations,omitempty"`
	ConfirmationRequired       []string `yaml:"confirmation_required,omitempty" json:"confirmation_required,omitempty"`

	OperationsPerMinute int `yaml:"operations_per_minute,omitempty" json:"operations_per_minute,omitempty"`
	OperationsPerHour   int `yaml:"operations_per_hour,omitempty" json:"operations_per_hour,omitempty"`
	MaxBatchSize        int `yaml:"max_batch_size,omitempty" json:"max_batch_size,omitempty"`
}

// Default bridge settings applied by ApplyDefaults.
const (
	DefaultPollInterval        = 30 * time.Second
	DefaultConnectTimeout      = 10 * time.Second
	DefaultMaxRetries          = 5
	DefaultOperationsPerMinute = 60
	DefaultOperationsPerHour   = 600
	DefaultMaxBatchSize        = 10
)

// ApplyDefaults fills unset bridge fields with their defaults. Delete is
// deliberately absent from the default mode lists in both directions.
func (b *BridgeConfig) ApplyDefaults() {
	if b.PollIntervalMs <= 0 {
		b.PollIntervalMs = int(DefaultPollInterval / time.Millisecond)
	}
	if b.ConnectTimeoutMs <= 0 {
		b.ConnectTimeoutMs = int(DefaultConnectTimeout / time.Millisecond)
	}
	if b.MaxRetries <= 0 {
		b.MaxRetries = DefaultMaxRetries
	}
	if len(b.AllowedIncomingModes) == 0 {
		b.AllowedIncomingModes = []string{ModeRead, ModeCreate, ModeUpdate}
	}
	if len(b.AllowedOutgoingModes) == 0 {
		b.AllowedOutgoingModes = []string{ModeRead, ModeCreate, ModeUpdate}
	}
	if b.OperationsPerMinute <= 0 {
		b.OperationsPerMinute = DefaultOperationsPerMinute
	}
	if b.OperationsPerHour <= 0 {
		b.OperationsPerHour = DefaultOperationsPerHour
	}
	if b.MaxBatchSize <= 0 {
		b.MaxBatchSize = DefaultMaxBatchSize
	}
}

// PollInterval returns the discovery poll interval as a duration.
func (b *BridgeConfig) PollInterval() time.Duration {
	return time.Duration(b.PollIntervalMs) * time.Millisecond
}

// ConnectTimeout returns the peer connect timeout as a duration.
func (b *BridgeConfig) ConnectTimeout() time.Duration {
	return time.Duration(b.ConnectTimeoutMs) * time.Millisecond
}

// File is the root of the adapter configuration document.
type File struct {
	Version         string                    `yaml:"version,omitempty"`
	Instances       map[string]InstanceConfig `yaml:"instances"`
	SpaceRoutes     map[string]SpaceRoute     `yaml:"space_routes,omitempty"`
	DefaultInstance string                    `yaml:"default_instance,omitempty"`
	Bridge          BridgeConfig              `yaml:"bridge,omitempty"`

	// InstanceOrder preserves the declaration order of the instances
	// mapping. Auto-discovery ties resolve by this order, which is not
	// guaranteed stable across reconfiguration.
	InstanceOrder []string `yaml:"-"`
}

// Validate checks cross-field invariants: every instance is valid, every
// space route references an existing instance, and the default instance
// exists when set.
func (f *File) Validate() error {
	if len(f.Instances) == 0 {
		return fmt.Errorf("no instances configured")
	}
	for name, inst := range f.Instances {
		if err := inst.Validate(); err != nil {
			return fmt.Errorf("instance %q: %w", name, err)
		}
	}
	for key, route := range f.SpaceRoutes {
		if route.Instance == "" {
			return fmt.Errorf("space route %q: instance is required", key)
		}
		if _, ok := f.Instances[route.Instance]; !ok {
			return fmt.Errorf("space route %q references unknown instance %q", key, route.Instance)
		}
	}
	if f.DefaultInstance != "" {
		if _, ok := f.Instances[f.DefaultInstance]; !ok {
			return fmt.Errorf("default_instance references unknown instance %q", f.DefaultInstance)
		}
	}
	return nil
}
