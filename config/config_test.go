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
	"testing"
	"time"
)

func TestCredential_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cred    Credential
		wantErr bool
	}{
		{
			name:    "valid basic",
			cred:    Credential{Type: AuthBasic, Email: "bot@acme.example", APIToken: "tok"},
			wantErr: false,
		},
		{
			name:    "basic missing token",
			cred:    Credential{Type: AuthBasic, Email: "bot@acme.example"},
			wantErr: true,
		},
		{
			name:    "basic with oauth2 fields",
			cred:    Credential{Type: AuthBasic, Email: "e", APIToken: "t", AccessToken: "a"},
			wantErr: true,
		},
		{
			name:    "valid oauth2",
			cred:    Credential{Type: AuthOAuth2, AccessToken: "bearer-token"},
			wantErr: false,
		},
		{
			name:    "oauth2 missing access token",
			cred:    Credential{Type: AuthOAuth2, RefreshToken: "r"},
			wantErr: true,
		},
		{
			name:    "oauth2 with basic fields",
			cred:    Credential{Type: AuthOAuth2, AccessToken: "a", Email: "e"},
			wantErr: true,
		},
		{
			name:    "missing type",
			cred:    Credential{Email: "e", APIToken: "t"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			cred:    Credential{Type: "pat", APIToken: "t"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cred.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInstanceConfig_Validate(t *testing.T) {
	valid := InstanceConfig{
		Domain:     "acme.atlassian.net",
		Credential: Credential{Type: AuthBasic, Email: "e", APIToken: "t"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid instance rejected: %v", err)
	}

	noDomain := valid
	noDomain.Domain = ""
	if err := noDomain.Validate(); err == nil {
		t.Error("instance without domain accepted")
	}

	badCred := valid
	badCred.Credential = Credential{Type: AuthBasic}
	if err := badCred.Validate(); err == nil {
		t.Error("instance with invalid credential accepted")
	}
}

func TestFile_Validate(t *testing.T) {
	inst := InstanceConfig{
		Domain:     "acme.atlassian.net",
		Credential: Credential{Type: AuthBasic, Email: "e", APIToken: "t"},
	}

	tests := []struct {
		name    string
		file    File
		wantErr bool
	}{
		{
			name:    "no instances",
			file:    File{},
			wantErr: true,
		},
		{
			name: "valid single instance",
			file: File{
				Instances: map[string]InstanceConfig{"prod": inst},
			},
			wantErr: false,
		},
		{
			name: "space route to unknown instance",
			file: File{
				Instances:   map[string]InstanceConfig{"prod": inst},
				SpaceRoutes: map[string]SpaceRoute{"ENG": {Instance: "missing"}},
			},
			wantErr: true,
		},
		{
			name: "space route without instance",
			file: File{
				Instances:   map[string]InstanceConfig{"prod": inst},
				SpaceRoutes: map[string]SpaceRoute{"ENG": {}},
			},
			wantErr: true,
		},
		{
			name: "dangling default instance",
			file: File{
				Instances:       map[string]InstanceConfig{"prod": inst},
				DefaultInstance: "missing",
			},
			wantErr: true,
		},
		{
			name: "valid routes and default",
			file: File{
				Instances:       map[string]InstanceConfig{"prod": inst},
				SpaceRoutes:     map[string]SpaceRoute{"ENG": {Instance: "prod"}},
				DefaultInstance: "prod",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.file.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBridgeConfig_ApplyDefaults(t *testing.T) {
	var b BridgeConfig
	b.ApplyDefaults()

	if b.PollInterval() != DefaultPollInterval {
		t.Errorf("PollInterval() = %v, want %v", b.PollInterval(), DefaultPollInterval)
	}
	if b.ConnectTimeout() != DefaultConnectTimeout {
		t.Errorf("ConnectTimeout() = %v, want %v", b.ConnectTimeout(), DefaultConnectTimeout)
	}
	if b.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", b.MaxRetries, DefaultMaxRetries)
	}
	if b.OperationsPerMinute != DefaultOperationsPerMinute || b.OperationsPerHour != DefaultOperationsPerHour {
		t.Errorf("rate limits = %d/%d, want %d/%d",
			b.OperationsPerMinute, b.OperationsPerHour, DefaultOperationsPerMinute, DefaultOperationsPerHour)
	}
	if b.MaxBatchSize != DefaultMaxBatchSize {
		t.Errorf("MaxBatchSize = %d, want %d", b.MaxBatchSize, DefaultMaxBatchSize)
	}

	// Delete is never in the default allow lists
	for _, mode := range b.AllowedIncomingModes {
		if mode == ModeDelete {
			t.Error("delete present in default incoming modes")
		}
	}
	for _, mode := range b.AllowedOutgoingModes {
		if mode == ModeDelete {
			t.Error("delete present in default outgoing modes")
		}
	}
}

func TestBridgeConfig_ApplyDefaultsKeepsExplicit(t *testing.T) {
	b := BridgeConfig{
		PollIntervalMs:       5000,
		AllowedOutgoingModes: []string{ModeRead},
		OperationsPerMinute:  5,
	}
	b.ApplyDefaults()

	if b.PollInterval() != 5*time.Second {
		t.Errorf("PollInterval() = %v, want 5s", b.PollInterval())
	}
	if len(b.AllowedOutgoingModes) != 1 || b.AllowedOutgoingModes[0] != ModeRead {
		t.Errorf("AllowedOutgoingModes = %v, want [read]", b.AllowedOutgoingModes)
	}
	if b.OperationsPerMinute != 5 {
		t.Errorf("OperationsPerMinute = %d, want 5", b.OperationsPerMinute)
	}
}
