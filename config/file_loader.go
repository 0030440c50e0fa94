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
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load and loadFromEnv.
const (
	EnvConfigFile   = "CONFLUENCE_CONFIG_FILE"
	EnvDomain       = "CONFLUENCE_DOMAIN"
	EnvEmail        = "CONFLUENCE_EMAIL"
	EnvAPIToken     = "CONFLUENCE_API_TOKEN"
	EnvAccessToken  = "CONFLUENCE_OAUTH2_ACCESS_TOKEN"
	EnvRefreshToken = "CONFLUENCE_OAUTH2_REFRESH_TOKEN"
	EnvClientID     = "CONFLUENCE_OAUTH2_CLIENT_ID"
	EnvClientSecret = "CONFLUENCE_OAUTH2_CLIENT_SECRET"
	EnvSpaces       = "CONFLUENCE_SPACES"

	// envInstanceName is the instance name assigned to the single
	// instance built from scalar env overrides.
	envInstanceName = "default"
)

// ErrNoConfiguration is returned when neither a configuration file nor the
// scalar environment overrides are present. It is fatal at startup.
var ErrNoConfiguration = errors.New("no configuration: set " + EnvConfigFile + " or the " + EnvDomain + " scalar overrides")

// envVarRegex matches ${VAR_NAME}, ${VAR_NAME:-default} and $VAR_NAME
// references inside the configuration file.
var envVarRegex = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*(:-[^}]*)?\}|\$[A-Za-z_][A-Za-z0-9_]*`)

// Load builds the adapter configuration. A configuration file (path from
// CONFLUENCE_CONFIG_FILE, or the explicit path argument if non-empty) takes
// precedence; if none exists the scalar environment overrides are used to
// synthesize a single-instance configuration. Both absent is fatal.
func Load(path string) (*File, error) {
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}

	if path != "" {
		f, err := loadFile(path)
		if err == nil {
			return f, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
		// Missing file falls through to the scalar overrides.
	}

	f, err := loadFromEnv()
	if err != nil {
		return nil, err
	}
	return f, nil
}

// loadFile reads, expands, parses and validates a YAML configuration file.
func loadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Expand environment variables in the content
	expanded := expandEnvVars(string(data))

	var f File
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	f.Bridge.ApplyDefaults()

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return &f, nil
}

// fileAlias avoids UnmarshalYAML recursion on File.
type fileAlias File

// UnmarshalYAML decodes the document and additionally records the
// declaration order of the instances mapping. yaml.v3 map decoding drops
// key order, and auto-discovery ties resolve by declaration order.
func (f *File) UnmarshalYAML(node *yaml.Node) error {
	var a fileAlias
	if err := node.Decode(&a); err != nil {
		return err
	}
	*f = File(a)

	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "instances" {
			continue
		}
		m := node.Content[i+1]
		if m.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(m.Content); j += 2 {
			f.InstanceOrder = append(f.InstanceOrder, m.Content[j].Value)
		}
	}
	return nil
}

// loadFromEnv synthesizes a single-instance configuration from scalar
// environment overrides. Only usable when exactly one tenant exists.
func loadFromEnv() (*File, error) {
	domain := os.Getenv(EnvDomain)
	if domain == "" {
		return nil, ErrNoConfiguration
	}

	cred := Credential{}
	switch {
	case os.Getenv(EnvAPIToken) != "":
		cred = Credential{
			Type:     AuthBasic,
			Email:    os.Getenv(EnvEmail),
			APIToken: os.Getenv(EnvAPIToken),
		}
	case os.Getenv(EnvAccessToken) != "":
		cred = Credential{
			Type:         AuthOAuth2,
			AccessToken:  os.Getenv(EnvAccessToken),
			RefreshToken: os.Getenv(EnvRefreshToken),
			ClientID:     os.Getenv(EnvClientID),
			ClientSecret: os.Getenv(EnvClientSecret),
		}
	default:
		return nil, fmt.Errorf("%s set but no credential: set %s+%s or %s", EnvDomain, EnvEmail, EnvAPIToken, EnvAccessToken)
	}

	var spaces []string
	if raw := os.Getenv(EnvSpaces); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				spaces = append(spaces, s)
			}
		}
	}

	f := &File{
		Instances: map[string]InstanceConfig{
			envInstanceName: {
				Domain:     domain,
				Credential: cred,
				Spaces:     spaces,
			},
		},
		DefaultInstance: envInstanceName,
		InstanceOrder:   []string{envInstanceName},
	}
	f.Bridge.ApplyDefaults()

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid environment configuration: %w", err)
	}

	return f, nil
}

// expandEnvVars expands environment variable references in the string.
// Supports ${VAR_NAME}, ${VAR_NAME:-default} and $VAR_NAME syntax.
// Undefined variables without a default expand to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName, def string
		hasDefault := false
		if strings.HasPrefix(match, "${") {
			inner := match[2 : len(match)-1]
			if idx := strings.Index(inner, ":-"); idx >= 0 {
				varName, def = inner[:idx], inner[idx+2:]
				hasDefault = true
			} else {
				varName = inner
			}
		} else {
			varName = match[1:]
		}

		if value, ok := os.LookupEnv(varName); ok && value != "" {
			return value
		}
		if hasDefault {
			return def
		}
		return ""
	})
}
