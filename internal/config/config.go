// ABOUTME: Runtime settings blob plus YAML file configuration for the warren client
// ABOUTME: Supports ${VAR} environment expansion and falls back to defaults on corrupt input

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultServerURL is used until the user configures a gateway address.
const DefaultServerURL = "http://192.168.1.100:5174"

// Settings is the mutable runtime configuration. It is persisted as a
// single JSON blob in a key-value store (see Store) and edited through the
// settings flow at runtime.
type Settings struct {
	ServerURL           string `json:"serverUrl" yaml:"server_url"`
	AuthToken           string `json:"authToken,omitempty" yaml:"auth_token"`
	EnableNotifications bool   `json:"enableNotifications" yaml:"enable_notifications"`
}

// Default returns the settings used when nothing has been persisted yet.
func Default() Settings {
	return Settings{
		ServerURL:           DefaultServerURL,
		EnableNotifications: true,
	}
}

// Validate checks that the settings are usable for network calls.
func (s Settings) Validate() error {
	if s.ServerURL == "" {
		return fmt.Errorf("server URL is required")
	}
	u, err := url.Parse(s.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", s.ServerURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server URL %q must use http or https", s.ServerURL)
	}
	return nil
}

// File is the optional static configuration file loaded at startup.
type File struct {
	Settings Settings      `yaml:",inline"`
	Logging  LoggingConfig `yaml:"logging"`
	Cache    CacheConfig   `yaml:"cache"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CacheConfig holds the offline transcript cache location.
type CacheConfig struct {
	Path string `yaml:"path"`
}

// LoadFile reads a YAML configuration file from the given path.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	f := &File{Settings: Default()}
	if err := yaml.Unmarshal([]byte(expanded), f); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return f, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
