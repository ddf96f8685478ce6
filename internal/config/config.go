// Package config provides configuration parsing and validation for radclient.
package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/postalsys/radclient/internal/logging"
)

// Config represents the complete client configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Bench   BenchConfig   `yaml:"bench"`
}

// ServerConfig describes the RADIUS server and the exchange timeouts.
type ServerConfig struct {
	Address string `yaml:"address"`
	Secret  string `yaml:"secret"`

	// Timeouts take their default when the key is omitted. An explicit null
	// means wait indefinitely, and nil is written back as null.
	ConnectionTimeout *time.Duration `yaml:"connection_timeout"`
	SocketTimeout     *time.Duration `yaml:"socket_timeout"`

	DSCP          int    `yaml:"dscp,omitempty"`
	NASIdentifier string `yaml:"nas_identifier,omitempty"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// BenchConfig holds load generator defaults.
type BenchConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Duration    time.Duration `yaml:"duration"`
	Rate        float64       `yaml:"rate,omitempty"` // exchanges per second, 0 = unlimited
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:           "127.0.0.1:1812",
			ConnectionTimeout: durationPtr(5 * time.Second),
			SocketTimeout:     durationPtr(3 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9812",
		},
		Bench: BenchConfig{
			Concurrency: 10,
			Duration:    10 * time.Second,
		},
	}
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
// ${VAR:-default} falls back to default; unknown variables are left as written.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		if varName, defaultVal, ok := strings.Cut(name, ":-"); ok {
			if val, ok := os.LookupEnv(varName); ok {
				return val
			}
			return defaultVal
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for errors. Non-positive timeouts are
// accepted and behave as already expired.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Address == "" {
		errs = append(errs, "server.address is required")
	} else if err := validateHostPort(c.Server.Address); err != nil {
		errs = append(errs, fmt.Sprintf("server.address: %v", err))
	}
	if c.Server.DSCP < 0 || c.Server.DSCP > 63 {
		errs = append(errs, fmt.Sprintf("server.dscp must be between 0 and 63, got %d", c.Server.DSCP))
	}
	if len(c.Server.NASIdentifier) > 253 {
		errs = append(errs, "server.nas_identifier must be at most 253 bytes")
	}

	if !logging.IsValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	if !logging.IsValidFormat(c.Log.Format) {
		errs = append(errs, fmt.Sprintf("invalid log.format: %s (must be text or json)", c.Log.Format))
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, "metrics.address is required when enabled")
	}

	if c.Bench.Concurrency < 1 {
		errs = append(errs, "bench.concurrency must be positive")
	}
	if c.Bench.Duration <= 0 {
		errs = append(errs, "bench.duration must be positive")
	}
	if c.Bench.Rate < 0 {
		errs = append(errs, "bench.rate must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func validateHostPort(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if host == "" {
		return fmt.Errorf("missing host in %q", addr)
	}
	if port == "" {
		return fmt.Errorf("missing port in %q", addr)
	}
	return nil
}

// ResolveServer resolves the server address to a UDP endpoint.
func (c *Config) ResolveServer() (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp", c.Server.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve server address %q: %w", c.Server.Address, err)
	}
	return addr, nil
}

// String returns a string representation of the config (for debugging).
// WARNING: This method redacts the shared secret. Use StringUnsafe() for full output.
func (c *Config) String() string {
	redacted := c.Redacted()
	data, _ := yaml.Marshal(redacted)
	return string(data)
}

// StringUnsafe returns a string representation including the shared secret.
// Use with caution - do not log the output.
func (c *Config) StringUnsafe() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// redactedValue is the placeholder for sensitive values.
const redactedValue = "[REDACTED]"

// Redacted returns a copy of the config with the shared secret redacted.
// This is safe to log or display to users.
func (c *Config) Redacted() *Config {
	data, err := yaml.Marshal(c)
	if err != nil {
		return c
	}

	redacted := &Config{}
	if err := yaml.Unmarshal(data, redacted); err != nil {
		return c
	}

	if redacted.Server.Secret != "" {
		redacted.Server.Secret = redactedValue
	}

	return redacted
}

// HasSensitiveData returns true if the config contains a shared secret.
func (c *Config) HasSensitiveData() bool {
	return c.Server.Secret != ""
}
