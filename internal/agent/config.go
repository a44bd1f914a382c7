package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/dockerfw/internal/facts"
	"github.com/plexsphere/dockerfw/internal/firewall"
	"github.com/plexsphere/dockerfw/internal/iptables"
	"github.com/plexsphere/dockerfw/internal/metrics"
	"github.com/plexsphere/dockerfw/internal/reconcile"
)

const (
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultConfigPath is where the CLI looks for the configuration file.
	DefaultConfigPath = "/etc/dockerfw/config.yaml"
)

// AgentConfig is the top-level configuration for dockerfw.
// It aggregates all subsystem configurations and is populated from
// a YAML configuration file via ParseConfig.
type AgentConfig struct {
	// LogLevel is the log level: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	Facts     facts.Config     `yaml:"facts"`
	Firewall  firewall.Config  `yaml:"firewall"`
	IPTables  iptables.Config  `yaml:"iptables"`
	Reconcile reconcile.Config `yaml:"reconcile"`
	Metrics   metrics.Config   `yaml:"metrics"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *AgentConfig {
	var cfg AgentConfig
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *AgentConfig) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Facts.ApplyDefaults()
	c.Firewall.ApplyDefaults()
	c.IPTables.ApplyDefaults()
	c.Reconcile.ApplyDefaults()
	c.Metrics.ApplyDefaults()
}

// Validate checks that required fields are set and values are acceptable.
func (c *AgentConfig) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("agent: config: invalid log_level %q (must be debug, info, warn or error)", c.LogLevel)
	}
	if err := c.Facts.Validate(); err != nil {
		return err
	}
	if err := c.Firewall.Validate(); err != nil {
		return err
	}
	if err := c.IPTables.Validate(); err != nil {
		return err
	}
	if err := c.Reconcile.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return nil
}

// ParseConfig reads a YAML configuration file and returns an AgentConfig.
// It applies defaults and validates the configuration.
func ParseConfig(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agent: config: read %s: %w", path, err)
	}
	var cfg AgentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("agent: config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
