// Package metrics exports convergence loop metrics in the Prometheus text
// format.
package metrics

import (
	"fmt"
	"net"
)

// Config holds the metrics endpoint settings.
type Config struct {
	// Listen is the address of the /metrics endpoint, e.g. "127.0.0.1:9469".
	// Empty disables the endpoint.
	Listen string `yaml:"listen"`

	// Path is the HTTP path metrics are served on.
	// Default: /metrics
	Path string `yaml:"path"`
}

// DefaultPath is the default HTTP path of the metrics endpoint.
const DefaultPath = "/metrics"

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
}

// Validate checks that configuration values are acceptable.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("metrics: config: invalid listen address %q: %w", c.Listen, err)
	}
	if c.Path == "" || c.Path[0] != '/' {
		return fmt.Errorf("metrics: config: path %q must start with /", c.Path)
	}
	return nil
}

// Enabled reports whether the endpoint should be served.
func (c *Config) Enabled() bool {
	return c.Listen != ""
}
