package facts

import (
	"errors"
	"fmt"
	"log/slog"
)

// Fact sources.
const (
	SourceNetlink = "netlink"
	SourceFile    = "file"
)

// DefaultSource is the default fact source.
const DefaultSource = SourceNetlink

// Config selects where interface facts come from.
type Config struct {
	// Source is "netlink" (live kernel state) or "file".
	// Default: netlink
	Source string `yaml:"source"`

	// Path is the facts file read when Source is "file".
	Path string `yaml:"path"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Source == "" {
		c.Source = DefaultSource
	}
}

// Validate checks that configuration values are acceptable.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceNetlink:
		return nil
	case SourceFile:
		if c.Path == "" {
			return errors.New("facts: config: Path must not be empty when Source is \"file\"")
		}
		return nil
	default:
		return fmt.Errorf("facts: config: invalid source %q (must be \"netlink\" or \"file\")", c.Source)
	}
}

// NewProvider returns the Provider selected by cfg.
func NewProvider(cfg Config, logger *slog.Logger) (Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Source == SourceFile {
		return FileProvider{Path: cfg.Path}, nil
	}
	return NewNetlinkProvider(logger), nil
}
