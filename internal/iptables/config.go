package iptables

import "errors"

// DefaultLockTimeout is the default xtables lock wait, in seconds.
const DefaultLockTimeout = 5

// Config holds the configuration for applying plans to the kernel.
type Config struct {
	// DryRun logs every change instead of making it.
	DryRun bool `yaml:"dry_run"`

	// LockTimeout is how long iptables waits for the xtables lock, in seconds.
	// Default: 5
	LockTimeout int `yaml:"lock_timeout"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.LockTimeout == 0 {
		c.LockTimeout = DefaultLockTimeout
	}
}

// Validate checks that configuration values are acceptable.
func (c *Config) Validate() error {
	if c.LockTimeout < 0 {
		return errors.New("iptables: config: LockTimeout must not be negative")
	}
	return nil
}
