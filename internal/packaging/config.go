// Package packaging installs dockerfw as a systemd service on a container host.
package packaging

import (
	"errors"
)

// InstallConfig holds the paths used to install dockerfw as a systemd
// service. It is passed as a constructor argument.
type InstallConfig struct {
	// BinaryPath is where the dockerfw binary is installed.
	// Default: /usr/local/bin/dockerfw
	BinaryPath string

	// ConfigDir holds config.yaml.
	// Default: /etc/dockerfw
	ConfigDir string

	// UnitFilePath is the path of the systemd unit file.
	// Default: /etc/systemd/system/dockerfw.service
	UnitFilePath string

	// ServiceName is the systemd service name.
	// Default: dockerfw
	ServiceName string

	// Interval, if set, is passed to "dockerfw run --interval".
	Interval string

	// Enable enables the service at boot after installing it.
	Enable bool
}

const (
	DefaultBinaryPath   = "/usr/local/bin/dockerfw"
	DefaultConfigDir    = "/etc/dockerfw"
	DefaultServiceName  = "dockerfw"
	DefaultUnitFilePath = "/etc/systemd/system/dockerfw.service"
)

// ApplyDefaults sets default values for zero-valued fields.
func (c *InstallConfig) ApplyDefaults() {
	if c.BinaryPath == "" {
		c.BinaryPath = DefaultBinaryPath
	}
	if c.ConfigDir == "" {
		c.ConfigDir = DefaultConfigDir
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.UnitFilePath == "" {
		c.UnitFilePath = DefaultUnitFilePath
	}
}

// Validate checks that required fields are set.
func (c *InstallConfig) Validate() error {
	if c.BinaryPath == "" {
		return errors.New("packaging: config: BinaryPath is required")
	}
	if c.ConfigDir == "" {
		return errors.New("packaging: config: ConfigDir is required")
	}
	if c.ServiceName == "" {
		return errors.New("packaging: config: ServiceName is required")
	}
	if c.UnitFilePath == "" {
		return errors.New("packaging: config: UnitFilePath is required")
	}
	return nil
}
