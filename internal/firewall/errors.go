package firewall

import "fmt"

// ConfigError reports a configuration that cannot be turned into an
// unambiguous plan. Key names the offending option, bridge or rule title.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("firewall: config: %s: %s", e.Key, e.Reason)
}

func configErrorf(key, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)}
}
