// Package firewall plans the iptables chains and rules that let container
// bridges coexist with a host firewall. Planning is pure: it consumes a
// facts.Snapshot and a Config and returns a deterministic Plan.
package firewall

import (
	"sort"
	"strings"
	"unicode"
)

const (
	// DefaultBridge is the bridge created by the container engine.
	DefaultBridge = "docker0"

	// DefaultForwardFilterPolicy is the default policy of the filter FORWARD chain.
	DefaultForwardFilterPolicy = "drop"
)

// ForwardMode selects how FORWARD accept rules are generated per bridge.
type ForwardMode string

const (
	// ForwardModeLegacy emits one "bridge to other interfaces" accept rule.
	ForwardModeLegacy ForwardMode = "legacy"
	// ForwardModeGeneralized emits the four-rule per-bridge variant.
	ForwardModeGeneralized ForwardMode = "generalized"
)

var validPolicies = map[string]bool{
	"accept": true,
	"drop":   true,
	"queue":  true,
	"return": true,
}

var portProtocols = map[string]bool{
	"tcp":  true,
	"udp":  true,
	"sctp": true,
}

// BridgeOptions holds per-bridge settings. Only the name, carried as the
// map key, is meaningful today.
type BridgeOptions struct{}

// Config holds the planner options.
type Config struct {
	// DefaultBridge is always planned, independent of table management.
	// Default: docker0
	DefaultBridge string `yaml:"default_bridge"`

	// ForwardMode is "legacy" or "generalized".
	// Default: legacy
	ForwardMode ForwardMode `yaml:"forward_mode"`

	ManageNatTable    bool `yaml:"manage_nat_table"`
	ManageFilterTable bool `yaml:"manage_filter_table"`

	PreroutingNatPurgeIgnore  StringList `yaml:"prerouting_nat_purge_ignore"`
	OutputNatPurgeIgnore      StringList `yaml:"output_nat_purge_ignore"`
	PostroutingNatPurgeIgnore StringList `yaml:"postrouting_nat_purge_ignore"`

	PreroutingNatPolicy  string `yaml:"prerouting_nat_policy"`
	OutputNatPolicy      string `yaml:"output_nat_policy"`
	PostroutingNatPolicy string `yaml:"postrouting_nat_policy"`

	ForwardFilterPurgeIgnore StringList `yaml:"forward_filter_purge_ignore"`

	// ForwardFilterPolicy is the filter FORWARD chain policy.
	// Default: drop
	ForwardFilterPolicy string `yaml:"forward_filter_policy"`

	AcceptEth0 bool `yaml:"accept_eth0"`
	AcceptEth1 bool `yaml:"accept_eth1"`

	// Bridges are planned in addition to DefaultBridge.
	Bridges map[string]BridgeOptions `yaml:"bridges"`

	// AcceptRules and DropRules map a rule description to its match
	// criteria. They land in DOCKER_INPUT.
	AcceptRules map[string]Match `yaml:"accept_rules"`
	DropRules   map[string]Match `yaml:"drop_rules"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.DefaultBridge == "" {
		c.DefaultBridge = DefaultBridge
	}
	if c.ForwardMode == "" {
		c.ForwardMode = ForwardModeLegacy
	}
	if c.ForwardFilterPolicy == "" {
		c.ForwardFilterPolicy = DefaultForwardFilterPolicy
	}
}

// Validate checks that the configuration can be planned. Every failure is
// a *ConfigError.
func (c *Config) Validate() error {
	if err := validateIfaceName("default_bridge", c.DefaultBridge); err != nil {
		return err
	}
	if c.ForwardMode != ForwardModeLegacy && c.ForwardMode != ForwardModeGeneralized {
		return configErrorf("forward_mode", "invalid mode %q (must be %q or %q)", c.ForwardMode, ForwardModeLegacy, ForwardModeGeneralized)
	}

	policies := []struct {
		key, value string
	}{
		{"prerouting_nat_policy", c.PreroutingNatPolicy},
		{"output_nat_policy", c.OutputNatPolicy},
		{"postrouting_nat_policy", c.PostroutingNatPolicy},
		{"forward_filter_policy", c.ForwardFilterPolicy},
	}
	for _, p := range policies {
		if p.value != "" && !validPolicies[strings.ToLower(p.value)] {
			return configErrorf(p.key, "invalid policy %q", p.value)
		}
	}

	for _, name := range c.BridgeNames() {
		if err := validateIfaceName("bridges", name); err != nil {
			return err
		}
	}
	if _, ok := c.Bridges[c.DefaultBridge]; ok {
		return configErrorf(c.DefaultBridge, "bridge declared twice (it is the default bridge)")
	}

	for _, desc := range sortedKeys(c.AcceptRules) {
		if strings.TrimSpace(desc) == "" {
			return configErrorf("accept_rules", "rule description must not be empty")
		}
		if _, ok := c.DropRules[desc]; ok {
			return configErrorf(desc, "rule declared in both accept_rules and drop_rules")
		}
		if err := c.AcceptRules[desc].validate(desc); err != nil {
			return err
		}
	}
	for _, desc := range sortedKeys(c.DropRules) {
		if strings.TrimSpace(desc) == "" {
			return configErrorf("drop_rules", "rule description must not be empty")
		}
		if err := c.DropRules[desc].validate(desc); err != nil {
			return err
		}
	}
	return nil
}

// BridgeNames returns the extra bridge names in sorted order.
func (c *Config) BridgeNames() []string {
	return sortedKeys(c.Bridges)
}

// validate checks user supplied match criteria.
func (m Match) validate(key string) error {
	if (m.DPort != "" || m.SPort != "") && !portProtocols[strings.ToLower(m.Proto)] {
		return configErrorf(key, "port match requires proto tcp, udp or sctp, got %q", m.Proto)
	}
	return nil
}

func validateIfaceName(key, name string) error {
	if name == "" {
		return configErrorf(key, "interface name must not be empty")
	}
	for _, r := range name {
		if unicode.IsSpace(r) || r == '/' || r == '!' {
			return configErrorf(key, "invalid interface name %q", name)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
