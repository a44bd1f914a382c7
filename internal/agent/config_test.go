package agent

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/plexsphere/dockerfw/internal/facts"
	"github.com/plexsphere/dockerfw/internal/firewall"
	"github.com/plexsphere/dockerfw/internal/iptables"
	"github.com/plexsphere/dockerfw/internal/metrics"
	"github.com/plexsphere/dockerfw/internal/reconcile"
)

func TestAgentConfig_ApplyDefaults(t *testing.T) {
	var cfg AgentConfig
	cfg.ApplyDefaults()

	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
	if cfg.Facts.Source != facts.DefaultSource {
		t.Errorf("Facts.Source = %q, want %q", cfg.Facts.Source, facts.DefaultSource)
	}
	if cfg.Firewall.DefaultBridge != firewall.DefaultBridge {
		t.Errorf("Firewall.DefaultBridge = %q, want %q", cfg.Firewall.DefaultBridge, firewall.DefaultBridge)
	}
	if cfg.IPTables.LockTimeout != iptables.DefaultLockTimeout {
		t.Errorf("IPTables.LockTimeout = %d, want %d", cfg.IPTables.LockTimeout, iptables.DefaultLockTimeout)
	}
	if cfg.Reconcile.Interval != reconcile.DefaultInterval {
		t.Errorf("Reconcile.Interval = %v, want %v", cfg.Reconcile.Interval, reconcile.DefaultInterval)
	}
	if cfg.Metrics.Enabled() {
		t.Error("Metrics enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestAgentConfig_Validate_InvalidLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestParseConfig_ValidYAML(t *testing.T) {
	yaml := `
log_level: debug
facts:
  source: file
  path: /etc/dockerfw/facts.json
firewall:
  manage_nat_table: true
  manage_filter_table: true
  forward_mode: generalized
  forward_filter_purge_ignore: '-j DOCKER-USER'
  postrouting_nat_purge_ignore:
    - '-j LIBVIRT_PRT'
  bridges:
    br-1234: {}
  accept_rules:
    web:
      proto: tcp
      dport: "80,443"
iptables:
  dry_run: true
reconcile:
  interval: 30s
metrics:
  listen: 127.0.0.1:9469
`
	path := writeTemp(t, yaml)
	cfg, err := ParseConfig(path)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.Facts.Source != facts.SourceFile || cfg.Facts.Path != "/etc/dockerfw/facts.json" {
		t.Errorf("Facts = %+v, want file source", cfg.Facts)
	}
	fw := cfg.Firewall
	if !fw.ManageNatTable || !fw.ManageFilterTable {
		t.Error("table management not enabled")
	}
	if fw.ForwardMode != firewall.ForwardModeGeneralized {
		t.Errorf("ForwardMode = %q, want %q", fw.ForwardMode, firewall.ForwardModeGeneralized)
	}
	if !fw.ForwardFilterPurgeIgnore.IsScalar() {
		t.Error("ForwardFilterPurgeIgnore is not scalar")
	}
	if fw.PostroutingNatPurgeIgnore.IsScalar() || fw.PostroutingNatPurgeIgnore.Len() != 1 {
		t.Errorf("PostroutingNatPurgeIgnore = %v, want one-element list", fw.PostroutingNatPurgeIgnore.Values())
	}
	if _, ok := fw.Bridges["br-1234"]; !ok {
		t.Error("bridge br-1234 missing")
	}
	if m := fw.AcceptRules["web"]; m.Proto != "tcp" || m.DPort != "80,443" {
		t.Errorf("AcceptRules[web] = %+v, want tcp 80,443", m)
	}
	if !cfg.IPTables.DryRun {
		t.Error("IPTables.DryRun = false, want true")
	}
	if cfg.Reconcile.Interval != 30*time.Second {
		t.Errorf("Reconcile.Interval = %v, want 30s", cfg.Reconcile.Interval)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9469" || cfg.Metrics.Path != metrics.DefaultPath {
		t.Errorf("Metrics = %+v, want listen 127.0.0.1:9469 on %s", cfg.Metrics, metrics.DefaultPath)
	}
}

func TestParseConfig_InvalidMetricsListen(t *testing.T) {
	path := writeTemp(t, "metrics:\n  listen: nowhere\n")
	if _, err := ParseConfig(path); err == nil {
		t.Fatal("expected error for metrics listen address without port")
	}
}

func TestParseConfig_FirewallConfigError(t *testing.T) {
	yaml := `
firewall:
  accept_rules:
    web: {proto: tcp, dport: "80"}
  drop_rules:
    web: {source: 192.0.2.1}
`
	path := writeTemp(t, yaml)
	_, err := ParseConfig(path)
	var cfgErr *firewall.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("ParseConfig() error = %v, want *firewall.ConfigError", err)
	}
	if cfgErr.Key != "web" {
		t.Errorf("ConfigError.Key = %q, want %q", cfgErr.Key, "web")
	}
}

func TestParseConfig_FileSourceWithoutPath(t *testing.T) {
	path := writeTemp(t, "facts:\n  source: file\n")
	if _, err := ParseConfig(path); err == nil {
		t.Fatal("expected error for file source without path")
	}
}

func TestParseConfig_DefaultValues(t *testing.T) {
	path := writeTemp(t, "firewall:\n  accept_eth0: true\n")
	cfg, err := ParseConfig(path)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
	if cfg.Firewall.ForwardFilterPolicy != firewall.DefaultForwardFilterPolicy {
		t.Errorf("ForwardFilterPolicy = %q, want %q", cfg.Firewall.ForwardFilterPolicy, firewall.DefaultForwardFilterPolicy)
	}
	if !cfg.Firewall.AcceptEth0 {
		t.Error("AcceptEth0 = false, want true")
	}
}

func TestParseConfig_FileNotFound(t *testing.T) {
	_, err := ParseConfig("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for non-existent file")
	}
}

func TestParseConfig_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	_, err := ParseConfig(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

// writeTemp writes content to a temporary YAML file and returns its path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
