package firewall

import (
	"log/slog"

	"github.com/plexsphere/dockerfw/internal/facts"
)

// AggregateBridges applies the bridge template to the default bridge and to
// every configured extra bridge, in that order. Each bridge is gated on its
// own facts. The default bridge always emits every rule category; extra
// bridges emit the MASQUERADE and FORWARD accept rules only when the
// matching table is managed.
func AggregateBridges(cfg Config, snap *facts.Snapshot, logger *slog.Logger) ([]RuleSpec, error) {
	if _, ok := cfg.Bridges[cfg.DefaultBridge]; ok {
		return nil, configErrorf(cfg.DefaultBridge, "bridge declared twice (it is the default bridge)")
	}

	var rules []RuleSpec
	plan := func(name string, gate BridgeGate) {
		bridgeRules := BridgeRules(snap, name, gate, cfg.ForwardMode)
		if len(bridgeRules) == 0 {
			logger.Debug("no facts for bridge, skipping its rules", "bridge", name)
			return
		}
		rules = append(rules, bridgeRules...)
	}

	plan(cfg.DefaultBridge, BridgeGate{Masquerade: true, Forward: true})

	extra := BridgeGate{Masquerade: cfg.ManageNatTable, Forward: cfg.ManageFilterTable}
	for _, name := range cfg.BridgeNames() {
		plan(name, extra)
	}
	return rules, nil
}
