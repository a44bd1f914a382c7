package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plexsphere/dockerfw/internal/agent"
	"github.com/plexsphere/dockerfw/internal/facts"
	"github.com/plexsphere/dockerfw/internal/firewall"
	"github.com/plexsphere/dockerfw/internal/iptables"
	"github.com/plexsphere/dockerfw/internal/reconcile"
)

// newApplier builds the live applier. Tests replace it.
var newApplier = func(cfg iptables.Config, logger *slog.Logger) (reconcile.Applier, error) {
	a, err := iptables.NewKernelApplier(cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// loadConfig reads the config file and applies flag overrides. A missing
// file at the default path yields the defaults; a path given with --config
// must exist.
func loadConfig(cmd *cobra.Command) (*agent.AgentConfig, error) {
	cfg, err := agent.ParseConfig(cfgFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
			return nil, err
		}
		cfg = agent.DefaultConfig()
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if factsFile != "" {
		cfg.Facts.Source = facts.SourceFile
		cfg.Facts.Path = factsFile
	}
	return cfg, nil
}

// newFactProvider returns the configured provider, with --fact values
// layered on top. With --fact alone and no facts file, only the given
// facts are used.
func newFactProvider(cfg *agent.AgentConfig, logger *slog.Logger) (facts.Provider, error) {
	overrides, err := parseFactArgs(factArgs)
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 && cfg.Facts.Source != facts.SourceFile {
		return facts.StaticProvider{Facts: overrides}, nil
	}
	base, err := facts.NewProvider(cfg.Facts, logger)
	if err != nil {
		return nil, err
	}
	if len(overrides) == 0 {
		return base, nil
	}
	return overlayProvider{base: base, overrides: overrides}, nil
}

func parseFactArgs(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --fact %q (want key=value)", arg)
		}
		out[key] = value
	}
	return out, nil
}

// overlayProvider replaces individual facts of another provider.
type overlayProvider struct {
	base      facts.Provider
	overrides map[string]string
}

func (p overlayProvider) Snapshot(ctx context.Context) (*facts.Snapshot, error) {
	snap, err := p.base.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	flat := snap.Flat()
	for k, v := range p.overrides {
		flat[k] = v
	}
	return facts.FromFlat(flat)
}

// computePlan gathers facts once and plans them.
func computePlan(ctx context.Context, cfg *agent.AgentConfig, logger *slog.Logger) (*firewall.Plan, error) {
	provider, err := newFactProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	planner, err := firewall.NewPlanner(cfg.Firewall, logger)
	if err != nil {
		return nil, err
	}
	snap, err := provider.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return planner.Plan(snap)
}

// newReconciler wires facts, planner and live applier together.
func newReconciler(cfg *agent.AgentConfig, logger *slog.Logger) (*reconcile.Reconciler, facts.Provider, error) {
	provider, err := newFactProvider(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	planner, err := firewall.NewPlanner(cfg.Firewall, logger)
	if err != nil {
		return nil, nil, err
	}
	applier, err := newApplier(cfg.IPTables, logger)
	if err != nil {
		return nil, nil, err
	}
	return reconcile.NewReconciler(provider, planner, applier, cfg.Reconcile, logger), provider, nil
}
