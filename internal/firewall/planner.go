package firewall

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/plexsphere/dockerfw/internal/facts"
)

// Planner turns a fact snapshot into a Plan. A Planner holds only its
// immutable Config and may be reused across convergence cycles.
type Planner struct {
	cfg    Config
	logger *slog.Logger
}

// NewPlanner applies defaults to cfg, validates it and returns a Planner.
func NewPlanner(cfg Config, logger *slog.Logger) (*Planner, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Planner{
		cfg:    cfg,
		logger: logger.With("component", "firewall"),
	}, nil
}

// Config returns the effective configuration.
func (p *Planner) Config() Config {
	return p.cfg
}

// Plan computes the chains and rules for snap. It fails only with a
// *ConfigError; missing facts simply drop the affected bridge rules.
func (p *Planner) Plan(snap *facts.Snapshot) (*Plan, error) {
	chains, rules, err := PlanChains(p.cfg)
	if err != nil {
		return nil, err
	}
	bridgeRules, err := AggregateBridges(p.cfg, snap, p.logger)
	if err != nil {
		return nil, err
	}
	rules = append(rules, bridgeRules...)

	if err := checkUnique(rules); err != nil {
		return nil, err
	}
	plan := &Plan{Chains: chains, Rules: rules}
	sortPlan(plan)

	p.logger.Debug("planned firewall rules",
		"chains", len(plan.Chains),
		"rules", len(plan.Rules),
		"interfaces", snap.Len(),
	)
	return plan, nil
}

// checkUnique rejects two rules sharing a title in the same chain, since
// the applier could not tell them apart.
func checkUnique(rules []RuleSpec) error {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		key := fmt.Sprintf("%s/%s/%s", r.Table, r.Chain, r.Title())
		if seen[key] {
			return configErrorf(r.Title(), "duplicate rule in %s table, %s chain", r.Table, r.Chain)
		}
		seen[key] = true
	}
	return nil
}

// sortPlan orders chains by table and name, and rules stably by table,
// chain and priority so that insertion order breaks ties.
func sortPlan(plan *Plan) {
	sort.SliceStable(plan.Chains, func(i, j int) bool {
		a, b := plan.Chains[i], plan.Chains[j]
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		return a.Name < b.Name
	})
	sort.SliceStable(plan.Rules, func(i, j int) bool {
		a, b := plan.Rules[i], plan.Rules[j]
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		if a.Chain != b.Chain {
			return a.Chain < b.Chain
		}
		return a.Priority < b.Priority
	})
}

func sortTables(tables []Table) {
	sort.Slice(tables, func(i, j int) bool { return tables[i] < tables[j] })
}
