package iptables

import (
	"log/slog"
	"strings"
)

// dryRun reads from the wrapped backend and logs mutations instead of
// performing them. Chains it pretends to create read back as empty.
type dryRun struct {
	ipt     IPTables
	logger  *slog.Logger
	created map[string]bool
}

func newDryRun(ipt IPTables, logger *slog.Logger) *dryRun {
	return &dryRun{
		ipt:     ipt,
		logger:  logger.With("dry_run", true),
		created: make(map[string]bool),
	}
}

func (d *dryRun) ChainExists(table, chain string) (bool, error) {
	if d.created[table+"/"+chain] {
		return true, nil
	}
	return d.ipt.ChainExists(table, chain)
}

func (d *dryRun) NewChain(table, chain string) error {
	d.created[table+"/"+chain] = true
	d.logger.Info("would create chain", "table", table, "chain", chain)
	return nil
}

func (d *dryRun) ClearChain(table, chain string) error {
	d.logger.Info("would flush chain", "table", table, "chain", chain)
	return nil
}

func (d *dryRun) DeleteChain(table, chain string) error {
	d.logger.Info("would delete chain", "table", table, "chain", chain)
	return nil
}

func (d *dryRun) ChangePolicy(table, chain, target string) error {
	d.logger.Info("would set policy", "table", table, "chain", chain, "policy", target)
	return nil
}

func (d *dryRun) List(table, chain string) ([]string, error) {
	if d.created[table+"/"+chain] {
		return []string{"-N " + chain}, nil
	}
	return d.ipt.List(table, chain)
}

func (d *dryRun) Insert(table, chain string, pos int, rulespec ...string) error {
	d.logger.Info("would insert rule", "table", table, "chain", chain, "position", pos, "rule", strings.Join(rulespec, " "))
	return nil
}

func (d *dryRun) Append(table, chain string, rulespec ...string) error {
	d.logger.Info("would append rule", "table", table, "chain", chain, "rule", strings.Join(rulespec, " "))
	return nil
}

func (d *dryRun) Delete(table, chain string, rulespec ...string) error {
	d.logger.Info("would delete rule", "table", table, "chain", chain, "rule", strings.Join(rulespec, " "))
	return nil
}
