package reconcile

import (
	"fmt"
	"slices"
	"sort"

	"github.com/plexsphere/dockerfw/internal/firewall"
)

// PlanDiff describes how a newly computed plan differs from the last one
// that was applied. Entries are "table/chain" for chains and
// "table/chain/title" for rules.
type PlanDiff struct {
	ChainsAdded   []string
	ChainsRemoved []string
	ChainsChanged []string

	RulesAdded   []string
	RulesRemoved []string
	RulesChanged []string
}

// IsEmpty reports whether the plans are equivalent.
func (d PlanDiff) IsEmpty() bool {
	return len(d.ChainsAdded) == 0 &&
		len(d.ChainsRemoved) == 0 &&
		len(d.ChainsChanged) == 0 &&
		len(d.RulesAdded) == 0 &&
		len(d.RulesRemoved) == 0 &&
		len(d.RulesChanged) == 0
}

// ComputeDiff compares desired against current. A nil current is treated
// as an empty plan.
func ComputeDiff(desired, current *firewall.Plan) PlanDiff {
	var diff PlanDiff
	if desired == nil {
		return diff
	}
	cur := current
	if cur == nil {
		cur = &firewall.Plan{}
	}

	diffChains(desired.Chains, cur.Chains, &diff)
	diffRules(desired.Rules, cur.Rules, &diff)
	return diff
}

func diffChains(desired, current []firewall.ChainSpec, diff *PlanDiff) {
	currentByKey := make(map[string]firewall.ChainSpec, len(current))
	for _, c := range current {
		currentByKey[chainKey(c.Table, c.Name)] = c
	}

	desiredKeys := make(map[string]struct{}, len(desired))
	for _, dc := range desired {
		key := chainKey(dc.Table, dc.Name)
		desiredKeys[key] = struct{}{}
		cc, exists := currentByKey[key]
		if !exists {
			diff.ChainsAdded = append(diff.ChainsAdded, key)
			continue
		}
		if chainChanged(dc, cc) {
			diff.ChainsChanged = append(diff.ChainsChanged, key)
		}
	}

	for _, key := range sortedKeys(currentByKey) {
		if _, ok := desiredKeys[key]; !ok {
			diff.ChainsRemoved = append(diff.ChainsRemoved, key)
		}
	}
}

func diffRules(desired, current []firewall.RuleSpec, diff *PlanDiff) {
	currentByKey := make(map[string]firewall.RuleSpec, len(current))
	for _, r := range current {
		currentByKey[ruleKey(r)] = r
	}

	desiredKeys := make(map[string]struct{}, len(desired))
	for _, dr := range desired {
		key := ruleKey(dr)
		desiredKeys[key] = struct{}{}
		cr, exists := currentByKey[key]
		if !exists {
			diff.RulesAdded = append(diff.RulesAdded, key)
			continue
		}
		if dr != cr {
			diff.RulesChanged = append(diff.RulesChanged, key)
		}
	}

	for _, key := range sortedKeys(currentByKey) {
		if _, ok := desiredKeys[key]; !ok {
			diff.RulesRemoved = append(diff.RulesRemoved, key)
		}
	}
}

func chainChanged(a, b firewall.ChainSpec) bool {
	if a.Ensure != b.Ensure || a.Purge != b.Purge || a.Policy != b.Policy {
		return true
	}
	return !sameIgnore(a.Ignore, b.Ignore)
}

func sameIgnore(a, b *firewall.StringList) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IsScalar() == b.IsScalar() && slices.Equal(a.Values(), b.Values())
}

func chainKey(table firewall.Table, name string) string {
	return fmt.Sprintf("%s/%s", table, name)
}

func ruleKey(r firewall.RuleSpec) string {
	return fmt.Sprintf("%s/%s/%s", r.Table, r.Chain, r.Title())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
