package iptables

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/plexsphere/dockerfw/internal/firewall"
)

// IPTables is the subset of *iptables.IPTables used by the Applier.
type IPTables interface {
	ChainExists(table, chain string) (bool, error)
	NewChain(table, chain string) error
	ClearChain(table, chain string) error
	DeleteChain(table, chain string) error
	ChangePolicy(table, chain, target string) error
	List(table, chain string) ([]string, error)
	Insert(table, chain string, pos int, rulespec ...string) error
	Append(table, chain string, rulespec ...string) error
	Delete(table, chain string, rulespec ...string) error
}

// Result counts the changes made by one Apply.
type Result struct {
	ChainsCreated int
	ChainsDeleted int
	PoliciesSet   int
	RulesInserted int
	RulesReplaced int
	RulesPurged   int
}

// Changed reports whether Apply modified the ruleset.
func (r Result) Changed() bool {
	return r != Result{}
}

// Applier converges the kernel ruleset towards a plan.
type Applier struct {
	ipt    IPTables
	cfg    Config
	logger *slog.Logger
}

// NewApplier returns an Applier backed by ipt. When cfg.DryRun is set the
// backend is wrapped so that mutations are logged and skipped.
func NewApplier(ipt IPTables, cfg Config, logger *slog.Logger) *Applier {
	cfg.ApplyDefaults()
	logger = logger.With("component", "iptables")
	if cfg.DryRun {
		ipt = newDryRun(ipt, logger)
	}
	return &Applier{ipt: ipt, cfg: cfg, logger: logger}
}

type chainKey struct {
	table firewall.Table
	name  string
}

// Apply makes the kernel match plan. Managed rules are recognised by their
// comment, which is the rule title. Apply stops at the first error; the
// changes made so far stay in place.
func (a *Applier) Apply(ctx context.Context, plan *firewall.Plan) (Result, error) {
	var res Result

	declared := make(map[chainKey]firewall.ChainSpec, len(plan.Chains))
	var order []chainKey
	for _, c := range plan.Chains {
		k := chainKey{c.Table, c.Name}
		declared[k] = c
		order = append(order, k)
	}
	for _, r := range plan.Rules {
		k := chainKey{r.Table, r.Chain}
		if _, ok := declared[k]; !ok {
			declared[k] = firewall.ChainSpec{Table: r.Table, Name: r.Chain, Ensure: firewall.EnsurePresent}
			order = append(order, k)
		}
	}

	// Create chains first so jumps to them can be inserted.
	for _, k := range order {
		c := declared[k]
		if c.Ensure == firewall.EnsureAbsent || IsBuiltin(c.Table, c.Name) {
			continue
		}
		exists, err := a.ipt.ChainExists(string(c.Table), c.Name)
		if err != nil {
			return res, fmt.Errorf("iptables: apply: chain %s/%s: %w", c.Table, c.Name, err)
		}
		if !exists {
			if err := a.ipt.NewChain(string(c.Table), c.Name); err != nil {
				return res, fmt.Errorf("iptables: apply: create chain %s/%s: %w", c.Table, c.Name, err)
			}
			res.ChainsCreated++
		}
	}

	for _, k := range order {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("iptables: apply: %w", err)
		}
		c := declared[k]
		if c.Ensure == firewall.EnsureAbsent {
			if err := a.removeChain(c, &res); err != nil {
				return res, err
			}
			continue
		}
		if err := a.syncChain(c, plan.RulesFor(c.Table, c.Name), &res); err != nil {
			return res, err
		}
	}

	if res.Changed() {
		a.logger.Info("firewall ruleset updated",
			"chains_created", res.ChainsCreated,
			"chains_deleted", res.ChainsDeleted,
			"policies_set", res.PoliciesSet,
			"rules_inserted", res.RulesInserted,
			"rules_replaced", res.RulesReplaced,
			"rules_purged", res.RulesPurged,
		)
	} else {
		a.logger.Debug("firewall ruleset up to date")
	}
	return res, nil
}

func (a *Applier) removeChain(c firewall.ChainSpec, res *Result) error {
	if IsBuiltin(c.Table, c.Name) {
		return fmt.Errorf("iptables: apply: cannot remove built-in chain %s/%s", c.Table, c.Name)
	}
	exists, err := a.ipt.ChainExists(string(c.Table), c.Name)
	if err != nil {
		return fmt.Errorf("iptables: apply: chain %s/%s: %w", c.Table, c.Name, err)
	}
	if !exists {
		return nil
	}
	if err := a.ipt.ClearChain(string(c.Table), c.Name); err != nil {
		return fmt.Errorf("iptables: apply: clear chain %s/%s: %w", c.Table, c.Name, err)
	}
	if err := a.ipt.DeleteChain(string(c.Table), c.Name); err != nil {
		return fmt.Errorf("iptables: apply: delete chain %s/%s: %w", c.Table, c.Name, err)
	}
	res.ChainsDeleted++
	return nil
}

// liveRule is one "-A" line of a chain listing.
type liveRule struct {
	line  string
	title string
}

func (a *Applier) syncChain(c firewall.ChainSpec, desired []firewall.RuleSpec, res *Result) error {
	table := string(c.Table)
	lines, err := a.ipt.List(table, c.Name)
	if err != nil {
		return fmt.Errorf("iptables: apply: list %s/%s: %w", c.Table, c.Name, err)
	}

	if c.Policy != "" && IsBuiltin(c.Table, c.Name) {
		want := strings.ToUpper(c.Policy)
		if current := chainPolicy(lines, c.Name); current != want {
			if err := a.ipt.ChangePolicy(table, c.Name, want); err != nil {
				return fmt.Errorf("iptables: apply: policy %s/%s: %w", c.Table, c.Name, err)
			}
			a.logger.Info("chain policy changed", "table", table, "chain", c.Name, "from", current, "to", want)
			res.PoliciesSet++
		}
	}

	var ignore []*regexp2.Regexp
	if c.Purge && c.Ignore != nil {
		ignore, err = compileIgnore(c.Ignore.Values())
		if err != nil {
			return fmt.Errorf("iptables: apply: %s/%s: %w", c.Table, c.Name, err)
		}
	}

	wantLine := make(map[string]string, len(desired))
	index := make(map[string]int, len(desired))
	for i, r := range desired {
		wantLine[r.Title()] = RuleLine(r)
		index[r.Title()] = i
	}

	var rules []liveRule
	for _, l := range lines {
		if strings.HasPrefix(l, "-A ") {
			rules = append(rules, liveRule{line: l, title: ruleComment(l)})
		}
	}

	// Pick the rules to delete, then delete them bottom-up so that the
	// remaining rule numbers stay valid.
	seen := make(map[string]bool)
	var drop []int
	replaced := make(map[string]bool)
	for i, r := range rules {
		want, managed := wantLine[r.title]
		switch {
		case managed && seen[r.title]:
			drop = append(drop, i)
			res.RulesPurged++
		case managed && !sameRule(r.line, want):
			drop = append(drop, i)
			if replaced[r.title] {
				res.RulesPurged++
			}
			replaced[r.title] = true
		case managed:
			seen[r.title] = true
		case c.Purge:
			keep, err := matchesAny(ignore, r.line)
			if err != nil {
				return fmt.Errorf("iptables: apply: %s/%s: %w", c.Table, c.Name, err)
			}
			if !keep {
				drop = append(drop, i)
				res.RulesPurged++
			}
		}
	}
	// A stale copy followed by a good one is a duplicate, not a replacement:
	// the insert loop skips the title.
	for title := range replaced {
		if seen[title] {
			res.RulesPurged++
		}
	}
	for j := len(drop) - 1; j >= 0; j-- {
		i := drop[j]
		if err := a.ipt.Delete(table, c.Name, strconv.Itoa(i+1)); err != nil {
			return fmt.Errorf("iptables: apply: delete %q: %w", rules[i].line, err)
		}
		a.logger.Debug("rule deleted", "table", table, "chain", c.Name, "rule", rules[i].line)
	}
	dropSet := make(map[int]bool, len(drop))
	for _, i := range drop {
		dropSet[i] = true
	}
	var kept []liveRule
	for i, r := range rules {
		if !dropSet[i] {
			kept = append(kept, r)
		}
	}

	for i, r := range desired {
		title := r.Title()
		if seen[title] {
			continue
		}
		pos := insertPosition(kept, index, i)
		args := RuleArgs(r)
		if pos < 0 {
			err = a.ipt.Append(table, c.Name, args...)
			pos = len(kept)
		} else {
			err = a.ipt.Insert(table, c.Name, pos+1, args...)
		}
		if err != nil {
			return fmt.Errorf("iptables: apply: insert %q: %w", title, err)
		}
		kept = append(kept, liveRule{})
		copy(kept[pos+1:], kept[pos:])
		kept[pos] = liveRule{line: RuleLine(r), title: title}
		seen[title] = true

		if replaced[title] {
			res.RulesReplaced++
			a.logger.Info("rule replaced", "table", table, "chain", c.Name, "rule", title)
		} else {
			res.RulesInserted++
			a.logger.Info("rule inserted", "table", table, "chain", c.Name, "rule", title)
		}
	}
	return nil
}

// insertPosition returns the 0-based slot in rules in front of the first
// managed rule that sorts after desired[i], or -1 to append.
func insertPosition(rules []liveRule, index map[string]int, i int) int {
	for pos, r := range rules {
		if j, ok := index[r.title]; ok && j > i {
			return pos
		}
	}
	return -1
}

// chainPolicy returns the policy from the "-P CHAIN POLICY" line, if any.
func chainPolicy(lines []string, chain string) string {
	prefix := "-P " + chain + " "
	for _, l := range lines {
		if rest, ok := strings.CutPrefix(l, prefix); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

var commentRe = regexp2.MustCompile(`--comment (?:"((?:[^"\\]|\\.)*)"|(\S+))`, regexp2.None)

// ruleComment extracts the --comment value from a listed rule.
func ruleComment(line string) string {
	m, err := commentRe.FindStringMatch(line)
	if err != nil || m == nil {
		return ""
	}
	if g := m.GroupByNumber(1); len(g.Captures) > 0 {
		return strings.ReplaceAll(g.String(), `\"`, `"`)
	}
	return m.GroupByNumber(2).String()
}

// sameRule compares two rule lines token by token, ignoring order, since
// iptables may print match options in a different order than they were given.
func sameRule(a, b string) bool {
	ta, tb := splitArgs(a), splitArgs(b)
	if len(ta) != len(tb) {
		return false
	}
	sort.Strings(ta)
	sort.Strings(tb)
	for i := range ta {
		if ta[i] != tb[i] {
			return false
		}
	}
	return true
}

// splitArgs splits a rule line on spaces, keeping double-quoted strings
// together.
func splitArgs(line string) []string {
	var out []string
	var cur strings.Builder
	inQuote, escaped, started := false, false, false
	for _, ch := range line {
		switch {
		case escaped:
			cur.WriteRune(ch)
			escaped = false
		case ch == '\\' && inQuote:
			escaped = true
		case ch == '"':
			inQuote = !inQuote
			started = true
		case ch == ' ' && !inQuote:
			if started {
				out = append(out, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(ch)
			started = true
		}
	}
	if started {
		out = append(out, cur.String())
	}
	return out
}

func compileIgnore(patterns []string) ([]*regexp2.Regexp, error) {
	out := make([]*regexp2.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp2.Compile(p, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("ignore pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAny(res []*regexp2.Regexp, line string) (bool, error) {
	for _, re := range res {
		ok, err := re.MatchString(line)
		if err != nil {
			return false, fmt.Errorf("ignore pattern %q: %w", re.String(), err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
