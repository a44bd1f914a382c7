package firewall

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Table is an iptables table name.
type Table string

// Tables managed by the planner.
const (
	TableNat    Table = "nat"
	TableFilter Table = "filter"
)

// Chain and target names.
const (
	ChainPrerouting      = "PREROUTING"
	ChainOutput          = "OUTPUT"
	ChainPostrouting     = "POSTROUTING"
	ChainForward         = "FORWARD"
	ChainDocker          = "DOCKER"
	ChainDockerInput     = "DOCKER_INPUT"
	ChainDockerIsolation = "DOCKER-ISOLATION"

	TargetMasquerade = "MASQUERADE"
)

// Ensure is the desired existence state of a chain.
type Ensure string

const (
	EnsurePresent Ensure = "present"
	EnsureAbsent  Ensure = "absent"
)

// Action is a terminal rule verdict. Rules that jump to another chain leave
// Action empty and set RuleSpec.Jump instead.
type Action string

const (
	ActionAccept Action = "accept"
	ActionDrop   Action = "drop"
)

// Match holds the packet match criteria of a rule. Negation is written in
// the value itself, e.g. OutIface "! docker0".
type Match struct {
	Proto       string `json:"proto,omitempty" yaml:"proto,omitempty"`
	Source      string `json:"source,omitempty" yaml:"source,omitempty"`
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`
	InIface     string `json:"iniface,omitempty" yaml:"iniface,omitempty"`
	OutIface    string `json:"outiface,omitempty" yaml:"outiface,omitempty"`
	SrcType     string `json:"src_type,omitempty" yaml:"src_type,omitempty"`
	DstType     string `json:"dst_type,omitempty" yaml:"dst_type,omitempty"`
	CTState     string `json:"ctstate,omitempty" yaml:"ctstate,omitempty"`
	SPort       string `json:"sport,omitempty" yaml:"sport,omitempty"`
	DPort       string `json:"dport,omitempty" yaml:"dport,omitempty"`
}

// RuleSpec is a single declared firewall rule. Its identity is Title, which
// must be unique within a table and chain.
type RuleSpec struct {
	Priority    int    `json:"priority" yaml:"priority"`
	Description string `json:"description" yaml:"description"`
	Table       Table  `json:"table" yaml:"table"`
	Chain       string `json:"chain" yaml:"chain"`
	Match       `yaml:",inline"`
	Action      Action `json:"action,omitempty" yaml:"action,omitempty"`
	Jump        string `json:"jump,omitempty" yaml:"jump,omitempty"`
}

// Title returns the rule identity, "<priority> <description>". It doubles
// as the iptables comment used to recognise managed rules.
func (r RuleSpec) Title() string {
	return fmt.Sprintf("%d %s", r.Priority, r.Description)
}

// ChainSpec declares a chain and how it is reconciled.
type ChainSpec struct {
	Table  Table       `json:"table" yaml:"table"`
	Name   string      `json:"name" yaml:"name"`
	Ensure Ensure      `json:"ensure" yaml:"ensure"`
	Purge  bool        `json:"purge" yaml:"purge"`
	Ignore *StringList `json:"ignore,omitempty" yaml:"ignore,omitempty"`
	Policy string      `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// Plan is the complete, ordered set of chains and rules for one host.
type Plan struct {
	Chains []ChainSpec `json:"chains" yaml:"chains"`
	Rules  []RuleSpec  `json:"rules" yaml:"rules"`
}

// Chain returns the declared chain with the given table and name.
func (p *Plan) Chain(table Table, name string) (ChainSpec, bool) {
	for _, c := range p.Chains {
		if c.Table == table && c.Name == name {
			return c, true
		}
	}
	return ChainSpec{}, false
}

// RulesFor returns the rules of one chain in plan order.
func (p *Plan) RulesFor(table Table, chain string) []RuleSpec {
	var out []RuleSpec
	for _, r := range p.Rules {
		if r.Table == table && r.Chain == chain {
			out = append(out, r)
		}
	}
	return out
}

// Rule returns the rule with the given title in any table or chain.
func (p *Plan) Rule(title string) (RuleSpec, bool) {
	for _, r := range p.Rules {
		if r.Title() == title {
			return r, true
		}
	}
	return RuleSpec{}, false
}

// Tables returns the tables referenced by chains or rules, in plan order.
func (p *Plan) Tables() []Table {
	seen := make(map[Table]bool)
	var out []Table
	add := func(t Table) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, c := range p.Chains {
		add(c.Table)
	}
	for _, r := range p.Rules {
		add(r.Table)
	}
	sortTables(out)
	return out
}

// MarshalIndent returns the canonical JSON encoding of the plan.
func (p *Plan) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Digest returns a hex sha256 of the canonical JSON encoding. Two plans
// with the same digest are byte-identical.
func (p *Plan) Digest() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("firewall: digest: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
