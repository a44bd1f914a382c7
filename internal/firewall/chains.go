package firewall

import (
	"fmt"
	"strings"
)

// MasqueradeIgnorePattern protects the hairpin MASQUERADE rules the
// container engine adds for published ports, where source and destination
// are the same container address.
const MasqueradeIgnorePattern = `-s (\d{1,3}(?:\.\d{1,3}){3})/32 -d \1/32 .*-j MASQUERADE`

// Priority bands inside DOCKER_INPUT.
const (
	priorityStructural  = 100
	priorityCustom      = 200
	priorityDefaultDrop = 999
)

// PlanChains returns the chains and the bridge-independent rules derived
// from cfg alone.
func PlanChains(cfg Config) ([]ChainSpec, []RuleSpec, error) {
	var chains []ChainSpec
	var rules []RuleSpec

	if cfg.ManageNatTable {
		chains = append(chains,
			purgeChain(TableNat, ChainPrerouting, cfg.PreroutingNatPurgeIgnore, cfg.PreroutingNatPolicy),
			purgeChain(TableNat, ChainOutput, cfg.OutputNatPurgeIgnore, cfg.OutputNatPolicy),
			purgeChain(TableNat, ChainPostrouting, cfg.PostroutingNatPurgeIgnore.Prepend(MasqueradeIgnorePattern), cfg.PostroutingNatPolicy),
			keepChain(TableNat, ChainDocker),
		)
		rules = append(rules,
			RuleSpec{
				Priority:    100,
				Description: "DOCKER table PREROUTING LOCAL traffic",
				Table:       TableNat,
				Chain:       ChainPrerouting,
				Match:       Match{DstType: "LOCAL", Proto: "all"},
				Jump:        ChainDocker,
			},
			RuleSpec{
				Priority:    100,
				Description: "DOCKER chain, route LOCAL non-loopback traffic to DOCKER",
				Table:       TableNat,
				Chain:       ChainOutput,
				Match:       Match{Destination: "! 127.0.0.0/8", DstType: "LOCAL", Proto: "all"},
				Jump:        ChainDocker,
			},
		)
	}

	if cfg.ManageFilterTable {
		chains = append(chains,
			purgeChain(TableFilter, ChainForward, cfg.ForwardFilterPurgeIgnore, cfg.ForwardFilterPolicy),
			keepChain(TableFilter, ChainDockerIsolation),
		)
		rules = append(rules, RuleSpec{
			Priority:    100,
			Description: "send FORWARD traffic to DOCKER-ISOLATION chain",
			Table:       TableFilter,
			Chain:       ChainForward,
			Match:       Match{Proto: "all"},
			Jump:        ChainDockerIsolation,
		})
	}

	chains = append(chains,
		keepChain(TableFilter, ChainDocker),
		purgeChain(TableFilter, ChainDockerInput, List(), ""),
	)
	rules = append(rules,
		dockerInputRule(priorityStructural, "accept related, established traffic in DOCKER_INPUT chain",
			Match{CTState: "RELATED,ESTABLISHED", Proto: "all"}, ActionAccept),
		dockerInputRule(priorityDefaultDrop, "drop traffic in DOCKER_INPUT chain",
			Match{Proto: "all"}, ActionDrop),
	)

	custom, err := customRules(cfg)
	if err != nil {
		return nil, nil, err
	}
	rules = append(rules, custom...)
	return chains, rules, nil
}

// customRules returns the priority-200 DOCKER_INPUT rules: the fixed
// eth0/eth1 accepts, then accept_rules, then drop_rules, each sorted by
// description.
func customRules(cfg Config) ([]RuleSpec, error) {
	var rules []RuleSpec
	for _, eth := range []struct {
		name    string
		enabled bool
	}{
		{"eth0", cfg.AcceptEth0},
		{"eth1", cfg.AcceptEth1},
	} {
		if !eth.enabled {
			continue
		}
		rules = append(rules, dockerInputRule(priorityCustom, fmt.Sprintf("accept %s traffic to DOCKER chain", eth.name),
			Match{InIface: eth.name, Proto: "all"}, ""))
	}

	for _, desc := range sortedKeys(cfg.AcceptRules) {
		if _, ok := cfg.DropRules[desc]; ok {
			return nil, configErrorf(desc, "rule declared in both accept_rules and drop_rules")
		}
		rules = append(rules, dockerInputRule(priorityCustom, desc, cfg.AcceptRules[desc], ""))
	}
	for _, desc := range sortedKeys(cfg.DropRules) {
		rules = append(rules, dockerInputRule(priorityCustom, desc, cfg.DropRules[desc], ActionDrop))
	}
	return rules, nil
}

// dockerInputRule builds a DOCKER_INPUT rule. An empty action means the
// traffic is accepted by handing it to the DOCKER chain.
func dockerInputRule(priority int, desc string, m Match, action Action) RuleSpec {
	r := RuleSpec{
		Priority:    priority,
		Description: desc,
		Table:       TableFilter,
		Chain:       ChainDockerInput,
		Match:       m,
		Action:      action,
	}
	if action == "" {
		r.Jump = ChainDocker
	}
	return r
}

func purgeChain(table Table, name string, ignore StringList, policy string) ChainSpec {
	return ChainSpec{
		Table:  table,
		Name:   name,
		Ensure: EnsurePresent,
		Purge:  true,
		Ignore: ignore.Ptr(),
		Policy: strings.ToLower(policy),
	}
}

func keepChain(table Table, name string) ChainSpec {
	return ChainSpec{
		Table:  table,
		Name:   name,
		Ensure: EnsurePresent,
	}
}
