package firewall

import (
	"fmt"

	"github.com/plexsphere/dockerfw/internal/facts"
)

// masqueradePrefix is the prefix length of every MASQUERADE source,
// whatever the bridge netmask.
const masqueradePrefix = 16

// BridgeGate selects the optional rule categories emitted for a bridge.
type BridgeGate struct {
	Masquerade bool
	Forward    bool
}

// BridgeRules returns the rules for one bridge. It returns nil when the
// snapshot has no usable facts for the bridge.
func BridgeRules(snap *facts.Snapshot, name string, gate BridgeGate, mode ForwardMode) []RuleSpec {
	iface, ok := snap.Lookup(name)
	if !ok || iface.Network == "" {
		return nil
	}

	var rules []RuleSpec
	if gate.Masquerade {
		rules = append(rules, RuleSpec{
			Priority:    100,
			Description: fmt.Sprintf("DOCKER chain, MASQUERADE %s bridge traffic not bound to %s bridge", name, name),
			Table:       TableNat,
			Chain:       ChainPostrouting,
			Match: Match{
				Source:   masqueradeSource(iface),
				OutIface: "! " + name,
				Proto:    "all",
			},
			Jump: TargetMasquerade,
		})
	}
	if gate.Forward {
		rules = append(rules, forwardRules(name, mode)...)
	}
	rules = append(rules,
		RuleSpec{
			Priority:    102,
			Description: fmt.Sprintf("send FORWARD traffic for %s to DOCKER_INPUT chain", name),
			Table:       TableFilter,
			Chain:       ChainForward,
			Match:       Match{OutIface: name, Proto: "all"},
			Jump:        ChainDockerInput,
		},
		RuleSpec{
			Priority:    100,
			Description: fmt.Sprintf("accept traffic from %s DOCKER_INPUT chain", name),
			Table:       TableFilter,
			Chain:       ChainDockerInput,
			Match:       Match{InIface: name, Proto: "all"},
			Action:      ActionAccept,
		},
	)
	return rules
}

func forwardRules(name string, mode ForwardMode) []RuleSpec {
	toOthers := RuleSpec{
		Priority:    101,
		Description: fmt.Sprintf("accept %s traffic to other interfaces on FORWARD chain", name),
		Table:       TableFilter,
		Chain:       ChainForward,
		Match:       Match{InIface: name, OutIface: "! " + name, Proto: "all"},
		Action:      ActionAccept,
	}
	if mode != ForwardModeGeneralized {
		return []RuleSpec{toOthers}
	}
	return []RuleSpec{
		{
			Priority:    101,
			Description: fmt.Sprintf("accept related, established traffic returning to %s on FORWARD chain", name),
			Table:       TableFilter,
			Chain:       ChainForward,
			Match:       Match{OutIface: name, CTState: "RELATED,ESTABLISHED", Proto: "all"},
			Action:      ActionAccept,
		},
		{
			Priority:    101,
			Description: fmt.Sprintf("send FORWARD traffic for %s to DOCKER chain", name),
			Table:       TableFilter,
			Chain:       ChainForward,
			Match:       Match{OutIface: name, Proto: "all"},
			Jump:        ChainDocker,
		},
		toOthers,
		{
			Priority:    101,
			Description: fmt.Sprintf("accept %s traffic to %s on FORWARD chain", name, name),
			Table:       TableFilter,
			Chain:       ChainForward,
			Match:       Match{InIface: name, OutIface: name, Proto: "all"},
			Action:      ActionAccept,
		},
	}
}

// masqueradeSource returns the bridge network as a /16 source. The netmask
// is not consulted, so a bridge carved from a larger pool still masquerades
// the whole /16 it belongs to.
func masqueradeSource(iface facts.Interface) string {
	return fmt.Sprintf("%s/%d", iface.Network, masqueradePrefix)
}
