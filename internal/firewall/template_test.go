package firewall

import (
	"strings"
	"testing"

	"github.com/plexsphere/dockerfw/internal/facts"
)

func bridgeIface(name, network string) facts.Interface {
	return facts.Interface{
		Name:       name,
		IPAddress:  "172.17.0.1",
		Network:    network,
		Netmask:    "255.255.0.0",
		MACAddress: "02:42:41:0b:31:b8",
		MTU:        1500,
	}
}

func titles(rules []RuleSpec) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Title()
	}
	return out
}

func TestBridgeRules_AllCategories(t *testing.T) {
	snap := facts.NewSnapshot(bridgeIface("docker0", "172.17.0.0"))
	rules := BridgeRules(snap, "docker0", BridgeGate{Masquerade: true, Forward: true}, ForwardModeLegacy)

	want := []RuleSpec{
		{
			Priority:    100,
			Description: "DOCKER chain, MASQUERADE docker0 bridge traffic not bound to docker0 bridge",
			Table:       TableNat,
			Chain:       ChainPostrouting,
			Match:       Match{Source: "172.17.0.0/16", OutIface: "! docker0", Proto: "all"},
			Jump:        TargetMasquerade,
		},
		{
			Priority:    101,
			Description: "accept docker0 traffic to other interfaces on FORWARD chain",
			Table:       TableFilter,
			Chain:       ChainForward,
			Match:       Match{InIface: "docker0", OutIface: "! docker0", Proto: "all"},
			Action:      ActionAccept,
		},
		{
			Priority:    102,
			Description: "send FORWARD traffic for docker0 to DOCKER_INPUT chain",
			Table:       TableFilter,
			Chain:       ChainForward,
			Match:       Match{OutIface: "docker0", Proto: "all"},
			Jump:        ChainDockerInput,
		},
		{
			Priority:    100,
			Description: "accept traffic from docker0 DOCKER_INPUT chain",
			Table:       TableFilter,
			Chain:       ChainDockerInput,
			Match:       Match{InIface: "docker0", Proto: "all"},
			Action:      ActionAccept,
		},
	}
	if len(rules) != len(want) {
		t.Fatalf("BridgeRules() returned %d rules %v, want %d", len(rules), titles(rules), len(want))
	}
	for i := range want {
		if rules[i] != want[i] {
			t.Errorf("rule %d = %+v, want %+v", i, rules[i], want[i])
		}
	}
}

func TestBridgeRules_CustomBridge(t *testing.T) {
	snap := facts.NewSnapshot(bridgeIface("br-d108dbddb4c8", "172.18.0.0"))
	rules := BridgeRules(snap, "br-d108dbddb4c8", BridgeGate{Masquerade: true, Forward: true}, ForwardModeLegacy)
	if len(rules) != 4 {
		t.Fatalf("BridgeRules() returned %d rules, want 4", len(rules))
	}
	if rules[0].Source != "172.18.0.0/16" {
		t.Errorf("MASQUERADE source = %q, want %q", rules[0].Source, "172.18.0.0/16")
	}
	if rules[0].OutIface != "! br-d108dbddb4c8" {
		t.Errorf("MASQUERADE outiface = %q, want %q", rules[0].OutIface, "! br-d108dbddb4c8")
	}
	for _, r := range rules {
		if !strings.Contains(r.Description, "br-d108dbddb4c8") {
			t.Errorf("rule %q does not name the bridge", r.Title())
		}
	}
}

func TestBridgeRules_AbsentFacts(t *testing.T) {
	snap := facts.NewSnapshot(bridgeIface("docker0", "172.17.0.0"))
	if rules := BridgeRules(snap, "mybridge", BridgeGate{Masquerade: true, Forward: true}, ForwardModeGeneralized); rules != nil {
		t.Errorf("BridgeRules() = %v, want nil for absent interface", titles(rules))
	}
}

func TestBridgeRules_NilSnapshot(t *testing.T) {
	if rules := BridgeRules(nil, "docker0", BridgeGate{Masquerade: true, Forward: true}, ForwardModeLegacy); rules != nil {
		t.Errorf("BridgeRules(nil) = %v, want nil", titles(rules))
	}
}

func TestBridgeRules_ListedWithoutNetwork(t *testing.T) {
	snap := facts.NewSnapshot(facts.Interface{Name: "docker0", MTU: 1500})
	if rules := BridgeRules(snap, "docker0", BridgeGate{Masquerade: true, Forward: true}, ForwardModeLegacy); rules != nil {
		t.Errorf("BridgeRules() = %v, want nil when network is unknown", titles(rules))
	}
}

func TestBridgeRules_GatedCategories(t *testing.T) {
	snap := facts.NewSnapshot(bridgeIface("mybridge", "172.18.0.0"))

	tests := []struct {
		name string
		gate BridgeGate
		want []string
	}{
		{
			name: "defaults",
			gate: BridgeGate{},
			want: []string{
				"102 send FORWARD traffic for mybridge to DOCKER_INPUT chain",
				"100 accept traffic from mybridge DOCKER_INPUT chain",
			},
		},
		{
			name: "nat managed",
			gate: BridgeGate{Masquerade: true},
			want: []string{
				"100 DOCKER chain, MASQUERADE mybridge bridge traffic not bound to mybridge bridge",
				"102 send FORWARD traffic for mybridge to DOCKER_INPUT chain",
				"100 accept traffic from mybridge DOCKER_INPUT chain",
			},
		},
		{
			name: "filter managed",
			gate: BridgeGate{Forward: true},
			want: []string{
				"101 accept mybridge traffic to other interfaces on FORWARD chain",
				"102 send FORWARD traffic for mybridge to DOCKER_INPUT chain",
				"100 accept traffic from mybridge DOCKER_INPUT chain",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := titles(BridgeRules(snap, "mybridge", tt.gate, ForwardModeLegacy))
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") {
				t.Errorf("titles = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBridgeRules_GeneralizedForward(t *testing.T) {
	snap := facts.NewSnapshot(bridgeIface("br-x", "172.20.0.0"))
	rules := BridgeRules(snap, "br-x", BridgeGate{Forward: true}, ForwardModeGeneralized)

	want := []string{
		"101 accept related, established traffic returning to br-x on FORWARD chain",
		"101 send FORWARD traffic for br-x to DOCKER chain",
		"101 accept br-x traffic to other interfaces on FORWARD chain",
		"101 accept br-x traffic to br-x on FORWARD chain",
		"102 send FORWARD traffic for br-x to DOCKER_INPUT chain",
		"100 accept traffic from br-x DOCKER_INPUT chain",
	}
	got := titles(rules)
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("titles = %q, want %q", got, want)
	}
	if rules[0].CTState != "RELATED,ESTABLISHED" {
		t.Errorf("related rule ctstate = %q, want RELATED,ESTABLISHED", rules[0].CTState)
	}
	if rules[1].Jump != ChainDocker {
		t.Errorf("forward rule jump = %q, want %q", rules[1].Jump, ChainDocker)
	}
	if rules[3].InIface != "br-x" || rules[3].OutIface != "br-x" {
		t.Errorf("bridge-to-bridge rule = %+v, want iniface and outiface br-x", rules[3].Match)
	}
}

func TestMasqueradeSource(t *testing.T) {
	tests := []struct {
		netmask string
		want    string
	}{
		{"255.255.0.0", "10.1.0.0/16"},
		{"255.255.255.0", "10.1.0.0/16"},
		{"255.255.240.0", "10.1.0.0/16"},
		{"", "10.1.0.0/16"},
		{"255.0.255.0", "10.1.0.0/16"},
		{"garbage", "10.1.0.0/16"},
	}
	for _, tt := range tests {
		got := masqueradeSource(facts.Interface{Network: "10.1.0.0", Netmask: tt.netmask})
		if got != tt.want {
			t.Errorf("masqueradeSource(netmask %q) = %q, want %q", tt.netmask, got, tt.want)
		}
	}
}
