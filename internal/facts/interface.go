// Package facts models the per-host network interface facts consumed by the
// firewall planner.
package facts

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Fact key prefixes for per-interface attributes. The interface name is
// appended to each prefix, e.g. "network_docker0".
const (
	KeyInterfaces = "interfaces"

	PrefixIPAddress  = "ipaddress_"
	PrefixMACAddress = "macaddress_"
	PrefixMTU        = "mtu_"
	PrefixNetmask    = "netmask_"
	PrefixNetwork    = "network_"
)

var attributePrefixes = []string{
	PrefixIPAddress,
	PrefixMACAddress,
	PrefixMTU,
	PrefixNetmask,
	PrefixNetwork,
}

// Interface holds the facts known about a single network interface.
type Interface struct {
	Name       string `json:"name" yaml:"name"`
	IPAddress  string `json:"ip_address,omitempty" yaml:"ip_address,omitempty"`
	Network    string `json:"network,omitempty" yaml:"network,omitempty"`
	Netmask    string `json:"netmask,omitempty" yaml:"netmask,omitempty"`
	MACAddress string `json:"mac_address,omitempty" yaml:"mac_address,omitempty"`
	MTU        int    `json:"mtu,omitempty" yaml:"mtu,omitempty"`
}

// Snapshot is an immutable view of the interfaces present on a host at the
// time facts were gathered. A nil *Snapshot behaves like an empty one.
type Snapshot struct {
	names  []string
	ifaces map[string]Interface
}

// NewSnapshot builds a Snapshot from the given interfaces. Later entries
// replace earlier ones with the same name.
func NewSnapshot(ifaces ...Interface) *Snapshot {
	s := &Snapshot{ifaces: make(map[string]Interface, len(ifaces))}
	for _, iface := range ifaces {
		if iface.Name == "" {
			continue
		}
		s.ifaces[iface.Name] = iface
	}
	s.names = make([]string, 0, len(s.ifaces))
	for name := range s.ifaces {
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	return s
}

// Lookup returns the facts for the named interface and whether the
// interface is present at all.
func (s *Snapshot) Lookup(name string) (Interface, bool) {
	if s == nil {
		return Interface{}, false
	}
	iface, ok := s.ifaces[name]
	return iface, ok
}

// Names returns the sorted interface names.
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Interfaces returns all interfaces sorted by name.
func (s *Snapshot) Interfaces() []Interface {
	if s == nil {
		return nil
	}
	out := make([]Interface, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.ifaces[name])
	}
	return out
}

// Len returns the number of interfaces in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Flat renders the snapshot back into the flat facter key space.
func (s *Snapshot) Flat() map[string]string {
	out := map[string]string{KeyInterfaces: strings.Join(s.Names(), ",")}
	for _, iface := range s.Interfaces() {
		setIfNotEmpty(out, PrefixIPAddress+iface.Name, iface.IPAddress)
		setIfNotEmpty(out, PrefixMACAddress+iface.Name, iface.MACAddress)
		setIfNotEmpty(out, PrefixNetmask+iface.Name, iface.Netmask)
		setIfNotEmpty(out, PrefixNetwork+iface.Name, iface.Network)
		if iface.MTU > 0 {
			out[PrefixMTU+iface.Name] = strconv.Itoa(iface.MTU)
		}
	}
	return out
}

func setIfNotEmpty(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// FromFlat parses facter-style flat facts. An interface is present when it
// is listed in the comma-separated "interfaces" fact or when any of its
// per-interface attributes is set.
func FromFlat(flat map[string]string) (*Snapshot, error) {
	byName := make(map[string]*Interface)
	get := func(name string) *Interface {
		iface, ok := byName[name]
		if !ok {
			iface = &Interface{Name: name}
			byName[name] = iface
		}
		return iface
	}

	for _, name := range strings.Split(flat[KeyInterfaces], ",") {
		if name = strings.TrimSpace(name); name != "" {
			get(name)
		}
	}

	for key, value := range flat {
		for _, prefix := range attributePrefixes {
			if !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
				continue
			}
			iface := get(strings.TrimPrefix(key, prefix))
			switch prefix {
			case PrefixIPAddress:
				iface.IPAddress = value
			case PrefixMACAddress:
				iface.MACAddress = value
			case PrefixNetmask:
				iface.Netmask = value
			case PrefixNetwork:
				iface.Network = value
			case PrefixMTU:
				mtu, err := strconv.Atoi(strings.TrimSpace(value))
				if err != nil {
					return nil, fmt.Errorf("facts: parse %s: %w", key, err)
				}
				iface.MTU = mtu
			}
		}
	}

	ifaces := make([]Interface, 0, len(byName))
	for _, iface := range byName {
		ifaces = append(ifaces, *iface)
	}
	return NewSnapshot(ifaces...), nil
}
