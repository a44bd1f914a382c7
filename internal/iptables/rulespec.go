// Package iptables realizes a firewall.Plan: it renders plans as
// iptables-restore input and reconciles them against the live kernel
// ruleset through go-iptables.
package iptables

import (
	"net"
	"strings"

	"github.com/plexsphere/dockerfw/internal/firewall"
)

// builtinChains lists the chains iptables creates for each table.
var builtinChains = map[firewall.Table]map[string]bool{
	firewall.TableFilter: {"INPUT": true, "FORWARD": true, "OUTPUT": true},
	firewall.TableNat:    {"PREROUTING": true, "INPUT": true, "OUTPUT": true, "POSTROUTING": true},
}

// IsBuiltin reports whether chain is created by iptables itself.
func IsBuiltin(table firewall.Table, chain string) bool {
	return builtinChains[table][chain]
}

// RuleArgs returns the rulespec of r, without the chain, in the order that
// `iptables -S` prints it back.
func RuleArgs(r firewall.RuleSpec) []string {
	var args []string
	args = appendFlag(args, "-s", normalizeAddr(r.Source))
	args = appendFlag(args, "-d", normalizeAddr(r.Destination))
	args = appendFlag(args, "-i", r.InIface)
	args = appendFlag(args, "-o", r.OutIface)
	if r.Proto != "" && r.Proto != "all" {
		args = appendFlag(args, "-p", r.Proto)
	}

	if r.SrcType != "" || r.DstType != "" {
		args = append(args, "-m", "addrtype")
		args = appendFlag(args, "--src-type", r.SrcType)
		args = appendFlag(args, "--dst-type", r.DstType)
	}
	if r.CTState != "" {
		args = append(args, "-m", "conntrack")
		args = appendFlag(args, "--ctstate", r.CTState)
	}
	if r.SPort != "" || r.DPort != "" {
		args = append(args, "-m", "multiport")
		args = appendFlag(args, "--sports", r.SPort)
		args = appendFlag(args, "--dports", r.DPort)
	}

	args = append(args, "-m", "comment", "--comment", r.Title())
	return append(args, "-j", target(r))
}

// RuleLine returns the rule as `iptables -S` prints it: "-A CHAIN args...".
func RuleLine(r firewall.RuleSpec) string {
	parts := append([]string{"-A", r.Chain}, RuleArgs(r)...)
	for i, p := range parts {
		parts[i] = quoteArg(p)
	}
	return strings.Join(parts, " ")
}

func target(r firewall.RuleSpec) string {
	if r.Jump != "" {
		return r.Jump
	}
	return strings.ToUpper(string(r.Action))
}

// appendFlag appends flag and value, honouring a leading "! " negation in
// the value. Empty values are skipped.
func appendFlag(args []string, flag, value string) []string {
	if value == "" {
		return args
	}
	if rest, ok := strings.CutPrefix(value, "! "); ok {
		return append(args, "!", flag, strings.TrimSpace(rest))
	}
	return append(args, flag, value)
}

// normalizeAddr adds the host prefix iptables prints for bare addresses.
func normalizeAddr(value string) string {
	neg := ""
	addr := value
	if rest, ok := strings.CutPrefix(value, "! "); ok {
		neg, addr = "! ", strings.TrimSpace(rest)
	}
	if addr == "" || strings.Contains(addr, "/") {
		return value
	}
	ip := net.ParseIP(addr)
	switch {
	case ip == nil:
		return value
	case ip.To4() != nil:
		return neg + addr + "/32"
	default:
		return neg + addr + "/128"
	}
}

func quoteArg(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
