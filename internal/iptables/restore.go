package iptables

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/plexsphere/dockerfw/internal/firewall"
)

// RestoreBuilder writes iptables-restore input.
//
//	*filter
//	:DOCKER_INPUT - [0:0]
//	-A DOCKER_INPUT -m comment --comment "999 drop traffic in DOCKER_INPUT chain" -j DROP
//	COMMIT
type RestoreBuilder struct {
	buf       bytes.Buffer
	tableName string
	isWriting bool
}

// StartTransaction begins a table block. The "*table" header is written
// lazily with the first chain or rule.
func (b *RestoreBuilder) StartTransaction(tableName string) {
	b.tableName = tableName
	b.isWriting = false
}

func (b *RestoreBuilder) startTransaction() {
	if !b.isWriting {
		b.writeFormattedLine(fmt.Sprintf("*%s", b.tableName))
		b.isWriting = true
	}
}

// EndTransaction closes the current table block, if anything was written.
func (b *RestoreBuilder) EndTransaction() {
	if b.isWriting {
		b.writeFormattedLine("COMMIT")
	}
	b.tableName = ""
	b.isWriting = false
}

// WriteChain declares a chain. An empty policy keeps the current one.
func (b *RestoreBuilder) WriteChain(chainName, policy string) {
	b.startTransaction()
	if policy == "" {
		policy = "-"
	}
	b.writeFormattedLine(fmt.Sprintf(":%s %s [0:0]", chainName, strings.ToUpper(policy)))
}

// WriteRule writes one "-A" line.
func (b *RestoreBuilder) WriteRule(rule string) {
	b.startTransaction()
	b.writeFormattedLine(rule)
}

// Bytes returns the accumulated input.
func (b *RestoreBuilder) Bytes() []byte {
	return b.buf.Bytes()
}

func (b *RestoreBuilder) writeFormattedLine(formatted string) {
	b.buf.WriteString(formatted)
	b.buf.WriteByte('\n')
}

// Render returns plan as iptables-restore input for `--noflush` on a host
// where the container engine's chains already exist.
//
// Only chains the plan owns outright get a header, since a header flushes
// an existing user-defined chain: purged chains without ignore patterns,
// and built-in chains that carry a policy. Chains the engine shares with
// dockerfw (DOCKER, DOCKER-ISOLATION, purged chains with ignore patterns)
// are left alone and their rules are appended. Loading the output twice
// therefore duplicates those rules; Applier converges instead.
func Render(plan *firewall.Plan) []byte {
	var b RestoreBuilder
	for _, table := range plan.Tables() {
		b.StartTransaction(string(table))
		for _, c := range plan.Chains {
			if c.Table != table || c.Ensure == firewall.EnsureAbsent {
				continue
			}
			if IsBuiltin(c.Table, c.Name) {
				if c.Policy != "" {
					b.WriteChain(c.Name, c.Policy)
				}
				continue
			}
			if ownsChain(c) {
				b.WriteChain(c.Name, "")
			}
		}
		for _, r := range plan.Rules {
			if r.Table == table {
				b.WriteRule(RuleLine(r))
			}
		}
		b.EndTransaction()
	}
	return b.Bytes()
}

// ownsChain reports whether every rule in c comes from the plan, so
// flushing it loses nothing.
func ownsChain(c firewall.ChainSpec) bool {
	return c.Purge && (c.Ignore == nil || c.Ignore.Len() == 0)
}
