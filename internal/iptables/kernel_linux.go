//go:build linux

package iptables

import (
	"errors"
	"fmt"
	"log/slog"

	goiptables "github.com/coreos/go-iptables/iptables"
	"golang.org/x/sys/unix"
)

// ErrNotRoot is returned when the live applier is created without root.
var ErrNotRoot = errors.New("iptables: must run as root")

// NewKernelApplier returns an Applier that drives the host's IPv4 iptables.
func NewKernelApplier(cfg Config, logger *slog.Logger) (*Applier, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if unix.Geteuid() != 0 {
		return nil, ErrNotRoot
	}
	ipt, err := goiptables.New(
		goiptables.IPFamily(goiptables.ProtocolIPv4),
		goiptables.Timeout(cfg.LockTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("iptables: init: %w", err)
	}
	return NewApplier(ipt, cfg, logger), nil
}
