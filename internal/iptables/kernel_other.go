//go:build !linux

package iptables

import (
	"errors"
	"log/slog"
)

// ErrNotRoot is returned when the live applier is created without root.
var ErrNotRoot = errors.New("iptables: must run as root")

// NewKernelApplier is only supported on Linux.
func NewKernelApplier(cfg Config, logger *slog.Logger) (*Applier, error) {
	return nil, errors.New("iptables: live apply is only supported on linux")
}
