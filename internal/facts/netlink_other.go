//go:build !linux

package facts

import (
	"context"
	"errors"
	"log/slog"
)

// NetlinkProvider is unavailable on non-Linux platforms.
type NetlinkProvider struct{}

// NewNetlinkProvider returns a provider that always fails on non-Linux platforms.
func NewNetlinkProvider(_ *slog.Logger) *NetlinkProvider {
	return &NetlinkProvider{}
}

// Snapshot implements Provider.
func (*NetlinkProvider) Snapshot(_ context.Context) (*Snapshot, error) {
	return nil, errors.New("facts: netlink: not supported on this platform")
}

// Watch implements Watcher.
func (*NetlinkProvider) Watch(_ context.Context, _ func()) error {
	return errors.New("facts: netlink: not supported on this platform")
}
