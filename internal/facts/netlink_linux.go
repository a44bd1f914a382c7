//go:build linux

package facts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/vishvananda/netlink"
)

// linkSource is the subset of netlink used to enumerate and watch
// interfaces.
type linkSource interface {
	LinkList() ([]netlink.Link, error)
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
	LinkSubscribe(ch chan<- netlink.LinkUpdate, done <-chan struct{}) error
	AddrSubscribe(ch chan<- netlink.AddrUpdate, done <-chan struct{}) error
}

type kernelLinks struct{}

func (kernelLinks) LinkList() ([]netlink.Link, error) { return netlink.LinkList() }

func (kernelLinks) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(link, family)
}

func (kernelLinks) LinkSubscribe(ch chan<- netlink.LinkUpdate, done <-chan struct{}) error {
	return netlink.LinkSubscribe(ch, done)
}

func (kernelLinks) AddrSubscribe(ch chan<- netlink.AddrUpdate, done <-chan struct{}) error {
	return netlink.AddrSubscribe(ch, done)
}

// NetlinkProvider gathers interface facts from the running kernel.
type NetlinkProvider struct {
	links  linkSource
	logger *slog.Logger
}

// NewNetlinkProvider returns a NetlinkProvider backed by the host netlink socket.
func NewNetlinkProvider(logger *slog.Logger) *NetlinkProvider {
	return &NetlinkProvider{
		links:  kernelLinks{},
		logger: logger.With("component", "facts"),
	}
}

// Snapshot implements Provider. Only the first IPv4 address of each link is
// reported, matching what facter exposes as ipaddress_<name>.
func (p *NetlinkProvider) Snapshot(ctx context.Context) (*Snapshot, error) {
	links, err := p.links.LinkList()
	if err != nil {
		return nil, fmt.Errorf("facts: netlink: list links: %w", err)
	}

	ifaces := make([]Interface, 0, len(links))
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attrs := link.Attrs()
		if attrs == nil || attrs.Name == "" {
			continue
		}
		iface := Interface{
			Name: attrs.Name,
			MTU:  attrs.MTU,
		}
		if len(attrs.HardwareAddr) > 0 {
			iface.MACAddress = attrs.HardwareAddr.String()
		}

		addrs, err := p.links.AddrList(link, netlink.FAMILY_V4)
		if err != nil {
			return nil, fmt.Errorf("facts: netlink: list addresses of %s: %w", attrs.Name, err)
		}
		for _, addr := range addrs {
			if addr.IPNet == nil {
				continue
			}
			if fillIPv4(&iface, addr.IPNet) {
				break
			}
		}
		ifaces = append(ifaces, iface)
	}

	snap := NewSnapshot(ifaces...)
	p.logger.Debug("gathered interface facts", "count", snap.Len())
	return snap, nil
}

// Watch calls notify whenever a link or an address changes, until ctx is
// cancelled. Bursts of updates are not coalesced here; callers are
// expected to debounce, e.g. through reconcile.Reconciler.TriggerReconcile.
func (p *NetlinkProvider) Watch(ctx context.Context, notify func()) error {
	done := make(chan struct{})
	var links chan netlink.LinkUpdate
	var addrs chan netlink.AddrUpdate
	defer func() {
		close(done)
		go drainUpdates(links, addrs)
	}()

	linkCh := make(chan netlink.LinkUpdate, 16)
	if err := p.links.LinkSubscribe(linkCh, done); err != nil {
		return fmt.Errorf("facts: netlink: subscribe links: %w", err)
	}
	links = linkCh
	addrCh := make(chan netlink.AddrUpdate, 16)
	if err := p.links.AddrSubscribe(addrCh, done); err != nil {
		return fmt.Errorf("facts: netlink: subscribe addresses: %w", err)
	}
	addrs = addrCh

	p.logger.Debug("watching interface changes")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-links:
			if !ok {
				return errors.New("facts: netlink: link subscription closed")
			}
			if attrs := u.Attrs(); attrs != nil {
				p.logger.Debug("link changed", "link", attrs.Name)
			}
			notify()
		case u, ok := <-addrs:
			if !ok {
				return errors.New("facts: netlink: address subscription closed")
			}
			p.logger.Debug("address changed", "address", u.LinkAddress.String(), "new", u.NewAddr)
			notify()
		}
	}
}

// drainUpdates reads both subscriptions until netlink closes them. A
// receive goroutine blocked on a full channel only sees done after its
// send completes. Nil channels are skipped.
func drainUpdates(links <-chan netlink.LinkUpdate, addrs <-chan netlink.AddrUpdate) {
	for links != nil || addrs != nil {
		select {
		case _, ok := <-links:
			if !ok {
				links = nil
			}
		case _, ok := <-addrs:
			if !ok {
				addrs = nil
			}
		}
	}
}

// fillIPv4 copies address, network and netmask from ipnet into iface. It
// reports false when ipnet is not IPv4.
func fillIPv4(iface *Interface, ipnet *net.IPNet) bool {
	ip := ipnet.IP.To4()
	if ip == nil {
		return false
	}
	mask := ipnet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	iface.IPAddress = ip.String()
	iface.Network = ip.Mask(mask).String()
	iface.Netmask = net.IP(mask).String()
	return true
}
