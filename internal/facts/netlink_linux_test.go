//go:build linux

package facts

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/vishvananda/netlink"
	"go.uber.org/goleak"
)

// fakeLinks mimics netlink subscriptions: updates are sent with blocking
// sends, and each channel is closed once done is closed.
type fakeLinks struct {
	links   []netlink.Link
	addrs   map[string][]netlink.Addr
	listErr error

	subErr     error
	linkBurst  int
	linkCh     chan<- netlink.LinkUpdate
	addrCh     chan<- netlink.AddrUpdate
	subscribed chan struct{}
}

func (f *fakeLinks) LinkSubscribe(ch chan<- netlink.LinkUpdate, done <-chan struct{}) error {
	if f.subErr != nil {
		return f.subErr
	}
	f.linkCh = ch
	burst := f.linkBurst
	go func() {
		for i := 0; i < burst; i++ {
			ch <- netlink.LinkUpdate{Link: &netlink.Veth{LinkAttrs: netlink.LinkAttrs{Name: "veth0"}}}
		}
		<-done
		close(ch)
	}()
	return nil
}

func (f *fakeLinks) AddrSubscribe(ch chan<- netlink.AddrUpdate, done <-chan struct{}) error {
	f.addrCh = ch
	go func() {
		<-done
		close(ch)
	}()
	if f.subscribed != nil {
		close(f.subscribed)
	}
	return nil
}

func (f *fakeLinks) LinkList() ([]netlink.Link, error) {
	return f.links, f.listErr
}

func (f *fakeLinks) AddrList(link netlink.Link, _ int) ([]netlink.Addr, error) {
	return f.addrs[link.Attrs().Name], nil
}

func mustCIDR(t *testing.T, s string) *net.IPNet {
	t.Helper()
	ip, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		t.Fatal(err)
	}
	ipnet.IP = ip
	return ipnet
}

func TestNetlinkProvider_Snapshot(t *testing.T) {
	mac, _ := net.ParseMAC("02:42:41:0b:31:b8")
	src := &fakeLinks{
		links: []netlink.Link{
			&netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: "docker0", MTU: 1500, HardwareAddr: mac}},
			&netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Name: "dummy0", MTU: 1500}},
		},
		addrs: map[string][]netlink.Addr{
			"docker0": {{IPNet: mustCIDR(t, "172.17.0.1/16")}},
		},
	}
	p := &NetlinkProvider{links: src, logger: discardLogger()}

	snap, err := p.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	got, ok := snap.Lookup("docker0")
	if !ok {
		t.Fatal("Lookup(docker0) ok = false, want true")
	}
	want := Interface{
		Name:       "docker0",
		IPAddress:  "172.17.0.1",
		Network:    "172.17.0.0",
		Netmask:    "255.255.0.0",
		MACAddress: "02:42:41:0b:31:b8",
		MTU:        1500,
	}
	if got != want {
		t.Errorf("Lookup(docker0) = %+v, want %+v", got, want)
	}

	dummy, ok := snap.Lookup("dummy0")
	if !ok {
		t.Fatal("Lookup(dummy0) ok = false, want true")
	}
	if dummy.Network != "" {
		t.Errorf("dummy0.Network = %q, want empty", dummy.Network)
	}
}

func TestNetlinkProvider_LinkListError(t *testing.T) {
	p := &NetlinkProvider{links: &fakeLinks{listErr: errors.New("permission denied")}, logger: discardLogger()}
	if _, err := p.Snapshot(context.Background()); err == nil {
		t.Fatal("Snapshot() = nil error, want error")
	}
}

func TestFillIPv4_IgnoresIPv6(t *testing.T) {
	var iface Interface
	if fillIPv4(&iface, mustCIDR(t, "fd00::1/64")) {
		t.Fatal("fillIPv4() = true for IPv6 address, want false")
	}
	if iface.IPAddress != "" {
		t.Errorf("IPAddress = %q, want empty", iface.IPAddress)
	}
}

func TestNetlinkProvider_Watch(t *testing.T) {
	src := &fakeLinks{subscribed: make(chan struct{})}
	p := &NetlinkProvider{links: src, logger: discardLogger()}

	notified := make(chan struct{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, func() { notified <- struct{}{} })
	}()

	<-src.subscribed
	src.linkCh <- netlink.LinkUpdate{Link: &netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: "br-1234"}}}
	<-notified
	src.addrCh <- netlink.AddrUpdate{LinkAddress: *mustCIDR(t, "172.18.0.1/16"), NewAddr: true}
	<-notified

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Watch() error = %v, want context.Canceled", err)
	}
}

func TestNetlinkProvider_WatchSubscribeError(t *testing.T) {
	p := &NetlinkProvider{links: &fakeLinks{subErr: errors.New("operation not permitted")}, logger: discardLogger()}
	err := p.Watch(context.Background(), func() {})
	if err == nil {
		t.Fatal("Watch() = nil error, want subscribe error")
	}
}

func TestNetlinkProvider_WatchReleasesSubscriptionsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	// More updates than the channel holds, so the sender is blocked when
	// the context is cancelled.
	src := &fakeLinks{linkBurst: 64}
	p := &NetlinkProvider{links: src, logger: discardLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	var notified atomic.Int64
	err := p.Watch(ctx, func() {
		if notified.Add(1) == 1 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Watch() error = %v, want context.Canceled", err)
	}
}
