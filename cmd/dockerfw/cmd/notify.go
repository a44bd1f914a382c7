package cmd

import (
	"log/slog"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/plexsphere/dockerfw/internal/firewall"
	"github.com/plexsphere/dockerfw/internal/iptables"
)

// readyNotifier tells systemd the service is up once the first cycle has
// finished, whether or not it succeeded. Outside systemd it does nothing.
type readyNotifier struct {
	once   sync.Once
	logger *slog.Logger
}

func (n *readyNotifier) ObserveCycle(_ *firewall.Plan, _ iptables.Result, _ time.Duration, _ error) {
	n.once.Do(func() { n.notify(daemon.SdNotifyReady) })
}

func (n *readyNotifier) stopping() {
	n.notify(daemon.SdNotifyStopping)
}

func (n *readyNotifier) notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("systemd notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("systemd notified", "state", state)
	}
}
