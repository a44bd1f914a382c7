package packaging

import (
	"fmt"
	"path/filepath"
)

// GenerateUnitFile produces the systemd unit that runs the convergence
// loop. The service starts after the container engine so that its chains
// exist when the first cycle runs. The service reports readiness once that
// cycle has finished.
func GenerateUnitFile(cfg InstallConfig) string {
	cfg.ApplyDefaults()

	exec := fmt.Sprintf("%s run --config %s", cfg.BinaryPath, filepath.Join(cfg.ConfigDir, "config.yaml"))
	if cfg.Interval != "" {
		exec += " --interval " + cfg.Interval
	}

	return fmt.Sprintf(`[Unit]
Description=dockerfw container host firewall
After=network-online.target docker.service
Wants=network-online.target
StartLimitBurst=5
StartLimitIntervalSec=60

[Service]
Type=notify
ExecStart=%s
Restart=always
RestartSec=5s
EnvironmentFile=-%s
CapabilityBoundingSet=CAP_NET_ADMIN CAP_NET_RAW
ProtectSystem=full
ProtectHome=true

[Install]
WantedBy=multi-user.target
`, exec, filepath.Join(cfg.ConfigDir, "environment"))
}
