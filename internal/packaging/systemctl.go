package packaging

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// systemdRuntimeDir exists only while systemd is PID 1. sd_booted(3)
// tests the same directory.
const systemdRuntimeDir = "/run/systemd/system"

// Systemctl is a ServiceManager that shells out to systemctl.
type Systemctl struct {
	runtimeDir string
	run        func(args ...string) ([]byte, error)
}

// NewSystemctl returns a ServiceManager backed by the systemctl binary.
func NewSystemctl() *Systemctl {
	return &Systemctl{runtimeDir: systemdRuntimeDir, run: runSystemctl}
}

func runSystemctl(args ...string) ([]byte, error) {
	return exec.Command("systemctl", args...).CombinedOutput()
}

func (s *Systemctl) Booted() bool {
	info, err := os.Stat(s.runtimeDir)
	return err == nil && info.IsDir()
}

func (s *Systemctl) Reload() error {
	return s.systemctl("daemon-reload")
}

func (s *Systemctl) Enable(unit string) error {
	return s.systemctl("enable", serviceUnit(unit))
}

// Remove runs "disable --now", which stops a running unit in the same call.
func (s *Systemctl) Remove(unit string) error {
	err := s.systemctl("disable", "--now", serviceUnit(unit))
	if errors.Is(err, errUnitMissing) {
		return nil
	}
	return err
}

var errUnitMissing = errors.New("unit not found")

func (s *Systemctl) systemctl(args ...string) error {
	out, err := s.run(args...)
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("packaging: systemctl not found: %w", err)
	}
	msg := strings.TrimSpace(string(out))
	if strings.Contains(msg, "does not exist") || strings.Contains(msg, "not loaded") {
		err = errors.Join(errUnitMissing, err)
	}
	return fmt.Errorf("packaging: systemctl %s: %s: %w", strings.Join(args, " "), msg, err)
}

// serviceUnit qualifies a bare service name with the .service suffix.
func serviceUnit(name string) string {
	if strings.HasSuffix(name, ".service") {
		return name
	}
	return name + ".service"
}
