package packaging

// ServiceManager puts the dockerfw unit under the host's init system.
type ServiceManager interface {
	// Booted reports whether the host was booted with systemd.
	Booted() bool

	// Reload makes the manager re-read unit files.
	Reload() error

	// Enable starts unit at boot, ordered after docker.service by the unit file.
	Enable(unit string) error

	// Remove stops and disables unit. A unit that is already stopped and
	// disabled is not an error.
	Remove(unit string) error
}
