package packaging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/plexsphere/dockerfw/internal/fsutil"
)

// Installer handles installing and uninstalling dockerfw as a systemd service.
type Installer struct {
	cfg     InstallConfig
	service ServiceManager
	euid    func() int
	logger  *slog.Logger

	// executable returns the path of the running binary.
	executable func() (string, error)
}

// NewInstaller creates a new Installer with defaults applied. euid returns
// the effective user id; nil means the process's own.
func NewInstaller(cfg InstallConfig, service ServiceManager, euid func() int, logger *slog.Logger) *Installer {
	cfg.ApplyDefaults()
	if euid == nil {
		euid = unix.Geteuid
	}
	return &Installer{
		cfg:        cfg,
		service:    service,
		euid:       euid,
		logger:     logger.With("component", "packaging"),
		executable: os.Executable,
	}
}

// ConfigPath returns the path of the installed config.yaml.
func (ins *Installer) ConfigPath() string {
	return filepath.Join(ins.cfg.ConfigDir, "config.yaml")
}

// Install copies the binary, writes a default config if none exists,
// writes the unit file and reloads systemd. Running it again upgrades the
// binary and unit file and keeps the existing config.
func (ins *Installer) Install() error {
	if ins.euid() != 0 {
		return errors.New("packaging: install requires root privileges")
	}
	if !ins.service.Booted() {
		return errors.New("packaging: host is not running systemd")
	}
	if err := ins.cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(ins.cfg.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("packaging: create directory %s: %w", ins.cfg.ConfigDir, err)
	}

	if err := ins.copyBinary(); err != nil {
		return err
	}

	configPath := ins.ConfigPath()
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := fsutil.WriteFileAtomic(configPath, []byte(DefaultConfig), 0o644); err != nil {
			return fmt.Errorf("packaging: write config: %w", err)
		}
		ins.logger.Info("default config written", "path", configPath)
	} else if err == nil {
		ins.logger.Info("existing config preserved", "path", configPath)
	} else {
		return fmt.Errorf("packaging: stat config: %w", err)
	}

	if err := fsutil.WriteFileAtomic(ins.cfg.UnitFilePath, []byte(GenerateUnitFile(ins.cfg)), 0o644); err != nil {
		return fmt.Errorf("packaging: write unit file: %w", err)
	}
	ins.logger.Info("unit file written", "path", ins.cfg.UnitFilePath)

	if err := ins.service.Reload(); err != nil {
		return fmt.Errorf("packaging: daemon-reload: %w", err)
	}
	ins.logger.Info("systemd daemon reloaded")

	if ins.cfg.Enable {
		if err := ins.service.Enable(ins.cfg.ServiceName); err != nil {
			return fmt.Errorf("packaging: enable %s: %w", ins.cfg.ServiceName, err)
		}
		ins.logger.Info("service enabled", "service", ins.cfg.ServiceName)
	}
	return nil
}

// Uninstall stops and removes the service. If purge is true the config
// directory is removed too. The firewall rules already in the kernel are
// left in place.
func (ins *Installer) Uninstall(purge bool) error {
	if ins.euid() != 0 {
		return errors.New("packaging: uninstall requires root privileges")
	}

	if _, err := os.Stat(ins.cfg.UnitFilePath); errors.Is(err, os.ErrNotExist) {
		ins.logger.Info("dockerfw is not installed, nothing to do")
		return nil
	}

	// The unit file goes regardless; a unit systemd cannot stop is gone
	// after the next boot.
	if err := ins.service.Remove(ins.cfg.ServiceName); err != nil {
		ins.logger.Warn("remove service", "service", ins.cfg.ServiceName, "error", err)
	}

	if err := os.Remove(ins.cfg.UnitFilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("packaging: remove unit file: %w", err)
	}
	ins.logger.Info("unit file removed", "path", ins.cfg.UnitFilePath)

	if err := ins.service.Reload(); err != nil {
		return fmt.Errorf("packaging: daemon-reload: %w", err)
	}

	if err := os.Remove(ins.cfg.BinaryPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("packaging: remove binary: %w", err)
	}
	ins.logger.Info("binary removed", "path", ins.cfg.BinaryPath)

	if purge {
		if err := os.RemoveAll(ins.cfg.ConfigDir); err != nil {
			return fmt.Errorf("packaging: remove directory %s: %w", ins.cfg.ConfigDir, err)
		}
		ins.logger.Info("directory removed", "path", ins.cfg.ConfigDir)
	}
	return nil
}

func (ins *Installer) copyBinary() error {
	srcPath, err := ins.executable()
	if err != nil {
		return fmt.Errorf("packaging: resolve executable path: %w", err)
	}
	srcPath, err = filepath.EvalSymlinks(srcPath)
	if err != nil {
		return fmt.Errorf("packaging: resolve symlinks: %w", err)
	}

	dstPath := ins.cfg.BinaryPath
	if srcPath == dstPath {
		ins.logger.Info("binary already at install path, skipping copy", "path", dstPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("packaging: create binary directory: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("packaging: open source binary: %w", err)
	}
	defer src.Close()

	// Write beside the target and rename, so a running service keeps its
	// old inode instead of failing with ETXTBSY.
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("packaging: read source binary: %w", err)
	}
	if err := fsutil.WriteFileAtomic(dstPath, data, 0o755); err != nil {
		return fmt.Errorf("packaging: install binary: %w", err)
	}

	ins.logger.Info("binary installed", "src", srcPath, "dst", dstPath)
	return nil
}
