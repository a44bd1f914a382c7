package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/plexsphere/dockerfw/internal/packaging"
)

var (
	installBinaryPath string
	installUnitPath   string
	installInterval   string
	installEnable     bool
	uninstallPurge    bool
)

// serviceDeps returns the service manager and the effective uid source.
// A nil uid source means the process's own. Tests replace it.
var serviceDeps = func() (packaging.ServiceManager, func() int) {
	return packaging.NewSystemctl(), nil
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install dockerfw as a systemd service",
	Long: "Copy this binary into place, write a default config next to --config if\n" +
		"none exists, and install a systemd unit that runs \"dockerfw run\".",
	Args: cobra.NoArgs,
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the dockerfw systemd service",
	Long:  "Stop and remove the service. Rules already in the kernel are left in place.",
	Args:  cobra.NoArgs,
	RunE:  runUninstall,
}

func init() {
	installCmd.Flags().StringVar(&installBinaryPath, "binary-path", packaging.DefaultBinaryPath, "install path of the dockerfw binary")
	installCmd.Flags().StringVar(&installUnitPath, "unit-path", packaging.DefaultUnitFilePath, "path of the systemd unit file")
	installCmd.Flags().StringVar(&installInterval, "interval", "", "convergence interval passed to the service")
	installCmd.Flags().BoolVar(&installEnable, "enable", false, "enable the service at boot")
	uninstallCmd.Flags().StringVar(&installBinaryPath, "binary-path", packaging.DefaultBinaryPath, "install path of the dockerfw binary")
	uninstallCmd.Flags().StringVar(&installUnitPath, "unit-path", packaging.DefaultUnitFilePath, "path of the systemd unit file")
	uninstallCmd.Flags().BoolVar(&uninstallPurge, "purge", false, "also remove the config directory")
	rootCmd.AddCommand(installCmd, uninstallCmd)
}

func newInstaller(cmd *cobra.Command) *packaging.Installer {
	service, euid := serviceDeps()
	cfg := packaging.InstallConfig{
		BinaryPath:   installBinaryPath,
		ConfigDir:    filepath.Dir(cfgFile),
		UnitFilePath: installUnitPath,
		Interval:     installInterval,
		Enable:       installEnable,
	}
	return packaging.NewInstaller(cfg, service, euid, setupLogger(cmd.ErrOrStderr(), logLevel))
}

func runInstall(cmd *cobra.Command, _ []string) error {
	if err := newInstaller(cmd).Install(); err != nil {
		return fmt.Errorf("dockerfw install: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "dockerfw installed successfully")
	return nil
}

func runUninstall(cmd *cobra.Command, _ []string) error {
	if err := newInstaller(cmd).Uninstall(uninstallPurge); err != nil {
		return fmt.Errorf("dockerfw uninstall: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "dockerfw uninstalled successfully")
	return nil
}
