// Package cmd implements the dockerfw CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/dockerfw/internal/agent"
)

var (
	cfgFile   string
	logLevel  string
	factsFile string
	factArgs  []string
)

// Build info set from main.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo sets the version info from build-time ldflags.
func SetVersionInfo(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("dockerfw version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

var rootCmd = &cobra.Command{
	Use:   "dockerfw",
	Short: "dockerfw manages the iptables rules of a container host",
	Long: "dockerfw plans and enforces the host firewall around the container engine's\n" +
		"bridges. It derives NAT, FORWARD and DOCKER_INPUT rules from the host's\n" +
		"network interfaces, renders them, and keeps the kernel ruleset converged.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", agent.DefaultConfigPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error; overrides config)")
	rootCmd.PersistentFlags().StringVar(&factsFile, "facts", "", "read interface facts from a YAML or JSON file (overrides config)")
	rootCmd.PersistentFlags().StringArrayVar(&factArgs, "fact", nil, "set a fact as key=value; repeatable")

	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("dockerfw version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
