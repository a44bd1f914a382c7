package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var factsFormat string

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Print the interface facts the planner sees",
	Args:  cobra.NoArgs,
	RunE:  runFacts,
}

func init() {
	factsCmd.Flags().StringVar(&factsFormat, "format", "yaml", "output format: json or yaml")
	rootCmd.AddCommand(factsCmd)
}

func runFacts(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("dockerfw facts: %w", err)
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	provider, err := newFactProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("dockerfw facts: %w", err)
	}
	snap, err := provider.Snapshot(cmd.Context())
	if err != nil {
		return fmt.Errorf("dockerfw facts: %w", err)
	}

	var out []byte
	switch factsFormat {
	case "json":
		out, err = json.MarshalIndent(snap.Flat(), "", "  ")
		out = append(out, '\n')
	case "yaml":
		out, err = yaml.Marshal(snap.Flat())
	default:
		return fmt.Errorf("dockerfw facts: unknown format %q (must be json or yaml)", factsFormat)
	}
	if err != nil {
		return fmt.Errorf("dockerfw facts: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
