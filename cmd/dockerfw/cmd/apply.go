package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/plexsphere/dockerfw/internal/reconcile"
)

var applyDryRun bool

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the firewall plan to the kernel once",
	Long: "Compute the plan for this host and converge the live iptables ruleset\n" +
		"towards it. Must run as root. With --dry-run, every change is logged\n" +
		"instead of made.",
	Args: cobra.NoArgs,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "log changes without making them")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("dockerfw apply: %w", err)
	}
	if applyDryRun {
		cfg.IPTables.DryRun = true
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	r, _, err := newReconciler(cfg, logger)
	if err != nil {
		return fmt.Errorf("dockerfw apply: %w", err)
	}
	if err := r.RunOnce(cmd.Context()); err != nil {
		return fmt.Errorf("dockerfw apply: %w", err)
	}
	printStatus(cmd.OutOrStdout(), r.Status(), cfg.IPTables.DryRun)
	return nil
}

func printStatus(w io.Writer, st reconcile.Status, dryRun bool) {
	verb := "applied"
	if dryRun {
		verb = "planned (dry run)"
	}
	fmt.Fprintf(w, "Plan digest:     %s\n", st.Digest)
	fmt.Fprintf(w, "Changes %s:\n", verb)
	fmt.Fprintf(w, "  chains created: %d\n", st.Result.ChainsCreated)
	fmt.Fprintf(w, "  chains deleted: %d\n", st.Result.ChainsDeleted)
	fmt.Fprintf(w, "  policies set:   %d\n", st.Result.PoliciesSet)
	fmt.Fprintf(w, "  rules inserted: %d\n", st.Result.RulesInserted)
	fmt.Fprintf(w, "  rules replaced: %d\n", st.Result.RulesReplaced)
	fmt.Fprintf(w, "  rules purged:   %d\n", st.Result.RulesPurged)
}
