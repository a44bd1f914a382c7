package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/plexsphere/dockerfw/internal/firewall"
	"github.com/plexsphere/dockerfw/internal/fsutil"
	"github.com/plexsphere/dockerfw/internal/iptables"
)

var (
	planFormat string
	planDigest bool
	planOutput string
	planDiff   bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the firewall plan for this host",
	Long: "Gather interface facts, compute the chains and rules for this host and\n" +
		"print them without touching the kernel. Formats: json, yaml, and iptables\n" +
		"(input for iptables-restore --noflush on a host where the container\n" +
		"engine's chains exist). Chains dockerfw owns are declared and so replaced;\n" +
		"rules on shared chains are appended, so load it once and use apply to\n" +
		"converge a running host. With --output the plan\n" +
		"replaces the named file atomically, e.g. /etc/iptables/rules.v4; adding\n" +
		"--diff prints a unified diff against that file and leaves it untouched.",
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planFormat, "format", "iptables", "output format: json, yaml or iptables")
	planCmd.Flags().BoolVar(&planDigest, "digest", false, "print only the plan digest")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "write the plan to this file instead of stdout")
	planCmd.Flags().BoolVar(&planDiff, "diff", false, "show changes against the --output file without writing it")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("dockerfw plan: %w", err)
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	plan, err := computePlan(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("dockerfw plan: %w", err)
	}

	w := cmd.OutOrStdout()
	if planDigest {
		digest, err := plan.Digest()
		if err != nil {
			return fmt.Errorf("dockerfw plan: %w", err)
		}
		fmt.Fprintln(w, digest)
		return nil
	}

	out, err := encodePlan(plan, planFormat)
	if err != nil {
		return fmt.Errorf("dockerfw plan: %w", err)
	}
	if planDiff {
		if planOutput == "" {
			return errors.New("dockerfw plan: --diff requires --output")
		}
		text, err := diffAgainst(planOutput, out)
		if err != nil {
			return fmt.Errorf("dockerfw plan: %w", err)
		}
		_, err = fmt.Fprint(w, text)
		return err
	}
	if planOutput != "" {
		if err := fsutil.WriteFileAtomic(planOutput, out, 0o644); err != nil {
			return fmt.Errorf("dockerfw plan: %w", err)
		}
		logger.Info("plan written", "path", planOutput, "format", planFormat)
		return nil
	}
	_, err = w.Write(out)
	return err
}

func encodePlan(plan *firewall.Plan, format string) ([]byte, error) {
	switch format {
	case "json":
		out, err := plan.MarshalIndent()
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case "yaml":
		return yaml.Marshal(plan)
	case "iptables":
		return iptables.Render(plan), nil
	default:
		return nil, fmt.Errorf("unknown format %q (must be json, yaml or iptables)", format)
	}
}

// diffAgainst returns a unified diff from the file at path to out. A missing
// file diffs as empty.
func diffAgainst(path string, out []byte) (string, error) {
	current, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(current)),
		B:        difflib.SplitLines(string(out)),
		FromFile: path,
		ToFile:   "plan",
		Context:  3,
	})
}
