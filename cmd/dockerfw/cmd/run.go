package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/plexsphere/dockerfw/internal/facts"
	"github.com/plexsphere/dockerfw/internal/metrics"
)

var runInterval time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Keep the firewall converged",
	Long: "Run the convergence loop: gather facts, plan and apply every interval.\n" +
		"When facts come from netlink, interface and address changes trigger an\n" +
		"immediate cycle so new bridges are covered without waiting. Under systemd\n" +
		"the service reports readiness after the first cycle.",
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "time between cycles (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("dockerfw run: %w", err)
	}
	if runInterval != 0 {
		cfg.Reconcile.Interval = runInterval
		if err := cfg.Reconcile.Validate(); err != nil {
			return fmt.Errorf("dockerfw run: %w", err)
		}
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	logger.Info("starting dockerfw",
		"version", buildVersion,
		"facts", cfg.Facts.Source,
		"dry_run", cfg.IPTables.DryRun,
	)

	r, provider, err := newReconciler(cfg, logger)
	if err != nil {
		return fmt.Errorf("dockerfw run: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ready := &readyNotifier{logger: logger}
	r.AddObserver(ready)

	var wg sync.WaitGroup
	if cfg.Metrics.Enabled() {
		collector := metrics.NewCollector()
		r.AddObserver(collector)
		srv := metrics.NewServer(cfg.Metrics, collector, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Serve(ctx); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}
	if w, ok := provider.(facts.Watcher); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Watch(ctx, r.TriggerReconcile); err != nil && ctx.Err() == nil {
				logger.Warn("interface watch stopped, relying on the interval", "error", err)
			}
		}()
	}

	err = r.Run(ctx)
	ready.stopping()
	stop()
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		logger.Info("dockerfw stopped")
		return nil
	}
	return err
}
