// Package reconcile keeps the host firewall converged: each cycle gathers
// interface facts, plans the ruleset and applies it.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/plexsphere/dockerfw/internal/facts"
	"github.com/plexsphere/dockerfw/internal/firewall"
	"github.com/plexsphere/dockerfw/internal/iptables"
)

// Planner computes a plan from a fact snapshot.
type Planner interface {
	Plan(snap *facts.Snapshot) (*firewall.Plan, error)
}

// Applier makes the kernel ruleset match a plan.
type Applier interface {
	Apply(ctx context.Context, plan *firewall.Plan) (iptables.Result, error)
}

// Observer is told about every finished cycle. plan is nil when the cycle
// failed before planning completed.
type Observer interface {
	ObserveCycle(plan *firewall.Plan, res iptables.Result, duration time.Duration, err error)
}

// Reconciler periodically re-plans the firewall from fresh facts and
// applies the result, so rules follow bridges as they come and go and
// foreign changes to managed chains are reverted.
type Reconciler struct {
	facts     facts.Provider
	planner   Planner
	applier   Applier
	cfg       Config
	logger    *slog.Logger
	snapshot  *planSnapshot
	triggerCh chan struct{}
	observers []Observer
}

// NewReconciler creates a new Reconciler with the given configuration.
// Config defaults are applied automatically.
func NewReconciler(provider facts.Provider, planner Planner, applier Applier, cfg Config, logger *slog.Logger) *Reconciler {
	cfg.ApplyDefaults()
	return &Reconciler{
		facts:     provider,
		planner:   planner,
		applier:   applier,
		cfg:       cfg,
		logger:    logger.With("component", "reconcile"),
		snapshot:  newPlanSnapshot(),
		triggerCh: make(chan struct{}, 1),
	}
}

// AddObserver registers o for cycle notifications. It must be called
// before Run.
func (r *Reconciler) AddObserver(o Observer) {
	r.observers = append(r.observers, o)
}

// TriggerReconcile requests an immediate convergence cycle.
// Multiple rapid calls are coalesced; only one extra cycle runs.
func (r *Reconciler) TriggerReconcile() {
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the outcome of the most recent cycles.
func (r *Reconciler) Status() Status {
	return r.snapshot.Status()
}

// Run starts the convergence loop. It blocks until ctx is cancelled.
// The first cycle runs immediately; subsequent cycles run at cfg.Interval
// or when TriggerReconcile is called. A failed cycle is logged and retried
// on the next tick.
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.check(); err != nil {
		return err
	}

	r.logger.Info("reconciler started", "interval", r.cfg.Interval)

	r.runCycle(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return ctx.Err()

		case <-ticker.C:
			r.runCycle(ctx)

		case <-r.triggerCh:
			r.runCycle(ctx)
			ticker.Reset(r.cfg.Interval)
		}
	}
}

// RunOnce performs a single cycle: gather facts, plan, apply.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	if err := r.check(); err != nil {
		return err
	}
	start := time.Now()
	plan, res, err := r.cycle(ctx)
	if err != nil {
		r.snapshot.Fail(err)
	}
	for _, o := range r.observers {
		o.ObserveCycle(plan, res, time.Since(start), err)
	}
	return err
}

func (r *Reconciler) check() error {
	switch {
	case r.facts == nil:
		return errors.New("reconcile: fact provider is nil")
	case r.planner == nil:
		return errors.New("reconcile: planner is nil")
	case r.applier == nil:
		return errors.New("reconcile: applier is nil")
	}
	return nil
}

func (r *Reconciler) runCycle(ctx context.Context) {
	if err := r.RunOnce(ctx); err != nil {
		// Don't log if the context was cancelled (graceful shutdown).
		if ctx.Err() == nil {
			r.logger.Warn("convergence cycle failed", "error", err)
		}
	}
}

func (r *Reconciler) cycle(ctx context.Context) (*firewall.Plan, iptables.Result, error) {
	start := time.Now()

	snap, err := r.facts.Snapshot(ctx)
	if err != nil {
		return nil, iptables.Result{}, fmt.Errorf("reconcile: facts: %w", err)
	}
	plan, err := r.planner.Plan(snap)
	if err != nil {
		return nil, iptables.Result{}, fmt.Errorf("reconcile: plan: %w", err)
	}
	digest, err := plan.Digest()
	if err != nil {
		return plan, iptables.Result{}, fmt.Errorf("reconcile: %w", err)
	}

	prev := r.snapshot.Status().Digest
	if diff := ComputeDiff(plan, r.snapshot.Plan()); digest != prev && diff.IsEmpty() {
		r.logger.Debug("firewall plan reordered", "digest", digest, "previous", prev)
	} else if digest != prev {
		r.logger.Info("firewall plan changed",
			"digest", digest,
			"previous", prev,
			"chains_added", len(diff.ChainsAdded),
			"chains_changed", len(diff.ChainsChanged),
			"chains_removed", len(diff.ChainsRemoved),
			"rules_added", len(diff.RulesAdded),
			"rules_changed", len(diff.RulesChanged),
			"rules_removed", len(diff.RulesRemoved),
		)
		for _, key := range diff.RulesAdded {
			r.logger.Debug("rule added to plan", "rule", key)
		}
		for _, key := range diff.RulesRemoved {
			r.logger.Debug("rule dropped from plan", "rule", key)
		}
	}

	res, err := r.safeApply(ctx, plan)
	if err != nil {
		return plan, res, fmt.Errorf("reconcile: apply: %w", err)
	}
	r.snapshot.Update(plan, digest, res, time.Now())

	r.logger.Debug("convergence cycle completed",
		"digest", digest,
		"changed", res.Changed(),
		"duration", time.Since(start),
	)
	return plan, res, nil
}

// safeApply calls the applier with panic recovery.
func (r *Reconciler) safeApply(ctx context.Context, plan *firewall.Plan) (res iptables.Result, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("applier panicked: %v\n%s", v, debug.Stack())
		}
	}()
	return r.applier.Apply(ctx, plan)
}
