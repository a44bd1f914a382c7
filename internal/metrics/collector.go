package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/plexsphere/dockerfw/internal/firewall"
	"github.com/plexsphere/dockerfw/internal/iptables"
)

const namespace = "dockerfw"

// Collector records convergence cycles. It implements reconcile.Observer.
type Collector struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	duration      prometheus.Histogram
	ruleChanges   *prometheus.CounterVec
	chainChanges  *prometheus.CounterVec
	policyChanges prometheus.Counter
	planRules     *prometheus.GaugeVec
	lastSuccess   prometheus.Gauge
}

// NewCollector creates a Collector with its own registry, which also
// carries the Go runtime and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Convergence cycles by outcome.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of convergence cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		ruleChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_changes_total",
			Help:      "Rules changed in the kernel, by kind.",
		}, []string{"kind"}),
		chainChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_changes_total",
			Help:      "Chains created or deleted in the kernel.",
		}, []string{"kind"}),
		policyChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_changes_total",
			Help:      "Built-in chain policies changed.",
		}),
		planRules: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plan_rules",
			Help:      "Rules in the current plan, by table.",
		}, []string{"table"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful cycle.",
		}),
	}
	reg.MustRegister(
		c.cycles, c.duration, c.ruleChanges, c.chainChanges,
		c.policyChanges, c.planRules, c.lastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveCycle records one finished convergence cycle.
func (c *Collector) ObserveCycle(plan *firewall.Plan, res iptables.Result, duration time.Duration, err error) {
	c.duration.Observe(duration.Seconds())

	c.ruleChanges.WithLabelValues("inserted").Add(float64(res.RulesInserted))
	c.ruleChanges.WithLabelValues("replaced").Add(float64(res.RulesReplaced))
	c.ruleChanges.WithLabelValues("purged").Add(float64(res.RulesPurged))
	c.chainChanges.WithLabelValues("created").Add(float64(res.ChainsCreated))
	c.chainChanges.WithLabelValues("deleted").Add(float64(res.ChainsDeleted))
	c.policyChanges.Add(float64(res.PoliciesSet))

	if plan != nil {
		c.planRules.Reset()
		for _, r := range plan.Rules {
			c.planRules.WithLabelValues(string(r.Table)).Inc()
		}
	}

	if err != nil {
		c.cycles.WithLabelValues("failure").Inc()
		return
	}
	c.cycles.WithLabelValues("success").Inc()
	c.lastSuccess.SetToCurrentTime()
}
