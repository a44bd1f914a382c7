package reconcile

import (
	"sync"
	"time"

	"github.com/plexsphere/dockerfw/internal/firewall"
	"github.com/plexsphere/dockerfw/internal/iptables"
)

// Status describes the outcome of the most recent convergence cycles.
type Status struct {
	// Digest of the last successfully applied plan. Empty until the first
	// successful cycle.
	Digest    string
	AppliedAt time.Time
	Result    iptables.Result

	// LastError is the error of the most recent cycle, or nil if it
	// succeeded.
	LastError error
	Cycles    int
	Failures  int
}

// planSnapshot holds the last applied plan. All access is protected by a
// sync.RWMutex so Status can be read while the loop writes.
type planSnapshot struct {
	mu     sync.RWMutex
	plan   *firewall.Plan
	status Status
}

func newPlanSnapshot() *planSnapshot {
	return &planSnapshot{}
}

// Plan returns the last applied plan. The returned plan must not be
// modified.
func (s *planSnapshot) Plan() *firewall.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plan
}

// Status returns a copy of the current status.
func (s *planSnapshot) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Update records a successfully applied plan.
func (s *planSnapshot) Update(plan *firewall.Plan, digest string, res iptables.Result, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = plan
	s.status.Digest = digest
	s.status.AppliedAt = at
	s.status.Result = res
	s.status.LastError = nil
	s.status.Cycles++
}

// Fail records a failed cycle. The last applied plan is kept.
func (s *planSnapshot) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastError = err
	s.status.Cycles++
	s.status.Failures++
}
