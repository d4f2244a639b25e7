// Package scheduler owns the single sync slot: at most one reconciliation
// cycle runs at a time, whether the timer or an operator started it.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/proxyops/certsyncd/internal/engine"
	"github.com/proxyops/certsyncd/pkg/common/iface"
)

// ErrSyncInProgress is returned to manual triggers that arrive while a cycle
// is in flight. It is a control signal, not a failure: the caller checks
// status later instead of queueing.
var ErrSyncInProgress = errors.New("sync already in progress")

// Runner executes one reconciliation cycle.
type Runner interface {
	RunCycle(ctx context.Context) engine.CycleResult
}

// State is a point-in-time snapshot of the scheduler.
type State struct {
	Running         bool      `json:"running"`
	LastSyncAt      time.Time `json:"last_sync_at,omitzero"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitzero"`
	Interval        string    `json:"interval"`
}

// Scheduler drives periodic cycles and accepts non-blocking manual triggers.
// Scheduler state is not persisted: after a restart the first cycle runs at
// startup and the interval counts from there.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	log      iface.Logger
	baseCtx  context.Context

	mu     sync.Mutex
	busy   bool
	lastAt time.Time
	nextAt time.Time
}

// New creates a scheduler. Every cycle, including manually triggered ones,
// runs on baseCtx so process shutdown reaches it.
func New(baseCtx context.Context, runner Runner, interval time.Duration, log iface.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		log:      log,
		baseCtx:  baseCtx,
	}
}

// Run executes the startup cycle and then one cycle per interval until the
// base context is cancelled. A tick that finds a cycle already in flight
// (from a manual trigger) is skipped silently.
func (s *Scheduler) Run() {
	ctx := s.baseCtx
	s.log.Info("scheduler started, interval %s", s.interval)
	s.runScheduled(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runScheduled(ctx)
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		}
	}
}

// TriggerNow starts a cycle in the background and returns immediately.
// Returns ErrSyncInProgress when the slot is taken; it never blocks waiting
// for the running cycle.
func (s *Scheduler) TriggerNow() error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrSyncInProgress
	}
	s.busy = true
	s.mu.Unlock()

	go func() {
		defer s.release()
		s.runner.RunCycle(s.baseCtx)
	}()
	return nil
}

// State returns the current scheduler snapshot.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Running:         s.busy,
		LastSyncAt:      s.lastAt,
		NextScheduledAt: s.nextAt,
		Interval:        s.interval.String(),
	}
}

// runScheduled runs a cycle synchronously on the timer path, skipping when
// the slot is already taken.
func (s *Scheduler) runScheduled(ctx context.Context) {
	s.mu.Lock()
	if s.busy {
		s.nextAt = time.Now().Add(s.interval)
		s.mu.Unlock()
		s.log.Info("sync already in progress, skipping scheduled cycle")
		return
	}
	s.busy = true
	s.nextAt = time.Now().Add(s.interval)
	s.mu.Unlock()

	defer s.release()
	s.runner.RunCycle(ctx)
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.busy = false
	s.lastAt = time.Now()
	s.mu.Unlock()
}
