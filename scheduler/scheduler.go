// Package scheduler implements the cooperative, single-threaded driver that
// steps every registered actor: a list of "process once" closures invoked in
// order, with no timers, pollers, or microtask ring involved.
package scheduler

import (
	"sync"
)

// ProcessFunc is one unit of schedulable work: it performs one non-blocking
// step and reports whether it should remain scheduled (true) or be retired
// (false). It MUST NOT suspend; callers (typically an actor.ParentWrapper's
// Process method, adapted to this signature) are expected to return
// promptly on every call.
type ProcessFunc func() (keepScheduled bool)

// Scheduler owns the active list of process functions and the not-yet-
// merged enqueue buffer. The zero value is not usable; construct one with
// New.
//
// Split into Scheduler (drives Process) and Enqueuer (only enqueues) so
// that an actor being processed can register a new sub-actor's process
// function without reentering Process itself, avoiding a reentrant
// deadlock.
type Scheduler struct {
	mu       sync.Mutex
	active   []ProcessFunc
	pending  []ProcessFunc
}

// New returns an owning Scheduler and a cheap, cloneable Enqueuer bound to
// it.
func New() (*Scheduler, Enqueuer) {
	s := &Scheduler{}
	return s, Enqueuer{s: s}
}

// Enqueuer is a cloneable handle that can register new process functions
// but cannot drive a sweep. Copying an Enqueuer is always safe; all copies
// share the same underlying Scheduler.
type Enqueuer struct {
	s *Scheduler
}

// Enqueue appends f to the scheduler's pending queue. f is merged into the
// active list at the start of the next Process call, never the one in
// progress (if any) -- a function enqueued mid-sweep is not invoked in that
// same sweep.
func (e Enqueuer) Enqueue(f ProcessFunc) {
	e.s.mu.Lock()
	e.s.pending = append(e.s.pending, f)
	e.s.mu.Unlock()
}

// Enqueue is equivalent to s.Enqueuer().Enqueue(f); provided so an owner
// holding only the Scheduler doesn't need to mint an Enqueuer for a single
// call.
func (s *Scheduler) Enqueue(f ProcessFunc) {
	s.mu.Lock()
	s.pending = append(s.pending, f)
	s.mu.Unlock()
}

// Enqueuer returns a new handle sharing this scheduler.
func (s *Scheduler) Enqueuer() Enqueuer {
	return Enqueuer{s: s}
}

// Process merges any pending functions into the active list, then invokes
// every active function once, in insertion order, retaining only those that
// returned true. It returns how many functions remain in the active list
// after the sweep, and how many functions retired themselves this sweep.
func (s *Scheduler) Process() (remaining int, retired int) {
	s.mu.Lock()
	if len(s.pending) > 0 {
		s.active = append(s.active, s.pending...)
		s.pending = nil
	}
	active := s.active
	s.mu.Unlock()

	kept := active[:0]
	for _, f := range active {
		if f() {
			kept = append(kept, f)
		} else {
			retired++
		}
	}

	s.mu.Lock()
	s.active = kept
	remaining = len(s.active)
	s.mu.Unlock()

	return remaining, retired
}

// Len returns the number of actively scheduled process functions, not
// counting anything still pending merge.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Quiescent reports whether there is no active or pending work left.
func (s *Scheduler) Quiescent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) == 0 && len(s.pending) == 0
}

// Run calls Process repeatedly until the scheduler is quiescent or stop
// reports true. It returns the number of sweeps performed. Intended for
// tests and simple command-line drivers; long-running services typically
// drive Process from their own event loop instead.
func (s *Scheduler) Run(stop func() bool) (sweeps int) {
	for {
		if stop != nil && stop() {
			return sweeps
		}
		s.Process()
		sweeps++
		if s.Quiescent() {
			return sweeps
		}
	}
}
