package behavior

import "sync"

// Scheduler runs behaviors over shared regions and owns the termination
// barrier of spec §4.3: a counter seeded with the "+1" slack so Wait can
// always perform one decrement of its own regardless of how many
// behaviors have been submitted, a condition variable woken when that
// counter reaches zero, and a captured-error queue from which Wait re-raises the
// first thunk failure.
type Scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending int64
	errs    []error
}

// NewScheduler creates a scheduler with its termination barrier armed.
func NewScheduler() *Scheduler {
	s := &Scheduler{pending: 1}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// barrierAdd registers one more outstanding behavior (called synchronously
// from When, before the submitting goroutine continues — this is what
// makes a nested when() issued from inside a running thunk safe: the
// parent behavior's own barrierDone cannot fire until after the nested
// When call returns and increments pending).
func (s *Scheduler) barrierAdd() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

func (s *Scheduler) barrierDone() {
	s.mu.Lock()
	s.pending--
	if s.pending == 0 {
		s.cond.Broadcast()
	}
	s.mu.Unlock()
}

func (s *Scheduler) recordErr(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

// Wait blocks until every behavior submitted to s, and any it transitively
// declared, has finished running, then re-raises the first captured thunk
// error, if any (spec §4.3's termination barrier).
func (s *Scheduler) Wait() error {
	s.mu.Lock()
	s.pending--
	if s.pending == 0 {
		s.cond.Broadcast()
	}
	for s.pending > 0 {
		s.cond.Wait()
	}
	var err error
	if len(s.errs) > 0 {
		err = s.errs[0]
	}
	s.mu.Unlock()
	return err
}
