// Package behavior implements the Behavior-Oriented Concurrency scheduler:
// atomic multi-region acquisition via two-phase locking over per-region
// MCS-style FIFOs, and a termination barrier (spec §4.3).
package behavior

import (
	"fmt"
	"runtime"
	"sort"
	"sync/atomic"

	"boc/pkg/region"
)

// Thunk is the body of a behavior. regions is supplied in the same
// canonicalized (ascending-identity, deduplicated) order the behavior was
// declared with; a thunk that ignores its parameters is fine — zero-region
// behaviors in particular have nothing to pass.
type Thunk func(worker *region.Worker, regions []*region.Region) error

// Behavior is a thunk together with the set of shared regions it must
// acquire exclusively, atomically, before running (spec §4.3).
type Behavior struct {
	sched   *Scheduler
	thunk   Thunk
	regions []*region.Region
	reqs    []*request
	worker  *region.Worker

	pending int64 // atomic; n+1, the extra 1 is the enqueue-phase slack
}

var defaultScheduler = NewScheduler()

// When submits a behavior over regions to the default scheduler.
func When(regions []*region.Region, thunk Thunk) error {
	return defaultScheduler.When(regions, thunk)
}

// Wait blocks on the default scheduler's termination barrier.
func Wait() error { return defaultScheduler.Wait() }

// ResetDefault replaces the package-level default scheduler. Intended for
// test teardown between independently-verified scenarios.
func ResetDefault() { defaultScheduler = NewScheduler() }

// When submits a behavior over the given shared regions. Every region must
// already be shared — dispatching over a private region is an isolation
// failure (S6) and is rejected synchronously, before the behavior is
// counted against the termination barrier at all.
func (s *Scheduler) When(regions []*region.Region, thunk Thunk) error {
	canon, err := canonicalizeShared(regions)
	if err != nil {
		return err
	}

	b := &Behavior{
		sched:   s,
		thunk:   thunk,
		regions: canon,
		worker:  region.NewWorker(),
	}
	b.reqs = make([]*request, len(canon))
	for i, r := range canon {
		b.reqs[i] = &request{target: r}
	}

	s.barrierAdd()

	if len(canon) == 0 {
		// when(): no region to acquire, pending starts at the slack alone.
		atomic.StoreInt64(&b.pending, 1)
		b.resolveOne()
		return nil
	}

	atomic.StoreInt64(&b.pending, int64(len(canon))+1)
	for i, r := range canon {
		b.startEnqueue(r, b.reqs[i])
	}
	for _, req := range b.reqs {
		req.markScheduled()
	}
	b.resolveOne()
	return nil
}

// canonicalizeShared dedupes regions to a set and sorts by ascending
// identity — the global well-order the 2PL enqueue relies on to rule out
// deadlock (spec §4.3) — after checking every region is shared.
func canonicalizeShared(regions []*region.Region) ([]*region.Region, error) {
	seen := make(map[region.RegionID]*region.Region, len(regions))
	for _, r := range regions {
		r = r.Canonical()
		if !r.IsShared() {
			return nil, &region.Error{
				Kind:   region.ErrMustBeShared,
				Region: r.Name(),
				Detail: "behavior declared over a private region",
			}
		}
		seen[r.Identity()] = r
	}
	out := make([]*region.Region, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity() < out[j].Identity() })
	return out, nil
}

// resolveOne decrements pending; when it reaches zero every region in the
// behavior's set has been linked (or the zero-region slack alone has run
// out), and the behavior is handed to a fresh goroutine to run.
func (b *Behavior) resolveOne() {
	if atomic.AddInt64(&b.pending, -1) == 0 {
		go b.run()
	}
}

// startEnqueue performs phase 1 of 2PL on one region: atomically swap the
// region's queue tail for this behavior's request, and if a predecessor was
// already queued, link ourselves as its successor and spin until it has
// itself finished phase 1 across all of its regions (its scheduled flag).
func (b *Behavior) startEnqueue(r *region.Region, req *request) {
	prev := r.SwapLast(req)
	if prev == nil {
		b.resolveOne()
		return
	}
	prevReq := prev.(*request)
	prevReq.setNext(b)
	for !prevReq.isScheduled() {
		runtime.Gosched()
	}
}

// run executes the behavior once all declared regions have been granted,
// then releases them and hands off to any queued successors.
func (b *Behavior) run() {
	defer b.sched.barrierDone()

	for _, r := range b.regions {
		r.AcquireForBehavior(b.worker)
	}

	err := b.safeRun()

	for _, r := range b.regions {
		r.ReleaseForBehavior(b.worker)
	}
	for _, req := range b.reqs {
		release(req)
	}

	if err != nil {
		b.sched.recordErr(err)
	}
}

func (b *Behavior) safeRun() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("behavior panic: %v", rec)
		}
	}()
	return b.thunk(b.worker, b.regions)
}

// release performs the MCS-style hand-off for one region (spec §4.3): if
// nobody has enqueued after us, try to clear the region's tail back to
// idle; otherwise wait for the successor to finish linking and wake it.
func release(req *request) {
	req.nextMu.Lock()
	next := req.next
	req.nextMu.Unlock()

	if next == nil {
		if req.target.CompareAndClearLast(req) {
			return
		}
	}

	for next == nil {
		runtime.Gosched()
		next = req.getNext()
	}
	next.resolveOne()
}
