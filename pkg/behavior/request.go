package behavior

import (
	"sync"

	"boc/pkg/region"
)

// request is a behavior's per-region enqueue node (spec §4.3): target is
// the region it was linked against, next is the successor behavior once
// one enqueues after it, and scheduled is the flag a successor spins on
// during its phase 1 of two-phase enqueue. next and scheduled are guarded by
// independent mutexes so a reader of one is never blocked by the other.
type request struct {
	target *region.Region

	nextMu sync.Mutex
	next   *Behavior

	scheduledMu sync.Mutex
	scheduled   bool
}

func (r *request) setNext(b *Behavior) {
	r.nextMu.Lock()
	r.next = b
	r.nextMu.Unlock()
}

func (r *request) getNext() *Behavior {
	r.nextMu.Lock()
	defer r.nextMu.Unlock()
	return r.next
}

func (r *request) markScheduled() {
	r.scheduledMu.Lock()
	r.scheduled = true
	r.scheduledMu.Unlock()
}

func (r *request) isScheduled() bool {
	r.scheduledMu.Lock()
	defer r.scheduledMu.Unlock()
	return r.scheduled
}
