package region

import (
	"sync"
	"sync/atomic"
)

// Region is a uniquely identified handle over a set of mutable objects,
// reified as a first-class value per spec §3/§4.2: state (open/closed,
// shared/private, free/owned), a containment tree, an attribute namespace
// (its root), and merge/freeze/detach operations.
//
// Grounded on gavlooth-purple_go's pkg/memory/region.go scope-hierarchy
// Region type (ID/Parent/Children/Objects), generalized from a static
// scope-nesting allocator to a runtime handle with open/shared state and a
// scheduler hand-off surface.
type Region struct {
	identity RegionID
	name     string

	mu       sync.Mutex
	shared   bool
	openBy   WorkerID
	parent   *Region
	children []*Region
	alias    *Region
	root     *Object

	// Per-region acquisition FIFO tail, used only once the region is
	// shared. last holds a *behavior request (an opaque type owned by the
	// behavior package); Region never imports behavior, so the field is
	// untyped and only manipulated through SwapLast/CompareAndClearLast.
	schedMu sync.Mutex
	last    any
}

// Create allocates a new region: closed, free, private. If name is empty
// a unique name is generated.
func Create(name string) (*Region, error) {
	if name == "" {
		name = generateName()
	}
	if err := reserveName(name); err != nil {
		return nil, err
	}
	r := &Region{
		identity: RegionID(atomic.AddUint64(&nextRegionID, 1)),
		name:     name,
		root:     NewObject(),
	}
	r.root.setRegion(r)
	register(r)
	return r, nil
}

// Identity returns the region's authoritative identifier.
func (r *Region) Identity() RegionID { return r.Canonical().identity }

// Name returns the region's human label.
func (r *Region) Name() string { return r.Canonical().name }

// Canonical follows alias pointers installed by Merge to the region that
// now owns this region's namespace. Collapsed lazily on each call rather
// than eagerly rewritten at merge time (see SPEC_FULL.md Open Question 3):
// the chain length is bounded by the number of merges involving this
// region, so a lazy walk costs nothing proportional to usage.
func (r *Region) Canonical() *Region {
	cur := r
	for {
		cur.mu.Lock()
		next := cur.alias
		cur.mu.Unlock()
		if next == nil {
			return cur
		}
		cur = next
	}
}

// IsShared reports whether the region has transitioned to shared.
func (r *Region) IsShared() bool {
	r = r.Canonical()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shared
}

// IsPrivate is the complement of IsShared.
func (r *Region) IsPrivate() bool { return !r.IsShared() }

// IsOpen reports whether some worker currently holds the region open.
func (r *Region) IsOpen() bool {
	r = r.Canonical()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openBy != 0
}

// IsFree reports whether the region has no parent.
func (r *Region) IsFree() bool {
	r = r.Canonical()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parent == nil
}

// openedBy reports which worker, if any, holds the region open.
func (r *Region) openedBy() WorkerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openBy
}

// Parent returns the region's owning region, or nil if free.
func (r *Region) Parent() *Region {
	r = r.Canonical()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parent
}

// Children returns a snapshot of the region's owned sub-regions.
func (r *Region) Children() []*Region {
	r = r.Canonical()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Region, len(r.children))
	copy(out, r.children)
	return out
}

// isAncestorOf reports whether r is an ancestor of (or equal to) other,
// walking the parent chain. Used to keep the containment forest acyclic
// when a Region value is assigned as an attribute (spec §4.2).
func (r *Region) isAncestorOf(other *Region) bool {
	r = r.Canonical()
	cur := other.Canonical()
	for cur != nil {
		if cur == r {
			return true
		}
		cur = cur.Parent()
	}
	return false
}

// attachChild makes child a child of r. child must currently be free.
func (r *Region) attachChild(child *Region) error {
	r = r.Canonical()
	child = child.Canonical()
	if child == r {
		return nil
	}
	child.mu.Lock()
	if child.parent != nil {
		child.mu.Unlock()
		return newErr(ErrRegionNotFree, child.name, "region already has a parent")
	}
	child.parent = r
	child.mu.Unlock()

	r.mu.Lock()
	r.children = append(r.children, child)
	r.mu.Unlock()
	return nil
}

// detachFromParent removes r from its parent's child list, making r free.
func (r *Region) detachFromParent() {
	r.mu.Lock()
	p := r.parent
	r.parent = nil
	r.mu.Unlock()
	if p == nil {
		return
	}
	p.mu.Lock()
	for i, c := range p.children {
		if c == r {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
}

// MakeShareable transitions the region private -> shared. Idempotent.
func (r *Region) MakeShareable() *Region {
	r = r.Canonical()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shared = true
	return r
}

// Enter performs scoped, exclusive acquisition of a private region (spec
// §4.2). It is only legal on private regions that are either free or
// whose parent chain is already open by the same worker (nested
// acquisition composes).
func (r *Region) Enter(w *Worker) error {
	r = r.Canonical()
	if r.IsShared() {
		return newErr(ErrMustBePrivate, r.name, "shared regions are acquired by a behavior, not entered")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.parent != nil && r.parent.openedBy() != w.ID() {
		return newErr(ErrRegionNotOpen, r.name, "parent region is not open by this worker")
	}
	r.openBy = w.ID()
	return nil
}

// Exit releases a scoped acquisition. It is always safe to call, including
// after a failed operation inside the scope, so callers can defer it
// immediately after a successful Enter.
func (r *Region) Exit(w *Worker) {
	r = r.Canonical()
	r.mu.Lock()
	if r.openBy == w.ID() {
		r.openBy = 0
	}
	r.mu.Unlock()
}

// AcquireForBehavior marks the region open by w without the private-only
// nesting rule Enter enforces; used exclusively by the behavior scheduler
// once 2PL has granted exclusive access.
func (r *Region) AcquireForBehavior(w *Worker) {
	r = r.Canonical()
	r.mu.Lock()
	r.openBy = w.ID()
	r.mu.Unlock()
}

// ReleaseForBehavior closes the region at the end of a behavior's
// execution, mirroring AcquireForBehavior.
func (r *Region) ReleaseForBehavior(w *Worker) {
	r.Exit(w)
}

// SwapLast atomically replaces the region's acquisition-queue tail,
// returning the previous tail (nil if the region was idle). Used by the
// behavior package's 2PL enqueue; node is opaque to this package.
func (r *Region) SwapLast(node any) any {
	r = r.Canonical()
	r.schedMu.Lock()
	prev := r.last
	r.last = node
	r.schedMu.Unlock()
	return prev
}

// CompareAndClearLast clears the tail iff it still equals expect, mirroring
// the MCS-queue release step (spec §4.3).
func (r *Region) CompareAndClearLast(expect any) bool {
	r = r.Canonical()
	r.schedMu.Lock()
	defer r.schedMu.Unlock()
	if r.last == expect {
		r.last = nil
		return true
	}
	return false
}
