package region

// Wrapped intercepts attribute, indexing, and membership operations on a
// captured mutable value, enforcing that the calling worker currently
// holds the owning region open (spec §4.4). Reads that produce a nested
// mutable value are re-wrapped for the same region; reads that produce an
// immutable value, a Region, or a method pass through unwrapped.
type Wrapped struct {
	region *Region
	target Value
}

// Wrap produces an isolated-object wrapper over v for region r. v must
// already have been captured into r (or be in the process of being, via
// Capture).
func Wrap(r *Region, v Value) *Wrapped {
	return &Wrapped{region: r.Canonical(), target: v}
}

// Region returns the region that owns the wrapped value.
func (w *Wrapped) Region() *Region { return w.region.Canonical() }

// Unwrap returns the raw underlying value without any access check. Only
// safe to call when the caller already knows it holds the region open, or
// for read-only introspection (e.g. printing) that does not care about
// isolation.
func (w *Wrapped) Unwrap() Value { return w.target }

func (w *Wrapped) checkOpen(worker *Worker) error {
	r := w.Region()
	if r.openedBy() != worker.ID() {
		return newErr(ErrRegionNotOpen, r.name, "value accessed outside its region's acquisition")
	}
	return nil
}

// autoWrap re-wraps a value read out of a container so that further
// mutable access routes back through isolation checks. Immutable values,
// Region handles, and already-wrapped values pass through unchanged.
func autoWrap(r *Region, v Value) Value {
	switch v.Kind {
	case KindSequence, KindMap, KindSet, KindObject:
		return FromWrapped(Wrap(r, v))
	default:
		return v
	}
}

// Get reads an attribute of a wrapped Object. The wrapped form of a
// mutable value is written back onto the host's field slot so repeated
// reads observe the same logical value (spec §4.4 and SPEC_FULL.md Open
// Question 2); this caching applies only to attribute storage, not to
// transient reads such as sequence indexing.
func (w *Wrapped) Get(worker *Worker, key string) (Value, error) {
	if err := w.checkOpen(worker); err != nil {
		return Value{}, err
	}
	if w.target.Kind != KindObject {
		return Value{}, newErr(ErrRegionNotOpen, w.Region().name, "attribute access on a non-object value")
	}
	obj := w.target.Obj
	raw, ok := obj.rawGet(key)
	if !ok {
		return Value{}, newErr(ErrRegionNotOpen, w.Region().name, "attribute '"+key+"' not found")
	}
	if raw.Kind == KindWrapped || IsImmutable(raw) || raw.Kind == KindRegion {
		return raw, nil
	}
	wrapped := autoWrap(w.Region(), raw)
	obj.rawSet(key, wrapped)
	return wrapped, nil
}

// Set writes an attribute of a wrapped Object, applying the assignment
// semantics of spec §4.2.
func (w *Wrapped) Set(worker *Worker, key string, v Value) error {
	if err := w.checkOpen(worker); err != nil {
		return err
	}
	if w.target.Kind != KindObject {
		return newErr(ErrRegionNotOpen, w.Region().name, "attribute assignment on a non-object value")
	}
	stored, err := assignInto(w.Region(), v)
	if err != nil {
		return err
	}
	w.target.Obj.rawSet(key, stored)
	return nil
}

// Len reports the length of a wrapped Sequence.
func (w *Wrapped) Len(worker *Worker) (int, error) {
	if err := w.checkOpen(worker); err != nil {
		return 0, err
	}
	if w.target.Kind != KindSequence {
		return 0, newErr(ErrRegionNotOpen, w.Region().name, "length access on a non-sequence value")
	}
	return w.target.Seq.Len(), nil
}

// At reads an element of a wrapped Sequence by index.
func (w *Wrapped) At(worker *Worker, i int) (Value, error) {
	if err := w.checkOpen(worker); err != nil {
		return Value{}, err
	}
	if w.target.Kind != KindSequence {
		return Value{}, newErr(ErrRegionNotOpen, w.Region().name, "index access on a non-sequence value")
	}
	v, ok := w.target.Seq.rawAt(i)
	if !ok {
		return Value{}, newErr(ErrRegionNotOpen, w.Region().name, "sequence index out of range")
	}
	if IsImmutable(v) || v.Kind == KindRegion || v.Kind == KindWrapped {
		return v, nil
	}
	return autoWrap(w.Region(), v), nil
}

// SetAt writes an element of a wrapped Sequence by index.
func (w *Wrapped) SetAt(worker *Worker, i int, v Value) error {
	if err := w.checkOpen(worker); err != nil {
		return err
	}
	if w.target.Kind != KindSequence {
		return newErr(ErrRegionNotOpen, w.Region().name, "index assignment on a non-sequence value")
	}
	stored, err := assignInto(w.Region(), v)
	if err != nil {
		return err
	}
	if !w.target.Seq.rawSetAt(i, stored) {
		return newErr(ErrRegionNotOpen, w.Region().name, "sequence index out of range")
	}
	return nil
}

// Append adds an element to a wrapped Sequence.
func (w *Wrapped) Append(worker *Worker, v Value) error {
	if err := w.checkOpen(worker); err != nil {
		return err
	}
	if w.target.Kind != KindSequence {
		return newErr(ErrRegionNotOpen, w.Region().name, "append on a non-sequence value")
	}
	stored, err := assignInto(w.Region(), v)
	if err != nil {
		return err
	}
	w.target.Seq.rawAppend(stored)
	return nil
}

// MapGet reads an entry of a wrapped MapVal.
func (w *Wrapped) MapGet(worker *Worker, key string) (Value, bool, error) {
	if err := w.checkOpen(worker); err != nil {
		return Value{}, false, err
	}
	if w.target.Kind != KindMap {
		return Value{}, false, newErr(ErrRegionNotOpen, w.Region().name, "map access on a non-map value")
	}
	v, ok := w.target.Map.rawGet(key)
	if !ok {
		return Value{}, false, nil
	}
	if IsImmutable(v) || v.Kind == KindRegion || v.Kind == KindWrapped {
		return v, true, nil
	}
	return autoWrap(w.Region(), v), true, nil
}

// MapSet writes an entry of a wrapped MapVal.
func (w *Wrapped) MapSet(worker *Worker, key string, v Value) error {
	if err := w.checkOpen(worker); err != nil {
		return err
	}
	if w.target.Kind != KindMap {
		return newErr(ErrRegionNotOpen, w.Region().name, "map assignment on a non-map value")
	}
	stored, err := assignInto(w.Region(), v)
	if err != nil {
		return err
	}
	w.target.Map.rawSet(key, stored)
	return nil
}

// SetAdd adds a member to a wrapped SetVal, keyed by the caller-supplied
// identity string.
func (w *Wrapped) SetAdd(worker *Worker, key string, v Value) error {
	if err := w.checkOpen(worker); err != nil {
		return err
	}
	if w.target.Kind != KindSet {
		return newErr(ErrRegionNotOpen, w.Region().name, "set add on a non-set value")
	}
	stored, err := assignInto(w.Region(), v)
	if err != nil {
		return err
	}
	w.target.Set.rawAdd(key, stored)
	return nil
}
