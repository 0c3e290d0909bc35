package region

// assignInto implements the assignment semantics of spec §4.2 for a write
// of v into region r (through an attribute, a sequence slot, a map entry,
// or a set member — the rule is the same for all of them): decide whether
// the write is legal, and return the Value that should actually be stored
// (a Region is stored as-is; any other mutable value is wrapped after
// being captured).
func assignInto(r *Region, v Value) (Value, error) {
	if v.Kind == KindRegion {
		if err := assignRegion(r, v.RegionRef); err != nil {
			return Value{}, err
		}
		return v, nil
	}

	if IsImmutable(v) {
		return v, nil
	}

	if v.Kind == KindWrapped {
		cur := v.Wrapped.Region()
		if cur != r {
			return Value{}, newErr(ErrCrossRegionLeak, r.name, "wrapped value belongs to another region")
		}
		return v, nil
	}

	if err := checkAssignmentSet(r, v); err != nil {
		return Value{}, err
	}
	if err := Capture(r, v, false); err != nil {
		return Value{}, err
	}
	return autoWrap(r, v), nil
}

// checkAssignmentSet rejects a write whose regions_of(self) ∪ regions_of(v)
// ∪ {∅, R} set would exceed two members (invariant 5): the value must
// currently be free or already in R.
func checkAssignmentSet(r *Region, v Value) error {
	cur := regionOfValue(v)
	if cur == nil {
		return nil
	}
	if cur.Canonical() == r {
		return nil
	}
	return newErr(ErrInvalidAssignment, r.name, "value already belongs to another region")
}

// regionOfValue returns the region owning a raw mutable container value,
// or nil if it is free or immutable.
func regionOfValue(v Value) *Region {
	switch v.Kind {
	case KindSequence:
		return v.Seq.RegionOf()
	case KindMap:
		return v.Map.RegionOf()
	case KindSet:
		return v.Set.RegionOf()
	case KindObject:
		return v.Obj.RegionOf()
	case KindWrapped:
		return v.Wrapped.Region()
	default:
		return nil
	}
}

// assignRegion implements the Region-valued branch of §4.2: accept iff v is
// shared, v == R, R owns v, or v is free and not an ancestor of R (the
// ancestor check is this implementation's resolution of the spec's
// "root(self) ≠ v" clause — see DESIGN.md Open Question decision 5; it is
// the only reading that keeps the containment forest acyclic).
func assignRegion(r *Region, v *Region) error {
	r = r.Canonical()
	v = v.Canonical()

	if v.IsShared() || v == r {
		return nil
	}
	if v.Parent() == r {
		return nil
	}
	if v.IsFree() {
		if v.isAncestorOf(r) {
			return newErr(ErrInvalidRegionAssignment, r.name, "assignment would create a region cycle")
		}
		return r.attachChild(v)
	}
	return newErr(ErrInvalidRegionAssignment, r.name, "region is owned elsewhere and not shared")
}

// RegionOf returns the region currently owning v, or (nil, false) if v is
// free or immutable. Implements the region_of external operation (spec
// §6).
func RegionOf(v Value) (*Region, bool) {
	r := regionOfValue(v)
	if r == nil {
		return nil, false
	}
	return r.Canonical(), true
}

// RegionsOf implements the regions_of external operation (spec §6): the
// set of distinct regions any of vs currently belongs to.
func RegionsOf(vs ...Value) map[*Region]struct{} {
	out := make(map[*Region]struct{})
	for _, v := range vs {
		if r, ok := RegionOf(v); ok {
			out[r] = struct{}{}
		}
	}
	return out
}

// RootRegion walks a region's parent chain to its free ancestor, or
// returns the region itself if it is already free. Implements the
// root_region external operation (spec §6), grounded on
// gavlooth-purple_go/pkg/memory/region.go's IsAncestorRegion parent walk.
func RootRegion(v Value) (*Region, bool) {
	r, ok := RegionOf(v)
	if !ok {
		return nil, false
	}
	for {
		p := r.Parent()
		if p == nil {
			return r, true
		}
		r = p.Canonical()
	}
}

// IsImmutableValue is an alias kept for external callers that prefer the
// is_immutable(value) spelling used in spec §6.
func IsImmutableValue(v Value) bool { return IsImmutable(v) }
