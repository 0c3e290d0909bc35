package region

// Capture recursively absorbs v into r, implementing spec §4.1:
//
//   - immutable values: no-op.
//   - a value already owned by a different region: cross-region error,
//     unless overwrite is set (used internally by Merge's re-homing).
//   - a wrapped isolated object: re-point its region and recurse into the
//     wrapped target.
//   - a mutable collection: recurse into its elements.
//   - a Region: attach it as a child if free, otherwise error unless it is
//     already owned by r.
//   - anything else mutable (Object): record ownership and recurse into
//     its non-private attributes (those not prefixed with "_").
func Capture(r *Region, v Value, overwrite bool) error {
	r = r.Canonical()
	if IsImmutable(v) {
		return nil
	}

	switch v.Kind {
	case KindWrapped:
		return captureWrapped(r, v.Wrapped, overwrite)
	case KindSequence:
		return captureSequence(r, v.Seq, overwrite)
	case KindMap:
		return captureMap(r, v.Map, overwrite)
	case KindSet:
		return captureSet(r, v.Set, overwrite)
	case KindRegion:
		return captureRegion(r, v.RegionRef)
	case KindObject:
		return captureObject(r, v.Obj, overwrite)
	default:
		return nil
	}
}

func checkOwnership(r *Region, cur *Region, overwrite bool, what string) error {
	if cur == nil {
		return nil
	}
	if cur.Canonical() == r {
		return nil
	}
	if !overwrite {
		return newErr(ErrCrossRegionLeak, r.name, what+" already belongs to another region")
	}
	return nil
}

func captureWrapped(r *Region, w *Wrapped, overwrite bool) error {
	if err := checkOwnership(r, w.region, overwrite, "wrapped object"); err != nil {
		return err
	}
	w.region = r
	return Capture(r, w.target, overwrite)
}

func captureSequence(r *Region, s *Sequence, overwrite bool) error {
	if err := checkOwnership(r, s.RegionOf(), overwrite, "sequence"); err != nil {
		return err
	}
	s.setRegion(r)
	for _, item := range s.Snapshot() {
		if err := Capture(r, item, overwrite); err != nil {
			return err
		}
	}
	return nil
}

func captureMap(r *Region, m *MapVal, overwrite bool) error {
	if err := checkOwnership(r, m.RegionOf(), overwrite, "map"); err != nil {
		return err
	}
	m.setRegion(r)
	_, entries := m.Snapshot()
	for _, v := range entries {
		if err := Capture(r, v, overwrite); err != nil {
			return err
		}
	}
	return nil
}

func captureSet(r *Region, s *SetVal, overwrite bool) error {
	if err := checkOwnership(r, s.RegionOf(), overwrite, "set"); err != nil {
		return err
	}
	s.setRegion(r)
	for _, v := range s.Snapshot() {
		if err := Capture(r, v, overwrite); err != nil {
			return err
		}
	}
	return nil
}

func captureObject(r *Region, o *Object, overwrite bool) error {
	if err := checkOwnership(r, o.RegionOf(), overwrite, "object"); err != nil {
		return err
	}
	o.setRegion(r)
	for _, key := range o.Keys() {
		if isPrivateAttr(key) {
			continue
		}
		v, ok := o.rawGet(key)
		if !ok {
			continue
		}
		if err := Capture(r, v, overwrite); err != nil {
			return err
		}
	}
	for _, d := range o.delegates() {
		if err := captureObject(r, d, overwrite); err != nil {
			return err
		}
	}
	return nil
}

func captureRegion(r *Region, child *Region) error {
	child = child.Canonical()
	if child == r {
		return nil
	}
	if child.IsFree() {
		return r.attachChild(child)
	}
	if child.Parent() == r {
		return nil
	}
	return newErr(ErrRegionAlreadyAttached, child.name, "sub-region is owned by a different region")
}

// isPrivateAttr reports whether an attribute name is excluded from
// recursive capture, by convention any name starting with "_".
func isPrivateAttr(name string) bool {
	return len(name) > 0 && name[0] == '_'
}
