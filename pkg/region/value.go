// Package region implements the isolation primitives and the region handle
// described for Behavior-Oriented Concurrency: value classification, object
// capture, the region containment tree, attribute dispatch, and the
// isolated-object wrapper that intercepts access to mutable values.
package region

// Kind tags the variant held by a Value. Rather than forwarding arbitrary
// dynamic operator overloads (Go has none to forward), operations dispatch
// on Kind the way a statically-typed implementation of this model should:
// a narrow set of cases instead of one per concrete user type.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindComplex
	KindString
	KindBytes
	KindRange
	KindTuple     // immutable ordered sequence
	KindFrozenSet // immutable unordered sequence
	KindRecord    // immutable named record (the result of Freeze)
	KindSequence  // mutable ordered sequence
	KindMap       // mutable string-keyed map
	KindSet       // mutable unordered collection
	KindObject    // mutable named record (region roots, user objects)
	KindRegion    // a Region handle
	KindWrapped   // an isolated-object wrapper over a mutable Value
)

// Value is the tagged union every region-aware operation exchanges. Only
// one of the variant fields below is meaningful for a given Kind.
type Value struct {
	Kind Kind

	Bool    bool
	Int     int64
	Float   float64
	Real    float64 // complex: real part
	Imag    float64 // complex: imaginary part
	Str     string  // KindString, KindBytes
	RngFrom int64   // KindRange
	RngTo   int64

	Tuple     []Value    // KindTuple, KindFrozenSet elements
	Record    *RecordVal // KindRecord
	Seq       *Sequence  // KindSequence
	Map       *MapVal    // KindMap
	Set       *SetVal    // KindSet
	Obj       *Object    // KindObject
	RegionRef *Region    // KindRegion
	Wrapped   *Wrapped   // KindWrapped
}

// Nil is the canonical null value.
var Nil = Value{Kind: KindNil}

// RecordVal is the immutable, named-field container produced by Freeze.
// Field order is preserved so structural comparisons and printing are
// deterministic. Freeze never populates Methods: this package has no
// callable attributes to bind, so the field is always empty on a snapshot.
type RecordVal struct {
	Order   []string
	Fields  map[string]Value
	Methods map[string]func(args []Value) (Value, error)
}

// IsImmutable implements the closed, recursive deep-immutability predicate
// from the data model: atoms and immutable containers of immutable
// elements are immutable; everything else (including an unresolved
// KindWrapped, which by construction always wraps something mutable) is
// mutable.
func IsImmutable(v Value) bool {
	switch v.Kind {
	case KindNil, KindBool, KindInt, KindFloat, KindComplex, KindString, KindBytes, KindRange:
		return true
	case KindTuple, KindFrozenSet:
		for _, e := range v.Tuple {
			if !IsImmutable(e) {
				return false
			}
		}
		return true
	case KindRecord:
		for _, k := range v.Record.Order {
			if !IsImmutable(v.Record.Fields[k]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IsMutable is the complement of IsImmutable, provided because call sites
// that branch on mutability read more clearly with a positive name.
func IsMutable(v Value) bool {
	return !IsImmutable(v)
}

// FromObject wraps an *Object as a Value.
func FromObject(o *Object) Value { return Value{Kind: KindObject, Obj: o} }

// FromSequence wraps a *Sequence as a Value.
func FromSequence(s *Sequence) Value { return Value{Kind: KindSequence, Seq: s} }

// FromMap wraps a *MapVal as a Value.
func FromMap(m *MapVal) Value { return Value{Kind: KindMap, Map: m} }

// FromSet wraps a *SetVal as a Value.
func FromSet(s *SetVal) Value { return Value{Kind: KindSet, Set: s} }

// FromRegion wraps a *Region as a Value.
func FromRegion(r *Region) Value { return Value{Kind: KindRegion, RegionRef: r} }

// FromWrapped wraps a *Wrapped as a Value.
func FromWrapped(w *Wrapped) Value { return Value{Kind: KindWrapped, Wrapped: w} }

// Int64 builds an integer Value.
func Int64(i int64) Value { return Value{Kind: KindInt, Int: i} }

// String builds a string Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// TupleOf builds an immutable tuple Value.
func TupleOf(vs ...Value) Value { return Value{Kind: KindTuple, Tuple: vs} }
