package region

// Get reads an attribute from the region's root namespace. The region
// must currently be open by worker (spec §4.2: attribute dispatch on a
// Region delegates to its root, an isolated-object wrapper).
func (r *Region) Get(worker *Worker, key string) (Value, error) {
	r = r.Canonical()
	return Wrap(r, FromObject(r.root)).Get(worker, key)
}

// Set writes an attribute into the region's root namespace.
func (r *Region) Set(worker *Worker, key string, v Value) error {
	r = r.Canonical()
	return Wrap(r, FromObject(r.root)).Set(worker, key, v)
}

// Root returns the region's root Object wrapped for the given worker,
// suitable for passing to behavior thunks that want generic attribute
// access without going through the Region handle itself.
func (r *Region) Root(worker *Worker) *Wrapped {
	r = r.Canonical()
	return Wrap(r, FromObject(r.root))
}
