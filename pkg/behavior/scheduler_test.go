package behavior_test

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boc/pkg/behavior"
	"boc/pkg/region"
)

func setup() {
	region.ResetRegistry()
	behavior.ResetDefault()
}

func newSharedAccount(t *testing.T, w *region.Worker, name string, balance int64) *region.Region {
	t.Helper()
	r, err := region.Create(name)
	require.NoError(t, err)
	require.NoError(t, r.Enter(w))
	require.NoError(t, r.Set(w, "balance", region.Int64(balance)))
	r.Exit(w)
	r.MakeShareable()
	return r
}

// S2 — Bank transfer ordering: interleaved single- and multi-region
// behaviors over two accounts observe a deterministic, per-region FIFO
// sequence of balances.
func TestS2BankTransferOrdering(t *testing.T) {
	setup()
	w := region.NewWorker()

	alice := newSharedAccount(t, w, "alice", 1000)
	bob := newSharedAccount(t, w, "bob", 42)

	var mu sync.Mutex
	results := map[string]int64{}
	record := func(key string, v int64) {
		mu.Lock()
		results[key] = v
		mu.Unlock()
	}

	require.NoError(t, behavior.When([]*region.Region{alice}, func(bw *region.Worker, _ []*region.Region) error {
		v, err := alice.Get(bw, "balance")
		if err != nil {
			return err
		}
		record("a", v.Int)
		return nil
	}))

	require.NoError(t, behavior.When([]*region.Region{bob}, func(bw *region.Worker, _ []*region.Region) error {
		v, err := bob.Get(bw, "balance")
		if err != nil {
			return err
		}
		record("b", v.Int)
		return nil
	}))

	require.NoError(t, behavior.When([]*region.Region{alice, bob}, func(bw *region.Worker, _ []*region.Region) error {
		av, err := alice.Get(bw, "balance")
		if err != nil {
			return err
		}
		bv, err := bob.Get(bw, "balance")
		if err != nil {
			return err
		}
		if err := alice.Set(bw, "balance", region.Int64(av.Int-100)); err != nil {
			return err
		}
		return bob.Set(bw, "balance", region.Int64(bv.Int+100))
	}))

	require.NoError(t, behavior.When([]*region.Region{bob}, func(bw *region.Worker, _ []*region.Region) error {
		v, err := bob.Get(bw, "balance")
		if err != nil {
			return err
		}
		record("d", v.Int)
		return nil
	}))

	require.NoError(t, behavior.When([]*region.Region{alice}, func(bw *region.Worker, _ []*region.Region) error {
		v, err := alice.Get(bw, "balance")
		if err != nil {
			return err
		}
		record("e", v.Int)
		return nil
	}))

	require.NoError(t, behavior.Wait())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int64(1000), results["a"])
	assert.Equal(t, int64(42), results["b"])
	assert.Equal(t, int64(142), results["d"])
	assert.Equal(t, int64(900), results["e"])
}

// S3 — Merge sort: split a shared list across leaf regions, sort each leaf
// in its own behavior, then merge pairs bottom-up via behaviors declaring
// parent+children. After Wait, the result is sorted.
func TestS3MergeSort(t *testing.T) {
	setup()
	w := region.NewWorker()

	const n = 100
	values := make([]int64, n)
	for i := range values {
		values[i] = int64((i*37 + 11) % 251)
	}
	want := append([]int64(nil), values...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	leaves := splitIntoLeaves(t, w, values, 9)
	for _, leaf := range leaves {
		leaf := leaf
		require.NoError(t, behavior.When([]*region.Region{leaf}, func(bw *region.Worker, _ []*region.Region) error {
			return sortItemsInPlace(bw, leaf)
		}))
	}

	current := leaves
	for len(current) > 1 {
		var next []*region.Region
		for i := 0; i+1 < len(current); i += 2 {
			a, b := current[i], current[i+1]
			parent, err := region.Create("")
			require.NoError(t, err)
			require.NoError(t, parent.Enter(w))
			require.NoError(t, parent.Set(w, "items", region.FromSequence(region.NewSequence())))
			parent.Exit(w)
			parent.MakeShareable()

			require.NoError(t, behavior.When([]*region.Region{parent, a, b}, func(bw *region.Worker, _ []*region.Region) error {
				return mergeSortedInto(bw, parent, a, b)
			}))
			next = append(next, parent)
		}
		if len(current)%2 == 1 {
			next = append(next, current[len(current)-1])
		}
		current = next
	}

	final := current[0]
	var got []int64
	var readErr error
	require.NoError(t, behavior.When([]*region.Region{final}, func(bw *region.Worker, _ []*region.Region) error {
		got, readErr = readAllItems(bw, final)
		return nil
	}))

	require.NoError(t, behavior.Wait())
	require.NoError(t, readErr)

	assert.Equal(t, want, got)
}

// S5 — Detach + merge swap: a single behavior over (c1, c2) detaches both
// roots and re-merges them crosswise, swapping their visible attributes.
func TestS5DetachMergeSwap(t *testing.T) {
	setup()
	w := region.NewWorker()

	c1 := newSharedRecord(t, w, "c1", "a", region.String("foo"))
	c2 := newSharedRecord(t, w, "c2", "b", region.String("bar"))

	err := behavior.When([]*region.Region{c1, c2}, func(bw *region.Worker, _ []*region.Region) error {
		d1, err := c1.DetachAll(bw, "")
		if err != nil {
			return err
		}
		d2, err := c2.DetachAll(bw, "")
		if err != nil {
			return err
		}
		if _, err := c1.Merge(bw, d2); err != nil {
			return err
		}
		_, err = c2.Merge(bw, d1)
		return err
	})
	require.NoError(t, err)

	var v, v2 region.Value
	var vErr, v2Err error
	require.NoError(t, behavior.When([]*region.Region{c1}, func(bw *region.Worker, _ []*region.Region) error {
		v, vErr = c1.Get(bw, "b")
		return nil
	}))
	require.NoError(t, behavior.When([]*region.Region{c2}, func(bw *region.Worker, _ []*region.Region) error {
		v2, v2Err = c2.Get(bw, "a")
		return nil
	}))
	require.NoError(t, behavior.Wait())

	require.NoError(t, vErr)
	assert.Equal(t, "bar", v.Str)

	require.NoError(t, v2Err)
	assert.Equal(t, "foo", v2.Str)
}

// S6 — Private behavior: submitting a behavior over a private region is
// rejected with "region must be shared" before it is ever scheduled.
func TestS6PrivateBehaviorRejected(t *testing.T) {
	setup()

	r, err := region.Create("private")
	require.NoError(t, err)

	err = behavior.When([]*region.Region{r}, func(*region.Worker, []*region.Region) error {
		t.Fatal("thunk must never run over a private region")
		return nil
	})
	require.Error(t, err)
	assert.True(t, region.IsKind(err, region.ErrMustBeShared))
}

// Zero-region behaviors run: with no region to acquire, the slack release
// alone schedules the behavior, and it has finished by the time Wait returns.
func TestZeroRegionBehaviorRuns(t *testing.T) {
	setup()
	done := make(chan struct{})
	require.NoError(t, behavior.When(nil, func(*region.Worker, []*region.Region) error {
		close(done)
		return nil
	}))
	require.NoError(t, behavior.Wait())
	select {
	case <-done:
	default:
		t.Fatal("zero-region behavior did not run")
	}
}

// Nested when(): a behavior declared from inside a running thunk is ordered
// strictly after every behavior already enqueued on its regions, including
// the declaring behavior itself (spec §4.3, "nested when inside a running
// thunk is permitted ... ordered after all behaviors already enqueued on
// its regions").
func TestNestedWhenOrdersAfterParent(t *testing.T) {
	setup()
	w := region.NewWorker()

	r := newSharedRecord(t, w, "counter", "n", region.Int64(0))

	var mu sync.Mutex
	var order []string

	require.NoError(t, behavior.When([]*region.Region{r}, func(bw *region.Worker, _ []*region.Region) error {
		mu.Lock()
		order = append(order, "outer")
		mu.Unlock()

		return behavior.When([]*region.Region{r}, func(iw *region.Worker, _ []*region.Region) error {
			mu.Lock()
			order = append(order, "inner")
			mu.Unlock()
			v, err := r.Get(iw, "n")
			if err != nil {
				return err
			}
			return r.Set(iw, "n", region.Int64(v.Int+1))
		})
	}))

	require.NoError(t, behavior.Wait())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"outer", "inner"}, order)
}

// Disjoint region sets: behaviors declared over regions that share nothing
// may run concurrently; with each thunk blocking on the other's start
// signal, completion is only possible if they overlap in time (spec §8,
// property 5).
func TestDisjointRegionsOverlap(t *testing.T) {
	setup()
	w := region.NewWorker()

	r1 := newSharedRecord(t, w, "d1", "v", region.Int64(1))
	r2 := newSharedRecord(t, w, "d2", "v", region.Int64(2))

	started1 := make(chan struct{})
	started2 := make(chan struct{})

	require.NoError(t, behavior.When([]*region.Region{r1}, func(*region.Worker, []*region.Region) error {
		close(started1)
		select {
		case <-started2:
		case <-time.After(2 * time.Second):
			t.Error("behavior over disjoint region r2 never started concurrently")
		}
		return nil
	}))

	require.NoError(t, behavior.When([]*region.Region{r2}, func(*region.Worker, []*region.Region) error {
		close(started2)
		select {
		case <-started1:
		case <-time.After(2 * time.Second):
			t.Error("behavior over disjoint region r1 never started concurrently")
		}
		return nil
	}))

	require.NoError(t, behavior.Wait())
}

// A behavior declaring the same region more than once collapses to a single
// request: the thunk runs exactly once, and canonicalization dedupes rather
// than double-enqueueing on that region (spec §4.3).
func TestDuplicateRegionCollapsesToOneRequest(t *testing.T) {
	setup()

	r := newSharedRecord(t, region.NewWorker(), "dup", "v", region.Int64(0))

	var runs int32
	require.NoError(t, behavior.When([]*region.Region{r, r, r}, func(bw *region.Worker, regions []*region.Region) error {
		runs++
		require.Len(t, regions, 1)
		return nil
	}))
	require.NoError(t, behavior.Wait())
	assert.Equal(t, int32(1), runs)
}

func newSharedRecord(t *testing.T, w *region.Worker, name, key string, v region.Value) *region.Region {
	t.Helper()
	r, err := region.Create(name)
	require.NoError(t, err)
	require.NoError(t, r.Enter(w))
	require.NoError(t, r.Set(w, key, v))
	r.Exit(w)
	r.MakeShareable()
	return r
}

func splitIntoLeaves(t *testing.T, w *region.Worker, values []int64, chunk int) []*region.Region {
	t.Helper()
	var leaves []*region.Region
	for i := 0; i < len(values); i += chunk {
		end := i + chunk
		if end > len(values) {
			end = len(values)
		}
		vs := make([]region.Value, 0, end-i)
		for _, v := range values[i:end] {
			vs = append(vs, region.Int64(v))
		}
		r, err := region.Create("")
		require.NoError(t, err)
		require.NoError(t, r.Enter(w))
		require.NoError(t, r.Set(w, "items", region.FromSequence(region.NewSequence(vs...))))
		r.Exit(w)
		r.MakeShareable()
		leaves = append(leaves, r)
	}
	return leaves
}

func itemsWrapper(w *region.Worker, r *region.Region) (*region.Wrapped, error) {
	v, err := r.Get(w, "items")
	if err != nil {
		return nil, err
	}
	return v.Wrapped, nil
}

func readAllItems(w *region.Worker, r *region.Region) ([]int64, error) {
	items, err := itemsWrapper(w, r)
	if err != nil {
		return nil, err
	}
	n, err := items.Len(w)
	if err != nil {
		return nil, err
	}
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		v, err := items.At(w, i)
		if err != nil {
			return nil, err
		}
		out[i] = v.Int
	}
	return out, nil
}

func sortItemsInPlace(w *region.Worker, r *region.Region) error {
	vals, err := readAllItems(w, r)
	if err != nil {
		return err
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	items, err := itemsWrapper(w, r)
	if err != nil {
		return err
	}
	for i, v := range vals {
		if err := items.SetAt(w, i, region.Int64(v)); err != nil {
			return err
		}
	}
	return nil
}

func mergeSortedInto(w *region.Worker, parent, a, b *region.Region) error {
	av, err := readAllItems(w, a)
	if err != nil {
		return err
	}
	bv, err := readAllItems(w, b)
	if err != nil {
		return err
	}
	merged := make([]int64, 0, len(av)+len(bv))
	i, j := 0, 0
	for i < len(av) && j < len(bv) {
		if av[i] <= bv[j] {
			merged = append(merged, av[i])
			i++
		} else {
			merged = append(merged, bv[j])
			j++
		}
	}
	merged = append(merged, av[i:]...)
	merged = append(merged, bv[j:]...)

	items, err := itemsWrapper(w, parent)
	if err != nil {
		return err
	}
	for _, v := range merged {
		if err := items.Append(w, region.Int64(v)); err != nil {
			return err
		}
	}
	return nil
}
