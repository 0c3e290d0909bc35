package region

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// RegionID is the monotonically assigned, authoritative identity of a
// Region. Identity order is also the global well-order that the behavior
// scheduler sorts on to prevent deadlock (spec §4.3).
type RegionID uint64

var nextRegionID uint64

// registry is the process-wide identity -> Region map (spec §9, "Global
// state"). Its maps are created when the package is loaded, not on first
// use, and are replaced with empty ones by ResetRegistry so tests can run
// in isolation from one another.
var (
	registryMu sync.Mutex
	registry   = make(map[RegionID]*Region)
	names      = make(map[string]struct{})
)

// ResetRegistry clears all process-wide region bookkeeping. Intended for
// test isolation between independent simulated programs; production
// callers have no reason to call it mid-run.
func ResetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[RegionID]*Region)
	names = make(map[string]struct{})
	atomic.StoreUint64(&nextRegionID, 0)
}

// Lookup returns the region with the given identity, if it is still
// registered.
func Lookup(id RegionID) (*Region, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	r, ok := registry[id]
	return r, ok
}

func register(r *Region) {
	registryMu.Lock()
	registry[r.identity] = r
	registryMu.Unlock()
}

func reserveName(name string) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, taken := names[name]; taken {
		return newErr(ErrNameCollision, name, "region name already in use")
	}
	names[name] = struct{}{}
	return nil
}

func generateName() string {
	return "region-" + uuid.NewString()
}
