// Package mark implements the object-graph tracer the scan layer collaborates
// with: a mark-stack engine over an addressed object graph, with a bounded
// stack that can overflow (incomplete results are expected and recovered by a
// linear re-mark pass), promotion and relocation callbacks, the liveness
// queries the weak scanners need, and a sliding compaction step so relocation
// has observable effect.
package mark

import (
	"fmt"
	"slices"
	"sync"

	"github.com/mabhi256/gcscan/internal/scan"
)

const addrAlign = 16

// Object is one managed object in the synthetic heap.
type Object struct {
	Addr        scan.ObjectRef
	Gen         int
	Size        uint64
	Refs        []scan.ObjectRef
	Finalizable bool
}

// Engine holds the object graph and all per-cycle marking state. One engine
// serves every heap worker; its methods are safe for concurrent use by the
// scan callbacks.
type Engine struct {
	mu    sync.Mutex
	heaps int

	objects  map[scan.ObjectRef]*Object
	roots    []scan.ObjectRef
	nextAddr uint64

	// Per-cycle state, reset by StartCycle.
	condemned   int
	maxGen      int
	marked      map[scan.ObjectRef]bool
	resurrected map[scan.ObjectRef]bool
	stack       []scan.ObjectRef
	stackCap    int
	overflowed  bool
	overflows   int
	promoted    int

	// Forwarding addresses from the most recent compaction.
	forwarding map[scan.ObjectRef]scan.ObjectRef
}

// NewEngine creates an engine whose roots are partitioned across heaps
// workers and whose mark stack holds at most stackCap entries before
// overflowing into the linear re-mark path.
func NewEngine(heaps, stackCap int) (*Engine, error) {
	if heaps < 1 {
		return nil, fmt.Errorf("at least one heap is required")
	}
	if stackCap < 1 {
		return nil, fmt.Errorf("mark stack capacity must be positive")
	}
	return &Engine{
		heaps:       heaps,
		objects:     make(map[scan.ObjectRef]*Object),
		nextAddr:    addrAlign,
		marked:      make(map[scan.ObjectRef]bool),
		resurrected: make(map[scan.ObjectRef]bool),
		stackCap:    stackCap,
		forwarding:  make(map[scan.ObjectRef]scan.ObjectRef),
	}, nil
}

// AddObject allocates an object in gen and returns its address.
func (e *Engine) AddObject(gen int, size uint64, finalizable bool, refs ...scan.ObjectRef) scan.ObjectRef {
	e.mu.Lock()
	defer e.mu.Unlock()

	if size == 0 {
		size = addrAlign
	}
	addr := scan.ObjectRef(e.nextAddr)
	e.nextAddr += (size + addrAlign - 1) / addrAlign * addrAlign
	e.objects[addr] = &Object{
		Addr:        addr,
		Gen:         gen,
		Size:        size,
		Refs:        refs,
		Finalizable: finalizable,
	}
	return addr
}

// AddReference appends an outgoing reference from -> to.
func (e *Engine) AddReference(from, to scan.ObjectRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, ok := e.objects[from]
	if !ok {
		return fmt.Errorf("no object at %#x", uint64(from))
	}
	obj.Refs = append(obj.Refs, to)
	return nil
}

// AddRoot registers addr as an execution-engine root.
func (e *Engine) AddRoot(addr scan.ObjectRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roots = append(e.roots, addr)
}

// RemoveRoot drops one registration of addr from the root set.
func (e *Engine) RemoveRoot(addr scan.ObjectRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, r := range e.roots {
		if r == addr {
			e.roots[i] = e.roots[len(e.roots)-1]
			e.roots = e.roots[:len(e.roots)-1]
			return
		}
	}
}

// Roots returns a snapshot of the current root set.
func (e *Engine) Roots() []scan.ObjectRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]scan.ObjectRef, len(e.roots))
	copy(out, e.roots)
	return out
}

// LiveAddresses returns the addresses of every object currently in the heap.
func (e *Engine) LiveAddresses() []scan.ObjectRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]scan.ObjectRef, 0, len(e.objects))
	for addr := range e.objects {
		out = append(out, addr)
	}
	// Deterministic order so seeded workloads stay reproducible.
	slices.Sort(out)
	return out
}

// Object returns the object at addr, if it exists.
func (e *Engine) Object(addr scan.ObjectRef) (*Object, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, ok := e.objects[addr]
	return obj, ok
}

// ObjectCount returns the number of objects currently in the heap.
func (e *Engine) ObjectCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.objects)
}

// HeapSize returns the summed size of all objects.
func (e *Engine) HeapSize() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var total uint64
	for _, obj := range e.objects {
		total += obj.Size
	}
	return total
}

// ScanRoots reports this worker's share of the root set to the promotion
// callback. Roots are partitioned round-robin across heap workers so no root
// is reported twice.
func (e *Engine) ScanRoots(fn scan.PromoteFunc, condemned, maxGen int, sc *scan.ScanContext) {
	e.mu.Lock()
	share := make([]scan.ObjectRef, 0, len(e.roots)/e.heaps+1)
	for i, r := range e.roots {
		if i%e.heaps == sc.ThreadIndex {
			share = append(share, r)
		}
	}
	e.mu.Unlock()

	for _, r := range share {
		ref := r
		fn(&ref, nil, sc, scan.CallDefault)
	}
}

var _ scan.RootEnumerator = (*Engine)(nil)
