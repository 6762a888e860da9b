package mark

import (
	"slices"

	"github.com/mabhi256/gcscan/internal/scan"
)

// StartCycle resets per-cycle marking state for a collection condemning
// generations [0, condemned].
func (e *Engine) StartCycle(condemned, maxGen int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.condemned = condemned
	e.maxGen = maxGen
	e.marked = make(map[scan.ObjectRef]bool)
	e.resurrected = make(map[scan.ObjectRef]bool)
	e.stack = e.stack[:0]
	e.overflowed = false
	e.overflows = 0
	e.promoted = 0
	e.forwarding = make(map[scan.ObjectRef]scan.ObjectRef)
}

// Promote is the promotion-phase callback handed to the scan layer. It marks
// *ref reachable and queues it for tracing. Objects older than the condemned
// generation are already outside the collection and need no work.
func (e *Engine) Promote(ref *scan.ObjectRef, extra *uint64, sc *scan.ScanContext, flags scan.CallFlags) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.markLocked(*ref)
}

func (e *Engine) markLocked(addr scan.ObjectRef) {
	obj, ok := e.objects[addr]
	if !ok || obj.Gen > e.condemned || e.marked[addr] {
		return
	}
	e.marked[addr] = true
	e.promoted++
	e.pushLocked(addr)
}

// pushLocked queues addr for tracing. A full stack sets the overflow flag
// instead; Drain recovers by re-marking from the already-marked set.
func (e *Engine) pushLocked(addr scan.ObjectRef) {
	if len(e.stack) >= e.stackCap {
		e.overflowed = true
		e.overflows++
		return
	}
	e.stack = append(e.stack, addr)
}

// Drain traces queued objects until the stack is empty, then recovers from
// any overflow with a linear pass over the marked set, re-queueing marked
// objects whose children were missed. Returns whether any object was newly
// marked, which the collector uses as its fixed-point progress signal.
func (e *Engine) Drain() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	progress := false
	for {
		for len(e.stack) > 0 {
			addr := e.stack[len(e.stack)-1]
			e.stack = e.stack[:len(e.stack)-1]
			if e.traceLocked(addr) {
				progress = true
			}
		}
		if !e.overflowed {
			return progress
		}
		// Worst-case-correct path: walk every marked object and re-queue the
		// ones with unmarked children, then drain again.
		e.overflowed = false
		for addr := range e.marked {
			obj, ok := e.objects[addr]
			if !ok {
				continue
			}
			for _, child := range obj.Refs {
				if e.isUnmarkedCondemnedLocked(child) {
					e.pushLocked(addr)
					break
				}
			}
		}
	}
}

// traceLocked marks the unmarked condemned-range children of addr.
func (e *Engine) traceLocked(addr scan.ObjectRef) bool {
	obj, ok := e.objects[addr]
	if !ok {
		return false
	}
	progress := false
	for _, child := range obj.Refs {
		if e.isUnmarkedCondemnedLocked(child) {
			e.marked[child] = true
			e.promoted++
			e.pushLocked(child)
			progress = true
		}
	}
	return progress
}

func (e *Engine) isUnmarkedCondemnedLocked(addr scan.ObjectRef) bool {
	obj, ok := e.objects[addr]
	return ok && obj.Gen <= e.condemned && !e.marked[addr]
}

// PromoteFinalizable gives dead finalizable objects their resurrection
// window: each one, and everything newly reachable from it, is promoted but
// remembered as resurrected. Such objects answer true to IsPromoted (long
// weak handles survive) and false to IsAlive (short weak handles clear).
// Returns the number of objects promoted this way.
func (e *Engine) PromoteFinalizable() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	var pending []scan.ObjectRef
	for addr, obj := range e.objects {
		if obj.Finalizable && obj.Gen <= e.condemned && !e.marked[addr] {
			pending = append(pending, addr)
		}
	}

	count := 0
	for len(pending) > 0 {
		addr := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if !e.isUnmarkedCondemnedLocked(addr) {
			continue
		}
		e.marked[addr] = true
		e.resurrected[addr] = true
		e.promoted++
		count++
		if obj, ok := e.objects[addr]; ok {
			pending = append(pending, obj.Refs...)
		}
	}
	return count
}

// IsPromoted reports whether addr survived the mark phase so far. Objects
// outside the condemned range are not subject to this collection and count as
// promoted.
func (e *Engine) IsPromoted(addr scan.ObjectRef) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isPromotedLocked(addr)
}

func (e *Engine) isPromotedLocked(addr scan.ObjectRef) bool {
	obj, ok := e.objects[addr]
	if !ok {
		return false
	}
	return obj.Gen > e.condemned || e.marked[addr]
}

// IsAlive is the stricter short-weak test: reachable without owing its
// survival to a finalization resurrection path.
func (e *Engine) IsAlive(addr scan.ObjectRef) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isPromotedLocked(addr) && !e.resurrected[addr]
}

// Compact slides surviving condemned-range objects to fresh addresses,
// rewrites intra-heap references and roots, advances survivor generations,
// and discards the dead. Handle slots still hold old addresses afterwards;
// the scan layer's relocation phase fixes them through Relocate. Returns the
// number of objects that moved.
func (e *Engine) Compact() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.forwarding = make(map[scan.ObjectRef]scan.ObjectRef)
	rebuilt := make(map[scan.ObjectRef]*Object, len(e.objects))
	moved := 0

	// Slide in address order so identical heaps compact identically.
	addrs := make([]scan.ObjectRef, 0, len(e.objects))
	for addr := range e.objects {
		addrs = append(addrs, addr)
	}
	slices.Sort(addrs)

	for _, addr := range addrs {
		obj := e.objects[addr]
		if obj.Gen > e.condemned {
			rebuilt[addr] = obj
			continue
		}
		if !e.marked[addr] {
			continue // dead
		}
		newAddr := scan.ObjectRef(e.nextAddr)
		e.nextAddr += (obj.Size + addrAlign - 1) / addrAlign * addrAlign
		e.forwarding[addr] = newAddr
		obj.Addr = newAddr
		if obj.Gen < e.maxGen {
			obj.Gen++
		}
		rebuilt[newAddr] = obj
		moved++
	}

	fwd := func(ref scan.ObjectRef) scan.ObjectRef {
		if to, ok := e.forwarding[ref]; ok {
			return to
		}
		return ref
	}

	for _, obj := range rebuilt {
		for i, ref := range obj.Refs {
			obj.Refs[i] = fwd(ref)
		}
	}
	for i, r := range e.roots {
		e.roots[i] = fwd(r)
	}

	remapSet := func(set map[scan.ObjectRef]bool) map[scan.ObjectRef]bool {
		out := make(map[scan.ObjectRef]bool, len(set))
		for addr, v := range set {
			if v {
				out[fwd(addr)] = true
			}
		}
		return out
	}
	e.marked = remapSet(e.marked)
	e.resurrected = remapSet(e.resurrected)
	e.objects = rebuilt

	return moved
}

// Relocate is the relocation-phase callback: it rewrites *ref to the
// post-compaction address. For interior pointers the base object in extra is
// forwarded and *ref displaced by the same amount.
func (e *Engine) Relocate(ref *scan.ObjectRef, extra *uint64, sc *scan.ScanContext, flags scan.CallFlags) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if flags&scan.CallInterior != 0 {
		if extra == nil || *extra == 0 {
			return
		}
		oldBase := scan.ObjectRef(*extra)
		newBase, ok := e.forwarding[oldBase]
		if !ok {
			return
		}
		*ref += newBase - oldBase
		*extra = uint64(newBase)
		return
	}

	if to, ok := e.forwarding[*ref]; ok {
		*ref = to
	}
}

// PromotedCount returns the number of objects marked so far this cycle.
func (e *Engine) PromotedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.promoted
}

// Overflows returns how many pushes fell off the mark stack this cycle.
func (e *Engine) Overflows() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overflows
}

// ResurrectedCount returns how many objects survived only through
// finalization this cycle.
func (e *Engine) ResurrectedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.resurrected)
}

var _ scan.Heap = (*Engine)(nil)
