// Package scan implements the root- and handle-scanning protocol that a
// generational collector runs once per collection cycle: the two-phase
// (mark/relocate) handle walk, weak-reference clearing, the dependent-handle
// fixed-point promotion loop, and generation aging bookkeeping.
//
// The object-graph tracer, the handle table storage, and the
// synchronization-object cache are collaborators consumed through the
// interfaces in this file.
package scan

// ObjectRef is the address of a managed object as stored in a handle slot.
// Zero means the slot is empty or has been cleared.
type ObjectRef uint64

// Category identifies a handle table partition. Each category has its own
// scanning rules during the promotion and relocation phases.
type Category int

const (
	CategoryStrong Category = iota
	CategoryPinned
	CategoryShortWeak
	CategoryLongWeak
	CategoryDependent
	CategorySizedRef
	CategoryWeakInterior
	CategoryBridge
)

func (c Category) String() string {
	switch c {
	case CategoryStrong:
		return "strong"
	case CategoryPinned:
		return "pinned"
	case CategoryShortWeak:
		return "short-weak"
	case CategoryLongWeak:
		return "long-weak"
	case CategoryDependent:
		return "dependent"
	case CategorySizedRef:
		return "sized-ref"
	case CategoryWeakInterior:
		return "weak-interior"
	case CategoryBridge:
		return "bridge"
	default:
		return "unknown"
	}
}

// CallFlags qualify a single promotion/relocation callback invocation.
type CallFlags uint32

const (
	CallDefault CallFlags = 0

	// CallInterior marks *ref as an interior pointer; extra holds the base
	// address of the containing object.
	CallInterior CallFlags = 1 << iota

	// CallPinned marks the referent as non-movable for this cycle.
	CallPinned
)

// PromoteFunc is supplied by the mark engine once per cycle. During the
// promotion phase it treats *ref as a root and marks it reachable; during the
// relocation phase it rewrites *ref to the object's post-compaction address.
// extra carries per-handle auxiliary data (sized-ref size, weak-interior base
// address) and may be updated by the callback as well.
type PromoteFunc func(ref *ObjectRef, extra *uint64, sc *ScanContext, flags CallFlags)

// Slot is one handle table entry as seen by the scanners.
type Slot interface {
	Object() ObjectRef
	SetObject(ObjectRef)

	// Extra returns the slot's auxiliary word, or nil if the slot's
	// category carries none.
	Extra() *uint64

	Generation() int
}

// DependentSlot is a dependent handle pair. Object/SetObject address the
// primary; the secondary must stay alive for as long as the primary does.
type DependentSlot interface {
	Slot

	Secondary() ObjectRef
	SetSecondary(ObjectRef)
}

// HandleTable is the narrow contract the scanners need from the handle table
// storage. Implementations partition slots by category and generation; walks
// are finite and each call starts a fresh pass.
type HandleTable interface {
	// ForEachInCategory visits every slot of cat whose generation is within
	// the condemned range.
	ForEachInCategory(cat Category, condemned, maxGen int, visit func(Slot))

	// ForEachDependent visits every dependent pair within the condemned range.
	ForEachDependent(condemned, maxGen int, visit func(DependentSlot))

	// AgeAll advances generation bookkeeping of condemned-range handles after
	// promotions were granted.
	AgeAll(condemned, maxGen int)

	// RejuvenateAll resets generation bookkeeping of condemned-range handles
	// after an aborted or partial collection.
	RejuvenateAll(condemned, maxGen int)

	// Verify performs a diagnostic consistency check over the whole table.
	Verify(condemned, maxGen int) error
}

// Heap answers liveness questions about objects once the mark phase has
// produced (possibly still incomplete) results.
type Heap interface {
	// IsPromoted reports whether ref has been marked reachable this cycle,
	// or lies outside the condemned range.
	IsPromoted(ref ObjectRef) bool

	// IsAlive is the stricter test used for short-weak handles: reachable
	// without going through a finalization-resurrection path.
	IsAlive(ref ObjectRef) bool
}

// RootEnumerator reports execution-engine roots (stacks, JIT-visible slots)
// to the promotion callback. It is consumed as an opaque collaborator.
type RootEnumerator interface {
	ScanRoots(fn PromoteFunc, condemned, maxGen int, sc *ScanContext)
}

// SyncBlockCache is the process-global synchronization-object cache. Its
// operations must only ever be invoked from one designated worker.
type SyncBlockCache interface {
	// WeakScan visits every weak slot in the cache; the visitor may null the
	// slot through the pointer.
	WeakScan(visit func(ref *ObjectRef))

	PromotionsGranted(maxGen int)
	Demote(maxGen int)
}

// DiagnosticsSink receives read-only notifications of handle contents when
// profiling is enabled. It is never required for correctness; scans run with
// a nil sink when diagnostics are off.
type DiagnosticsSink interface {
	HandleScanned(cat Category, gen int, ref ObjectRef)
	DependentScanned(primary, secondary ObjectRef)
}
