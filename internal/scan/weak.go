package scan

// WeakReferenceScanner clears weak handles whose referent did not survive the
// current cycle. Long-weak handles use the lenient test (dead only once
// finalization resurrection can no longer revive the referent); short-weak
// handles use the strict IsAlive test and are checked on every collection,
// promoting or not.
type WeakReferenceScanner struct {
	table HandleTable
	heap  Heap
	cache SyncBlockCache
}

func NewWeakReferenceScanner(table HandleTable, heap Heap, cache SyncBlockCache) *WeakReferenceScanner {
	return &WeakReferenceScanner{table: table, heap: heap, cache: cache}
}

// ScanForDeath clears condemned-range long-weak handles with unreachable
// referents. It must run only after the mark phase has reached its final
// result; this pass is the authoritative unreachability check of the cycle.
func (w *WeakReferenceScanner) ScanForDeath(condemned, maxGen int, sc *ScanContext) int {
	cleared := 0
	w.table.ForEachInCategory(CategoryLongWeak, condemned, maxGen, func(slot Slot) {
		ref := slot.Object()
		if ref == 0 || w.heap.IsPromoted(ref) {
			return
		}
		slot.SetObject(0)
		cleared++
	})
	// Weak-interior handles die with the object containing the interior
	// pointer; the base address lives in the slot's auxiliary word.
	w.table.ForEachInCategory(CategoryWeakInterior, condemned, maxGen, func(slot Slot) {
		base := slot.Extra()
		if slot.Object() == 0 || base == nil {
			return
		}
		if !w.heap.IsPromoted(ObjectRef(*base)) {
			slot.SetObject(0)
			*base = 0
			cleared++
		}
	})
	return cleared
}

// ScanShortWeakForDeath clears condemned-range short-weak handles whose
// referent fails the strict non-resurrection liveness test. Runs after all
// promotion and relocation bookkeeping so it observes final liveness, not an
// intermediate mark-stack state.
func (w *WeakReferenceScanner) ScanShortWeakForDeath(condemned, maxGen int, sc *ScanContext) int {
	cleared := 0
	w.table.ForEachInCategory(CategoryShortWeak, condemned, maxGen, func(slot Slot) {
		ref := slot.Object()
		if ref == 0 || w.heap.IsAlive(ref) {
			return
		}
		slot.SetObject(0)
		cleared++
	})
	return cleared
}

// ScanSyncBlockWeakReferences nulls unreachable referents in the
// process-global synchronization-object cache. The cache is shared across all
// heaps, so this pass is single-threaded only: the orchestrator invokes it
// from exactly one worker per cycle.
func (w *WeakReferenceScanner) ScanSyncBlockWeakReferences(sc *ScanContext) {
	w.cache.WeakScan(func(ref *ObjectRef) {
		if *ref != 0 && !w.heap.IsPromoted(*ref) {
			*ref = 0
		}
	})
}
