package scan

import "fmt"

// Scanner is the entry point the collector drives once per collection phase.
// It owns one set of per-heap component scanners (one handle table partition
// per heap worker) plus the process-global collaborators, and sequences them:
//
//	roots -> handles(promotion) -> dependent fixed point -> sized-ref ->
//	bridge -> weak death -> handles(relocation) / demote -> short weak ->
//	promotions granted -> optional verify
//
// All methods run synchronously to completion; stop-the-world coordination
// belongs to the collector, not to this layer.
type Scanner struct {
	cfg   Config
	heap  Heap
	roots RootEnumerator
	cache SyncBlockCache
	diag  DiagnosticsSink

	tables     []HandleTable
	dependents []*DependentHandleScanner
	weaks      []*WeakReferenceScanner
	notifiers  []*PromotionNotifier
}

// NewScanner wires the per-heap scanners at handle-subsystem initialization.
// tables carries one handle table partition per heap worker; a single table
// selects workstation mode, more than one selects server mode.
func NewScanner(cfg Config, tables []HandleTable, heap Heap, roots RootEnumerator, cache SyncBlockCache, diag DiagnosticsSink) (*Scanner, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("at least one handle table partition is required")
	}
	if heap == nil {
		return nil, fmt.Errorf("heap liveness collaborator is required")
	}
	if roots == nil {
		return nil, fmt.Errorf("root enumerator is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("sync block cache is required")
	}
	if cfg.Diagnostics && diag == nil {
		return nil, fmt.Errorf("diagnostics enabled but no sink provided")
	}

	s := &Scanner{
		cfg:    cfg,
		heap:   heap,
		roots:  roots,
		cache:  cache,
		diag:   diag,
		tables: tables,
	}
	serverMode := len(tables) > 1
	for _, t := range tables {
		s.dependents = append(s.dependents, NewDependentHandleScanner(t, heap))
		s.weaks = append(s.weaks, NewWeakReferenceScanner(t, heap, cache))
		s.notifiers = append(s.notifiers, NewPromotionNotifier(t, cache, serverMode))
	}
	return s, nil
}

// ServerMode reports whether more than one heap worker participates.
func (s *Scanner) ServerMode() bool {
	return len(s.tables) > 1
}

// Heaps returns the number of handle table partitions.
func (s *Scanner) Heaps() int {
	return len(s.tables)
}

func (s *Scanner) table(sc *ScanContext) HandleTable {
	return s.tables[sc.ThreadIndex]
}

// BeginPromotionScan is the promotion-phase entry point: it forwards roots to
// the mark engine, marks pinning and normal handle roots, runs the initial
// dependent-handle scan (recording the cycle parameters into the per-heap
// DhContext), and performs the single sized-ref pass when that category is
// enabled. The sized-ref walk deliberately stays outside the fixed-point
// loop; it is a one-shot pass.
func (s *Scanner) BeginPromotionScan(fn PromoteFunc, condemned, maxGen int, sc *ScanContext) {
	sc.Promotion = true
	sc.Condemned = condemned
	sc.MaxGen = maxGen

	s.ScanRoots(fn, condemned, maxGen, sc)
	s.ScanHandles(fn, condemned, maxGen, sc)
	s.dependents[sc.ThreadIndex].InitialScan(fn, condemned, maxGen, sc)
	s.ScanSizedRefs(fn, condemned, maxGen, sc)
	s.ScanBridgeObjects(fn, condemned, maxGen, sc)
}

// ScanRoots forwards execution-engine roots (stacks, JIT-visible slots) to
// the promotion callback for this worker's share of the root set.
func (s *Scanner) ScanRoots(fn PromoteFunc, condemned, maxGen int, sc *ScanContext) {
	s.roots.ScanRoots(fn, condemned, maxGen, sc)
}

// ScanHandles walks the root-like handle categories. During the promotion
// phase it reports pinned and strong referents to the mark engine. During the
// relocation phase it instead rewrites every surviving slot (weak ones
// included, or they would dangle after compaction), the dependent pairs, and
// the weak-interior pointers to their post-compaction addresses.
func (s *Scanner) ScanHandles(fn PromoteFunc, condemned, maxGen int, sc *ScanContext) {
	t := s.table(sc)
	if sc.Promotion {
		visitCategory(t, CategoryPinned, fn, condemned, maxGen, sc)
		visitCategory(t, CategoryStrong, fn, condemned, maxGen, sc)
		return
	}
	visitCategory(t, CategoryStrong, fn, condemned, maxGen, sc)
	visitCategory(t, CategoryPinned, fn, condemned, maxGen, sc)
	visitCategory(t, CategoryLongWeak, fn, condemned, maxGen, sc)
	visitCategory(t, CategoryShortWeak, fn, condemned, maxGen, sc)
	if s.cfg.SizedRefHandles {
		visitCategory(t, CategorySizedRef, fn, condemned, maxGen, sc)
	}
	if s.cfg.BridgeObjects {
		visitCategory(t, CategoryBridge, fn, condemned, maxGen, sc)
	}
	s.dependents[sc.ThreadIndex].ScanForRelocation(fn, condemned, maxGen, sc)
	visitCategory(t, CategoryWeakInterior, fn, condemned, maxGen, sc)
}

// ScanRelocationPhase is the collector-facing name for the relocation walk.
// Only meaningful after a promoting phase whose surviving objects moved.
func (s *Scanner) ScanRelocationPhase(fn PromoteFunc, condemned, maxGen int, sc *ScanContext) {
	sc.Promotion = false
	sc.Condemned = condemned
	sc.MaxGen = maxGen
	s.ScanHandles(fn, condemned, maxGen, sc)
}

// ScanSizedRefs walks the sized-ref category once per promotion phase. A
// no-op when the feature is disabled.
func (s *Scanner) ScanSizedRefs(fn PromoteFunc, condemned, maxGen int, sc *ScanContext) {
	if !s.cfg.SizedRefHandles {
		return
	}
	visitCategory(s.table(sc), CategorySizedRef, fn, condemned, maxGen, sc)
}

// ScanBridgeObjects reports cross-runtime bridge referents to the promotion
// callback so the foreign runtime's half of the object graph keeps its
// anchors. A no-op when the feature is disabled. Bridge processing has no
// relocation-phase counterpart of its own (the relocation walk rewrites the
// slots like any other category), so calling this outside the promotion
// phase is a sequencing error.
func (s *Scanner) ScanBridgeObjects(fn PromoteFunc, condemned, maxGen int, sc *ScanContext) {
	if !s.cfg.BridgeObjects {
		return
	}
	if !sc.Promotion {
		panic("scan: bridge objects are scanned during the promotion phase only")
	}
	visitCategory(s.table(sc), CategoryBridge, fn, condemned, maxGen, sc)
}

// UnpromotedDependentHandlesExist reports whether this heap still has pairs
// that could need promotion. When false the collector may skip every further
// dependent-handle re-scan for this cycle.
func (s *Scanner) UnpromotedDependentHandlesExist(sc *ScanContext) bool {
	return s.dependents[sc.ThreadIndex].UnpromotedHandlesExist()
}

// RescanDependentHandles re-runs the promotion walk for this heap, returning
// whether any secondary was promoted. The collector loops, alternating its
// own mark-stack drain with this re-scan, until neither reports progress.
func (s *Scanner) RescanDependentHandles(sc *ScanContext) bool {
	return s.dependents[sc.ThreadIndex].Rescan()
}

// ScanWeakReferences clears dead long-weak handles and then dead dependent
// pairs. Must run strictly after the dependent fixed point has converged on
// this heap.
func (s *Scanner) ScanWeakReferences(condemned, maxGen int, sc *ScanContext) (weakCleared, dependentCleared int) {
	weakCleared = s.weaks[sc.ThreadIndex].ScanForDeath(condemned, maxGen, sc)
	dependentCleared = s.dependents[sc.ThreadIndex].ScanForClearing(condemned, maxGen, sc)
	return weakCleared, dependentCleared
}

// ScanShortWeakReferences clears short-weak handles under the strict
// non-resurrection test. Runs every collection, promoting or not.
func (s *Scanner) ScanShortWeakReferences(condemned, maxGen int, sc *ScanContext) int {
	return s.weaks[sc.ThreadIndex].ScanShortWeakForDeath(condemned, maxGen, sc)
}

// ScanSyncBlockWeakReferences runs the single-threaded weak pass over the
// process-global cache. The orchestration above this layer invokes it from
// exactly one worker.
func (s *Scanner) ScanSyncBlockWeakReferences(sc *ScanContext) {
	s.weaks[sc.ThreadIndex].ScanSyncBlockWeakReferences(sc)
}

// RelocateSyncBlockReferences rewrites surviving cache referents to their
// post-compaction addresses. Like the cache weak pass, the cache is
// process-global and this runs from exactly one worker.
func (s *Scanner) RelocateSyncBlockReferences(fn PromoteFunc, sc *ScanContext) {
	s.cache.WeakScan(func(ref *ObjectRef) {
		if *ref != 0 {
			fn(ref, nil, sc, CallDefault)
		}
	})
}

// PromotionsGranted finalizes a successful collection for this heap: handle
// ages advance and (once per collection) the sync block cache is notified.
func (s *Scanner) PromotionsGranted(condemned, maxGen int, sc *ScanContext) {
	s.notifiers[sc.ThreadIndex].PromotionsGranted(condemned, maxGen, sc)
}

// Demote records an aborted or partial collection for this heap.
func (s *Scanner) Demote(condemned, maxGen int, sc *ScanContext) {
	s.notifiers[sc.ThreadIndex].Demote(condemned, maxGen, sc)
}

// VerifyHandleTable is the diagnostic-only consistency check; never part of
// the production scan sequence.
func (s *Scanner) VerifyHandleTable(condemned, maxGen int, sc *ScanContext) error {
	return s.table(sc).Verify(condemned, maxGen)
}

// ScanHandlesForDiagnostics reports current handle contents to the
// diagnostics sink. Read-only: it must not influence promotion or liveness.
func (s *Scanner) ScanHandlesForDiagnostics(maxGen int, sc *ScanContext) {
	if !s.cfg.Diagnostics {
		return
	}
	t := s.table(sc)
	for _, cat := range []Category{CategoryStrong, CategoryPinned, CategoryShortWeak, CategoryLongWeak, CategorySizedRef, CategoryWeakInterior, CategoryBridge} {
		t.ForEachInCategory(cat, maxGen, maxGen, func(slot Slot) {
			s.diag.HandleScanned(cat, slot.Generation(), slot.Object())
		})
	}
}

// ScanDependentHandlesForDiagnostics reports dependent pair contents to the
// diagnostics sink, read-only.
func (s *Scanner) ScanDependentHandlesForDiagnostics(maxGen int, sc *ScanContext) {
	if !s.cfg.Diagnostics {
		return
	}
	s.table(sc).ForEachDependent(maxGen, maxGen, func(slot DependentSlot) {
		s.diag.DependentScanned(slot.Object(), slot.Secondary())
	})
}

// visitCategory reports each non-empty slot of cat to the callback and writes
// any updated reference back into the slot.
func visitCategory(t HandleTable, cat Category, fn PromoteFunc, condemned, maxGen int, sc *ScanContext) {
	flags := CallDefault
	switch cat {
	case CategoryPinned:
		flags = CallPinned
	case CategoryWeakInterior:
		flags = CallInterior
	}
	t.ForEachInCategory(cat, condemned, maxGen, func(slot Slot) {
		ref := slot.Object()
		if ref == 0 {
			return
		}
		fn(&ref, slot.Extra(), sc, flags)
		slot.SetObject(ref)
	})
}
