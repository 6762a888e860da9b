package scan

import (
	"strings"
	"testing"
)

func newTestScanner(t *testing.T, cfg Config, tables ...*fakeTable) (*Scanner, *fakeHeap, *fakeCache) {
	t.Helper()
	if len(tables) == 0 {
		tables = []*fakeTable{newFakeTable()}
	}
	heap := newFakeHeap()
	cache := &fakeCache{}
	handleTables := make([]HandleTable, len(tables))
	for i, ft := range tables {
		handleTables[i] = ft
	}
	s, err := NewScanner(cfg, handleTables, heap, &fakeRoots{}, cache, nil)
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	return s, heap, cache
}

func TestNewScannerValidation(t *testing.T) {
	t.Parallel()

	table := newFakeTable()
	heap := newFakeHeap()
	roots := &fakeRoots{}
	cache := &fakeCache{}

	tests := []struct {
		name    string
		tables  []HandleTable
		heap    Heap
		roots   RootEnumerator
		cache   SyncBlockCache
		cfg     Config
		wantErr string
	}{
		{"no tables", nil, heap, roots, cache, Config{}, "at least one handle table"},
		{"nil heap", []HandleTable{table}, nil, roots, cache, Config{}, "heap liveness"},
		{"nil roots", []HandleTable{table}, heap, nil, cache, Config{}, "root enumerator"},
		{"nil cache", []HandleTable{table}, heap, roots, nil, Config{}, "sync block cache"},
		{"diagnostics without sink", []HandleTable{table}, heap, roots, cache, Config{Diagnostics: true}, "no sink"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewScanner(tt.cfg, tt.tables, tt.heap, tt.roots, tt.cache, nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestServerModeSelection(t *testing.T) {
	t.Parallel()

	single, _, _ := newTestScanner(t, Config{})
	if single.ServerMode() {
		t.Fatal("one partition must select workstation mode")
	}

	multi, _, _ := newTestScanner(t, Config{}, newFakeTable(), newFakeTable())
	if !multi.ServerMode() {
		t.Fatal("multiple partitions must select server mode")
	}
	if multi.Heaps() != 2 {
		t.Fatalf("Heaps() = %d, want 2", multi.Heaps())
	}
}

func TestPromotionPhaseScansOnlyRootLikeCategories(t *testing.T) {
	t.Parallel()

	table := newFakeTable()
	table.addSlot(CategoryStrong, 0x100)
	table.addSlot(CategoryPinned, 0x200)
	table.addSlot(CategoryLongWeak, 0x300)
	table.addSlot(CategoryShortWeak, 0x400)
	table.addSlotExtra(CategoryWeakInterior, 0x508, 0x500)
	s, _, _ := newTestScanner(t, Config{}, table)

	rec := &recordingFunc{}
	sc := &ScanContext{Promotion: true}
	s.ScanHandles(rec.fn, 2, 2, sc)

	seen := make(map[ObjectRef]CallFlags)
	for _, c := range rec.calls {
		seen[c.ref] = c.flags
	}
	if len(seen) != 2 {
		t.Fatalf("promotion phase visited %d refs, want 2 (strong + pinned)", len(seen))
	}
	if flags, ok := seen[0x200]; !ok || flags&CallPinned == 0 {
		t.Fatal("pinned handle must be reported with the pinned flag")
	}
	if flags, ok := seen[0x100]; !ok || flags != CallDefault {
		t.Fatal("strong handle must be reported with default flags")
	}
}

func TestRelocationPhaseRewritesWeakSlots(t *testing.T) {
	t.Parallel()

	table := newFakeTable()
	strong := table.addSlot(CategoryStrong, 0x100)
	longWeak := table.addSlot(CategoryLongWeak, 0x200)
	shortWeak := table.addSlot(CategoryShortWeak, 0x300)
	sized := table.addSlotExtra(CategorySizedRef, 0x400, 64)
	pair := table.addPair(0x500, 0x600)
	interior := table.addSlotExtra(CategoryWeakInterior, 0x708, 0x700)
	bridge := table.addSlot(CategoryBridge, 0x800)
	s, _, _ := newTestScanner(t, Config{SizedRefHandles: true, BridgeObjects: true}, table)

	// Every surviving object moved up by 0x1000; interior pointers displace
	// by their base's delta.
	relocate := func(ref *ObjectRef, extra *uint64, sc *ScanContext, flags CallFlags) {
		if flags&CallInterior != 0 {
			*ref += 0x1000
			*extra += 0x1000
			return
		}
		*ref += 0x1000
	}

	sc := &ScanContext{}
	s.ScanRelocationPhase(relocate, 2, 2, sc)

	if sc.Promotion {
		t.Fatal("relocation phase must clear the promotion flag")
	}
	if strong.Object() != 0x1100 {
		t.Fatalf("strong = %#x, want 0x1100", uint64(strong.Object()))
	}
	if longWeak.Object() != 0x1200 {
		t.Fatal("long-weak slots must be rewritten or they dangle after compaction")
	}
	if shortWeak.Object() != 0x1300 {
		t.Fatal("short-weak slots must be rewritten or they dangle after compaction")
	}
	if sized.Object() != 0x1400 {
		t.Fatal("sized-ref slots must be rewritten")
	}
	if pair.Object() != 0x1500 || pair.Secondary() != 0x1600 {
		t.Fatal("dependent pairs must have both slots rewritten")
	}
	if interior.Object() != 0x1708 || *interior.Extra() != 0x1700 {
		t.Fatal("weak-interior slot and base word must both be rewritten")
	}
	if bridge.Object() != 0x1800 {
		t.Fatal("bridge slots must be rewritten")
	}
}

func TestSizedRefsDisabled(t *testing.T) {
	t.Parallel()

	table := newFakeTable()
	table.addSlotExtra(CategorySizedRef, 0x100, 64)
	s, _, _ := newTestScanner(t, Config{SizedRefHandles: false}, table)

	rec := &recordingFunc{}
	s.ScanSizedRefs(rec.fn, 2, 2, &ScanContext{Promotion: true})

	if len(rec.calls) != 0 {
		t.Fatal("sized-ref walk must be a no-op when the category is disabled")
	}
}

func TestBridgeScanPromotesBridgeReferents(t *testing.T) {
	t.Parallel()

	table := newFakeTable()
	table.addSlot(CategoryBridge, 0x100)
	s, heap, _ := newTestScanner(t, Config{BridgeObjects: true}, table)

	s.ScanBridgeObjects(heap.promote, 2, 2, &ScanContext{Promotion: true})

	if !heap.IsPromoted(0x100) {
		t.Fatal("bridge referent must be promoted during the promotion phase")
	}
}

func TestBridgeScanDisabledIsNoOp(t *testing.T) {
	t.Parallel()

	table := newFakeTable()
	table.addSlot(CategoryBridge, 0x100)
	s, _, _ := newTestScanner(t, Config{BridgeObjects: false}, table)

	rec := &recordingFunc{}
	// Phase does not matter when disabled; nothing may be visited either way.
	s.ScanBridgeObjects(rec.fn, 2, 2, &ScanContext{Promotion: false})

	if len(rec.calls) != 0 {
		t.Fatal("disabled bridge walk must visit nothing")
	}
}

func TestBridgeScanOutsidePromotionPhasePanics(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestScanner(t, Config{BridgeObjects: true})

	defer func() {
		if recover() == nil {
			t.Fatal("bridge scan outside the promotion phase should panic")
		}
	}()
	s.ScanBridgeObjects((&recordingFunc{}).fn, 2, 2, &ScanContext{Promotion: false})
}

func TestBeginPromotionScanReachesRootsHandlesAndDependents(t *testing.T) {
	t.Parallel()

	table := newFakeTable()
	table.addSlot(CategoryStrong, 0x100)
	table.addPair(0x100, 0x200)
	table.addSlotExtra(CategorySizedRef, 0x300, 64)
	table.addSlot(CategoryBridge, 0x500)

	heap := newFakeHeap()
	cache := &fakeCache{}
	roots := &fakeRoots{roots: []ObjectRef{0x400}}
	s, err := NewScanner(Config{SizedRefHandles: true, BridgeObjects: true}, []HandleTable{table}, heap, roots, cache, nil)
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}

	sc := &ScanContext{}
	s.BeginPromotionScan(heap.promote, 2, 2, sc)

	if !sc.Promotion {
		t.Fatal("promotion scan must set the promotion flag")
	}
	for _, ref := range []ObjectRef{0x100, 0x200, 0x300, 0x400, 0x500} {
		if !heap.IsPromoted(ref) {
			t.Fatalf("%#x not promoted by the initial promotion scan", uint64(ref))
		}
	}
}

func TestScanWeakReferencesClearsWeakThenDependent(t *testing.T) {
	t.Parallel()

	table := newFakeTable()
	table.addSlot(CategoryLongWeak, 0x100)
	table.addPair(0x200, 0x300)
	s, _, _ := newTestScanner(t, Config{}, table)

	weak, dep := s.ScanWeakReferences(2, 2, &ScanContext{})
	if weak != 1 {
		t.Fatalf("weakCleared = %d, want 1", weak)
	}
	if dep != 1 {
		t.Fatalf("dependentCleared = %d, want 1", dep)
	}
}

func TestPromotionsGrantedNotifiesCacheOnce(t *testing.T) {
	t.Parallel()

	const heaps = 4
	tables := make([]*fakeTable, heaps)
	for i := range tables {
		tables[i] = newFakeTable()
	}
	s, _, cache := newTestScanner(t, Config{}, tables...)

	for i := range heaps {
		s.PromotionsGranted(2, 2, &ScanContext{ThreadIndex: i})
	}

	if cache.granted != 1 {
		t.Fatalf("cache notifications = %d, want exactly 1 across %d workers", cache.granted, heaps)
	}
	for i, table := range tables {
		if table.agedCalls != 1 {
			t.Fatalf("partition %d aged %d times, want 1", i, table.agedCalls)
		}
	}
}

func TestDemoteNotifiesCacheOnce(t *testing.T) {
	t.Parallel()

	tables := []*fakeTable{newFakeTable(), newFakeTable()}
	s, _, cache := newTestScanner(t, Config{}, tables...)

	for i := range tables {
		s.Demote(2, 2, &ScanContext{ThreadIndex: i})
	}

	if cache.demoted != 1 {
		t.Fatalf("cache demote notifications = %d, want exactly 1", cache.demoted)
	}
	for i, table := range tables {
		if table.rejuvenatedCalls != 1 {
			t.Fatalf("partition %d rejuvenated %d times, want 1", i, table.rejuvenatedCalls)
		}
	}
}

func TestWorkstationModeNotifiesCache(t *testing.T) {
	t.Parallel()

	s, _, cache := newTestScanner(t, Config{})
	s.PromotionsGranted(2, 2, &ScanContext{ThreadIndex: 0})

	if cache.granted != 1 {
		t.Fatalf("cache notifications = %d, want 1", cache.granted)
	}
}
