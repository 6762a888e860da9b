package scan

import "testing"

func TestScanForDeathClearsDeadLongWeak(t *testing.T) {
	t.Parallel()

	table := newFakeTable()
	dead := table.addSlot(CategoryLongWeak, 0x100)
	live := table.addSlot(CategoryLongWeak, 0x200)
	empty := table.addSlot(CategoryLongWeak, 0)
	heap := newFakeHeap(0x200)
	w := NewWeakReferenceScanner(table, heap, &fakeCache{})

	cleared := w.ScanForDeath(2, 2, &ScanContext{})

	if cleared != 1 {
		t.Fatalf("cleared = %d, want 1", cleared)
	}
	if dead.Object() != 0 {
		t.Fatal("dead long-weak slot must be nulled")
	}
	if live.Object() != 0x200 {
		t.Fatal("live long-weak slot must be untouched")
	}
	if empty.Object() != 0 {
		t.Fatal("empty slot must stay empty")
	}
}

func TestScanForDeathKeepsResurrectedReferents(t *testing.T) {
	t.Parallel()

	// Promoted through finalization: long-weak handles track the lenient
	// test and must survive the resurrection window.
	table := newFakeTable()
	slot := table.addSlot(CategoryLongWeak, 0x100)
	heap := newFakeHeap(0x100)
	heap.resurrected[0x100] = true
	w := NewWeakReferenceScanner(table, heap, &fakeCache{})

	if cleared := w.ScanForDeath(2, 2, &ScanContext{}); cleared != 0 {
		t.Fatalf("cleared = %d, want 0", cleared)
	}
	if slot.Object() != 0x100 {
		t.Fatal("long-weak slot to a resurrected object must survive")
	}
}

func TestScanForDeathClearsWeakInteriorWithDeadBase(t *testing.T) {
	t.Parallel()

	table := newFakeTable()
	dead := table.addSlotExtra(CategoryWeakInterior, 0x108, 0x100)
	live := table.addSlotExtra(CategoryWeakInterior, 0x208, 0x200)
	heap := newFakeHeap(0x200)
	w := NewWeakReferenceScanner(table, heap, &fakeCache{})

	cleared := w.ScanForDeath(2, 2, &ScanContext{})

	if cleared != 1 {
		t.Fatalf("cleared = %d, want 1", cleared)
	}
	if dead.Object() != 0 {
		t.Fatal("interior pointer with a dead base must be nulled")
	}
	if *dead.Extra() != 0 {
		t.Fatal("base word of a cleared weak-interior slot must be zeroed")
	}
	if live.Object() != 0x208 || *live.Extra() != 0x200 {
		t.Fatal("interior pointer with a live base must be untouched")
	}
}

func TestShortWeakUsesStrictLiveness(t *testing.T) {
	t.Parallel()

	table := newFakeTable()
	resurrectedSlot := table.addSlot(CategoryShortWeak, 0x100)
	liveSlot := table.addSlot(CategoryShortWeak, 0x200)
	heap := newFakeHeap(0x100, 0x200)
	heap.resurrected[0x100] = true
	w := NewWeakReferenceScanner(table, heap, &fakeCache{})

	cleared := w.ScanShortWeakForDeath(2, 2, &ScanContext{})

	if cleared != 1 {
		t.Fatalf("cleared = %d, want 1", cleared)
	}
	if resurrectedSlot.Object() != 0 {
		t.Fatal("short-weak slot must clear when the referent only survives via finalization")
	}
	if liveSlot.Object() != 0x200 {
		t.Fatal("short-weak slot to a truly live object must survive")
	}
}

func TestSyncBlockWeakScanNullsDeadReferents(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{slots: []ObjectRef{0x100, 0x200, 0}}
	heap := newFakeHeap(0x200)
	w := NewWeakReferenceScanner(newFakeTable(), heap, cache)

	w.ScanSyncBlockWeakReferences(&ScanContext{})

	if cache.slots[0] != 0 {
		t.Fatal("dead cache referent must be nulled")
	}
	if cache.slots[1] != 0x200 {
		t.Fatal("live cache referent must survive")
	}
	if cache.slots[2] != 0 {
		t.Fatal("empty cache slot must stay empty")
	}
}

func TestWeakScansRespectCondemnedRange(t *testing.T) {
	t.Parallel()

	table := newFakeTable()
	oldWeak := table.addSlot(CategoryLongWeak, 0x100)
	oldWeak.gen = 2
	oldShort := table.addSlot(CategoryShortWeak, 0x100)
	oldShort.gen = 1
	heap := newFakeHeap() // nothing promoted
	w := NewWeakReferenceScanner(table, heap, &fakeCache{})
	sc := &ScanContext{}

	if cleared := w.ScanForDeath(0, 2, sc); cleared != 0 {
		t.Fatalf("out-of-range long-weak cleared = %d, want 0", cleared)
	}
	if cleared := w.ScanShortWeakForDeath(0, 2, sc); cleared != 0 {
		t.Fatalf("out-of-range short-weak cleared = %d, want 0", cleared)
	}
	if oldWeak.Object() != 0x100 || oldShort.Object() != 0x100 {
		t.Fatal("handles outside the condemned range must be untouched")
	}
}
