package mark

import (
	"testing"

	"github.com/mabhi256/gcscan/internal/scan"
)

func newTestEngine(t *testing.T, stackCap int) *Engine {
	t.Helper()
	e, err := NewEngine(1, stackCap)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestNewEngineValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewEngine(0, 16); err == nil {
		t.Error("zero heaps should be rejected")
	}
	if _, err := NewEngine(1, 0); err == nil {
		t.Error("zero stack capacity should be rejected")
	}
}

func TestDrainTracesTransitively(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 64)
	c := e.AddObject(0, 32, false)
	b := e.AddObject(0, 32, false, c)
	a := e.AddObject(0, 32, false, b)
	dead := e.AddObject(0, 32, false)

	e.StartCycle(2, 2)
	sc := &scan.ScanContext{Promotion: true}
	ref := a
	e.Promote(&ref, nil, sc, scan.CallDefault)
	e.Drain()

	for _, addr := range []scan.ObjectRef{a, b, c} {
		if !e.IsPromoted(addr) {
			t.Fatalf("%#x should be promoted through the reference chain", uint64(addr))
		}
	}
	if e.IsPromoted(dead) {
		t.Fatal("unreferenced object should stay unpromoted")
	}
	if got := e.PromotedCount(); got != 3 {
		t.Fatalf("PromotedCount = %d, want 3", got)
	}
}

// A stack of capacity 1 cannot hold a wide object's children; marking must
// still complete through the overflow recovery pass.
func TestMarkStackOverflowRecovery(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 1)

	var leaves []scan.ObjectRef
	for range 20 {
		leaf := e.AddObject(0, 32, false)
		leaves = append(leaves, leaf)
	}
	root := e.AddObject(0, 32, false, leaves...)

	e.StartCycle(2, 2)
	sc := &scan.ScanContext{Promotion: true}
	ref := root
	e.Promote(&ref, nil, sc, scan.CallDefault)
	e.Drain()

	for _, leaf := range leaves {
		if !e.IsPromoted(leaf) {
			t.Fatalf("leaf %#x missed despite overflow recovery", uint64(leaf))
		}
	}
	if e.Overflows() == 0 {
		t.Fatal("expected at least one overflow with a capacity-1 stack")
	}
}

func TestOldGenerationObjectsCountAsPromoted(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 16)
	old := e.AddObject(2, 32, false)

	e.StartCycle(0, 2) // ephemeral collection

	if !e.IsPromoted(old) {
		t.Fatal("object above the condemned range is not subject to collection")
	}
	if !e.IsAlive(old) {
		t.Fatal("object above the condemned range is alive")
	}
}

func TestPromoteFinalizableResurrection(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 16)
	child := e.AddObject(0, 32, false)
	finalizable := e.AddObject(0, 32, true, child)

	e.StartCycle(2, 2)
	e.Drain()

	if e.IsPromoted(finalizable) {
		t.Fatal("dead finalizable object should be unpromoted before the finalization pass")
	}

	count := e.PromoteFinalizable()
	if count != 2 {
		t.Fatalf("PromoteFinalizable = %d, want 2 (finalizable + reachable child)", count)
	}

	for _, addr := range []scan.ObjectRef{finalizable, child} {
		if !e.IsPromoted(addr) {
			t.Fatalf("%#x should be promoted through resurrection", uint64(addr))
		}
		if e.IsAlive(addr) {
			t.Fatalf("%#x survives only via finalization and must fail the strict test", uint64(addr))
		}
	}
}

func TestPromoteFinalizableSkipsAlreadyMarked(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 16)
	finalizable := e.AddObject(0, 32, true)

	e.StartCycle(2, 2)
	sc := &scan.ScanContext{Promotion: true}
	ref := finalizable
	e.Promote(&ref, nil, sc, scan.CallDefault)
	e.Drain()

	if count := e.PromoteFinalizable(); count != 0 {
		t.Fatalf("PromoteFinalizable = %d for an already-reachable object, want 0", count)
	}
	if !e.IsAlive(finalizable) {
		t.Fatal("directly reachable finalizable object is alive, not resurrected")
	}
}

func TestCompactRewritesReferencesAndRoots(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 64)
	b := e.AddObject(0, 32, false)
	a := e.AddObject(0, 32, false, b)
	dead := e.AddObject(0, 32, false)
	e.AddRoot(a)

	e.StartCycle(2, 2)
	sc := &scan.ScanContext{Promotion: true}
	e.ScanRoots(e.Promote, 2, 2, &scan.ScanContext{})
	e.Drain()

	moved := e.Compact()
	if moved != 2 {
		t.Fatalf("Compact moved %d objects, want 2", moved)
	}
	if e.ObjectCount() != 2 {
		t.Fatalf("ObjectCount = %d after compaction, want 2", e.ObjectCount())
	}
	if _, ok := e.Object(dead); ok {
		t.Fatal("dead object should be discarded by compaction")
	}

	// The old address must forward to the same object the rewritten root
	// now names.
	newA := a
	e.Relocate(&newA, nil, sc, scan.CallDefault)
	roots := e.Roots()
	if len(roots) != 1 || roots[0] != newA {
		t.Fatalf("root = %v, want forwarded %#x", roots, uint64(newA))
	}

	objA, ok := e.Object(newA)
	if !ok {
		t.Fatal("forwarded address does not resolve")
	}
	if objA.Gen != 1 {
		t.Fatalf("survivor generation = %d, want advanced to 1", objA.Gen)
	}
	newB := b
	e.Relocate(&newB, nil, sc, scan.CallDefault)
	if len(objA.Refs) != 1 || objA.Refs[0] != newB {
		t.Fatalf("intra-heap reference %v not rewritten to %#x", objA.Refs, uint64(newB))
	}
}

func TestCompactLeavesOldGenerationInPlace(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 16)
	old := e.AddObject(2, 32, false)

	e.StartCycle(0, 2)
	e.Drain()
	e.Compact()

	if _, ok := e.Object(old); !ok {
		t.Fatal("object above the condemned range must not move or die")
	}
}

func TestRelocateInteriorPointer(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 16)
	base := e.AddObject(0, 64, false)
	e.AddRoot(base)

	e.StartCycle(2, 2)
	e.ScanRoots(e.Promote, 2, 2, &scan.ScanContext{})
	e.Drain()
	e.Compact()

	sc := &scan.ScanContext{}
	newBase := base
	e.Relocate(&newBase, nil, sc, scan.CallDefault)

	interior := base + 8
	baseWord := uint64(base)
	e.Relocate(&interior, &baseWord, sc, scan.CallInterior)

	if baseWord != uint64(newBase) {
		t.Fatalf("base word = %#x, want forwarded %#x", baseWord, uint64(newBase))
	}
	if interior != newBase+8 {
		t.Fatalf("interior = %#x, want displaced %#x", uint64(interior), uint64(newBase+8))
	}
}

func TestScanRootsPartitionsAcrossHeaps(t *testing.T) {
	t.Parallel()

	const heaps = 3
	e, err := NewEngine(heaps, 64)
	if err != nil {
		t.Fatal(err)
	}
	var roots []scan.ObjectRef
	for range 10 {
		addr := e.AddObject(0, 32, false)
		e.AddRoot(addr)
		roots = append(roots, addr)
	}

	seen := make(map[scan.ObjectRef]int)
	for i := range heaps {
		sc := &scan.ScanContext{ThreadIndex: i}
		e.ScanRoots(func(ref *scan.ObjectRef, extra *uint64, sc *scan.ScanContext, flags scan.CallFlags) {
			seen[*ref]++
		}, 2, 2, sc)
	}

	if len(seen) != len(roots) {
		t.Fatalf("workers saw %d distinct roots, want %d", len(seen), len(roots))
	}
	for addr, n := range seen {
		if n != 1 {
			t.Fatalf("root %#x reported %d times, want exactly once", uint64(addr), n)
		}
	}
}

func TestLiveAddressesIsSorted(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 16)
	for range 5 {
		e.AddObject(0, 32, false)
	}

	addrs := e.LiveAddresses()
	for i := 1; i < len(addrs); i++ {
		if addrs[i-1] >= addrs[i] {
			t.Fatalf("addresses out of order at %d: %v", i, addrs)
		}
	}
}
