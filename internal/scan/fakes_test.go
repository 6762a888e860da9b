package scan

// Test doubles for the scan layer's collaborators. The fake heap models the
// mark engine's view as a plain promoted set, so tests can hand the scanners
// deliberately incomplete mark results.

type fakeHeap struct {
	promoted    map[ObjectRef]bool
	resurrected map[ObjectRef]bool
}

func newFakeHeap(promoted ...ObjectRef) *fakeHeap {
	h := &fakeHeap{
		promoted:    make(map[ObjectRef]bool),
		resurrected: make(map[ObjectRef]bool),
	}
	for _, ref := range promoted {
		h.promoted[ref] = true
	}
	return h
}

func (h *fakeHeap) IsPromoted(ref ObjectRef) bool { return h.promoted[ref] }

func (h *fakeHeap) IsAlive(ref ObjectRef) bool {
	return h.promoted[ref] && !h.resurrected[ref]
}

// promote is a PromoteFunc that marks the referent in the fake heap.
func (h *fakeHeap) promote(ref *ObjectRef, extra *uint64, sc *ScanContext, flags CallFlags) {
	h.promoted[*ref] = true
}

type fakeSlot struct {
	object ObjectRef
	gen    int
	extra  *uint64
}

func (s *fakeSlot) Object() ObjectRef       { return s.object }
func (s *fakeSlot) SetObject(ref ObjectRef) { s.object = ref }
func (s *fakeSlot) Extra() *uint64          { return s.extra }
func (s *fakeSlot) Generation() int         { return s.gen }

type fakePair struct {
	fakeSlot
	secondary ObjectRef
}

func (p *fakePair) Secondary() ObjectRef       { return p.secondary }
func (p *fakePair) SetSecondary(ref ObjectRef) { p.secondary = ref }

type fakeTable struct {
	slots map[Category][]*fakeSlot
	pairs []*fakePair

	agedCalls        int
	rejuvenatedCalls int
}

func newFakeTable() *fakeTable {
	return &fakeTable{slots: make(map[Category][]*fakeSlot)}
}

func (t *fakeTable) addSlot(cat Category, ref ObjectRef) *fakeSlot {
	s := &fakeSlot{object: ref}
	t.slots[cat] = append(t.slots[cat], s)
	return s
}

func (t *fakeTable) addSlotExtra(cat Category, ref ObjectRef, extra uint64) *fakeSlot {
	s := &fakeSlot{object: ref, extra: &extra}
	t.slots[cat] = append(t.slots[cat], s)
	return s
}

func (t *fakeTable) addPair(primary, secondary ObjectRef) *fakePair {
	p := &fakePair{fakeSlot: fakeSlot{object: primary}, secondary: secondary}
	t.pairs = append(t.pairs, p)
	return p
}

func (t *fakeTable) ForEachInCategory(cat Category, condemned, maxGen int, visit func(Slot)) {
	for _, s := range t.slots[cat] {
		if s.gen <= condemned {
			visit(s)
		}
	}
}

func (t *fakeTable) ForEachDependent(condemned, maxGen int, visit func(DependentSlot)) {
	for _, p := range t.pairs {
		if p.gen <= condemned {
			visit(p)
		}
	}
}

func (t *fakeTable) AgeAll(condemned, maxGen int)        { t.agedCalls++ }
func (t *fakeTable) RejuvenateAll(condemned, maxGen int) { t.rejuvenatedCalls++ }
func (t *fakeTable) Verify(condemned, maxGen int) error  { return nil }

type fakeCache struct {
	slots   []ObjectRef
	granted int
	demoted int
}

func (c *fakeCache) WeakScan(visit func(ref *ObjectRef)) {
	for i := range c.slots {
		visit(&c.slots[i])
	}
}

func (c *fakeCache) PromotionsGranted(maxGen int) { c.granted++ }
func (c *fakeCache) Demote(maxGen int)            { c.demoted++ }

type fakeRoots struct {
	roots []ObjectRef
}

func (r *fakeRoots) ScanRoots(fn PromoteFunc, condemned, maxGen int, sc *ScanContext) {
	for _, root := range r.roots {
		ref := root
		fn(&ref, nil, sc, CallDefault)
	}
}

// callRecord captures one promotion callback invocation.
type callRecord struct {
	ref   ObjectRef
	flags CallFlags
}

type recordingFunc struct {
	calls []callRecord
}

func (r *recordingFunc) fn(ref *ObjectRef, extra *uint64, sc *ScanContext, flags CallFlags) {
	r.calls = append(r.calls, callRecord{ref: *ref, flags: flags})
}
