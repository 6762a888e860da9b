package scan

// DependentHandleScanner drives the fixed-point promotion of dependent
// (primary, secondary) pairs for one heap. The mark phase is allowed to hand
// us incomplete results: a mark-stack overflow or unsynchronized server-mode
// marking may mean not every reachable object is reported promoted yet. The
// scans performed here stay correct regardless; incompleteness only costs
// extra re-scan passes, never a wrong answer.
type DependentHandleScanner struct {
	table HandleTable
	heap  Heap
	ctx   *DhContext
}

// NewDependentHandleScanner allocates the scanner and its DhContext once at
// subsystem initialization; both are reused by every subsequent collection.
func NewDependentHandleScanner(table HandleTable, heap Heap) *DependentHandleScanner {
	return &DependentHandleScanner{
		table: table,
		heap:  heap,
		ctx:   &DhContext{},
	}
}

// Context exposes the per-heap scanning state.
func (d *DependentHandleScanner) Context() *DhContext {
	return d.ctx
}

// InitialScan records the cycle's promotion callback and generation
// parameters into the DhContext, then performs the first promotion walk.
//
// If UnpromotedHandlesExist is false afterwards, it does not matter how many
// promotions the mark engine is still missing: no pair in the table could
// need promotion, and the whole fixed-point loop can be skipped. That is the
// common case, and the reason this scan is worth running before the collector
// pays for any synchronization.
func (d *DependentHandleScanner) InitialScan(fn PromoteFunc, condemned, maxGen int, sc *ScanContext) {
	d.ctx.Fn = fn
	d.ctx.Condemned = condemned
	d.ctx.MaxGen = maxGen
	d.ctx.Scan = sc

	d.scanForPromotion()
}

// UnpromotedHandlesExist reports whether any pair remains whose primary is
// unreachable so far and whose secondary has not been promoted.
func (d *DependentHandleScanner) UnpromotedHandlesExist() bool {
	return d.ctx.UnpromotedPrimaries
}

// Rescan repeats the promotion walk and reports whether it promoted at least
// one secondary. The collector may call this an unbounded number of times:
// promoting a secondary late in the table can make an earlier pair's primary
// newly reachable, and the mark engine's own trace may only complete after
// several alternations of graph draining and re-scanning. Each productive
// pass strictly shrinks the set of unresolved pairs, so the loop is bounded
// by the table size.
func (d *DependentHandleScanner) Rescan() bool {
	return d.scanForPromotion()
}

// scanForPromotion is one full walk of the condemned-range dependent pairs.
// Pairs whose primary is reachable get their secondary reported to the
// promotion callback as a root. Self-referential pairs need no special case:
// once the primary is promoted the secondary already is too.
func (d *DependentHandleScanner) scanForPromotion() bool {
	ctx := d.ctx
	ctx.PromotedAny = false
	ctx.UnpromotedPrimaries = false

	d.table.ForEachDependent(ctx.Condemned, ctx.MaxGen, func(slot DependentSlot) {
		primary := slot.Object()
		secondary := slot.Secondary()
		if primary == 0 || secondary == 0 {
			return
		}

		if !d.heap.IsPromoted(primary) {
			if !d.heap.IsPromoted(secondary) {
				ctx.UnpromotedPrimaries = true
			}
			return
		}

		if !d.heap.IsPromoted(secondary) {
			ctx.Fn(&secondary, nil, ctx.Scan, CallDefault)
			slot.SetSecondary(secondary)
			ctx.PromotedAny = true
		}
	})

	return ctx.PromotedAny
}

// ScanForClearing nulls pairs whose primary is now definitively dead. The
// secondary's liveness is derived from the primary's and must not outlive it,
// so both slots are cleared together. Runs strictly after the mark result is
// final, alongside long-weak clearing.
func (d *DependentHandleScanner) ScanForClearing(condemned, maxGen int, sc *ScanContext) int {
	cleared := 0
	d.table.ForEachDependent(condemned, maxGen, func(slot DependentSlot) {
		primary := slot.Object()
		if primary == 0 || d.heap.IsPromoted(primary) {
			return
		}
		slot.SetObject(0)
		slot.SetSecondary(0)
		cleared++
	})
	return cleared
}

// ScanForRelocation rewrites both slots of surviving pairs to their
// post-compaction addresses.
func (d *DependentHandleScanner) ScanForRelocation(fn PromoteFunc, condemned, maxGen int, sc *ScanContext) {
	d.table.ForEachDependent(condemned, maxGen, func(slot DependentSlot) {
		if primary := slot.Object(); primary != 0 {
			fn(&primary, nil, sc, CallDefault)
			slot.SetObject(primary)
		}
		if secondary := slot.Secondary(); secondary != 0 {
			fn(&secondary, nil, sc, CallDefault)
			slot.SetSecondary(secondary)
		}
	})
}
