package sim

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/mabhi256/gcscan/internal/handles"
	"github.com/mabhi256/gcscan/internal/mark"
	"github.com/mabhi256/gcscan/internal/scan"
	"github.com/mabhi256/gcscan/internal/syncblk"
	"github.com/mabhi256/gcscan/utils"
)

// Runner owns one synthetic heap and drives collection cycles through the
// scan orchestrator.
type Runner struct {
	cfg     *Config
	rng     *rand.Rand
	engine  *mark.Engine
	tables  []*handles.Table
	cache   *syncblk.Cache
	sink    *CountingSink
	scanner *scan.Scanner

	objects []scan.ObjectRef // live at last build/mutate, handle targets
}

// NewRunner builds the synthetic heap, distributes handles across the
// per-heap table partitions, and initializes the scan subsystem.
func NewRunner(cfg *Config) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	engine, err := mark.NewEngine(cfg.Heaps, cfg.MarkStackCap)
	if err != nil {
		return nil, fmt.Errorf("creating mark engine: %w", err)
	}

	r := &Runner{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		engine: engine,
		cache:  syncblk.NewCache(),
		sink:   NewCountingSink(),
	}
	for range cfg.Heaps {
		r.tables = append(r.tables, handles.NewTable())
	}

	r.buildHeap()

	scanTables := make([]scan.HandleTable, len(r.tables))
	for i, t := range r.tables {
		scanTables[i] = t
	}
	scanner, err := scan.NewScanner(scan.Config{
		SizedRefHandles: cfg.SizedRefHandles,
		BridgeObjects:   cfg.BridgeObjects,
		Diagnostics:     cfg.Diagnostics,
	}, scanTables, engine, engine, r.cache, r.sink)
	if err != nil {
		return nil, fmt.Errorf("creating scanner: %w", err)
	}
	r.scanner = scanner

	// First full initialization of the handle structures: the process-wide
	// gate was born invalid and opens here.
	if !scan.StructuresValid() {
		scan.SetStructuresValid(true)
	}

	return r, nil
}

// buildHeap populates the object graph, roots, handles, and cache slots.
func (r *Runner) buildHeap() {
	for range r.cfg.Objects {
		r.allocateObject()
	}
}

// allocateObject creates one object with a few references to existing
// objects, sometimes a root registration, and a randomized handle mix.
func (r *Runner) allocateObject() {
	gen := 0
	switch {
	case r.rng.Intn(10) == 0:
		gen = r.cfg.MaxGen
	case r.rng.Intn(5) == 0:
		gen = 1
	}

	size := uint64(16 + r.rng.Intn(496))
	finalizable := r.rng.Intn(20) == 0

	var refs []scan.ObjectRef
	for range r.rng.Intn(4) {
		if len(r.objects) == 0 {
			break
		}
		refs = append(refs, r.pick())
	}

	addr := r.engine.AddObject(gen, size, finalizable, refs...)
	r.objects = append(r.objects, addr)

	if r.rng.Intn(10) == 0 {
		r.engine.AddRoot(addr)
	}

	table := r.tables[r.rng.Intn(len(r.tables))]
	switch n := r.rng.Intn(100); {
	case n < 4:
		table.CreateHandle(scan.CategoryStrong, addr)
	case n < 6:
		table.CreateHandle(scan.CategoryPinned, addr)
	case n < 16:
		table.CreateHandle(scan.CategoryLongWeak, addr)
	case n < 26:
		table.CreateHandle(scan.CategoryShortWeak, addr)
	case n < 34:
		// Secondary depends on an arbitrary primary, not necessarily one
		// that references it.
		table.CreateDependentHandle(r.pickOr(addr), addr)
	case n < 36 && r.cfg.SizedRefHandles:
		table.CreateSizedRefHandle(addr, size)
	case n < 38:
		table.CreateWeakInteriorHandle(addr+8, uint64(addr))
	case n < 42:
		r.cache.Add(addr)
	case n < 44 && r.cfg.BridgeObjects:
		table.CreateHandle(scan.CategoryBridge, addr)
	}
}

func (r *Runner) pick() scan.ObjectRef {
	return r.objects[r.rng.Intn(len(r.objects))]
}

func (r *Runner) pickOr(fallback scan.ObjectRef) scan.ObjectRef {
	if len(r.objects) == 0 {
		return fallback
	}
	return r.pick()
}

// RunCycle performs one full collection: promotion phase with the
// dependent-handle fixed point, finalization promotion, weak clearing,
// compaction plus relocation (or the demotion notification), the trailing
// short-weak and sync block passes, and finally handle aging.
func (r *Runner) RunCycle(n int) (*CycleStats, error) {
	condemned := r.cfg.condemnedFor(n)
	demoted := r.cfg.DemoteEvery > 0 && (n+1)%r.cfg.DemoteEvery == 0
	stats := &CycleStats{Cycle: n, Condemned: condemned, Demoted: demoted}

	release := scan.Structures.AcquireInvalidScope()
	defer release()

	start := time.Now()
	r.engine.StartCycle(condemned, r.cfg.MaxGen)

	contexts := make([]*scan.ScanContext, r.cfg.Heaps)
	for i := range contexts {
		contexts[i] = &scan.ScanContext{
			Condemned:   condemned,
			MaxGen:      r.cfg.MaxGen,
			ThreadIndex: i,
		}
	}

	r.eachWorker(contexts, func(sc *scan.ScanContext) {
		r.scanner.BeginPromotionScan(r.engine.Promote, condemned, r.cfg.MaxGen, sc)
	})

	stats.RescanPasses += r.fixedPoint(contexts)

	if r.engine.PromoteFinalizable() > 0 {
		// Resurrection can reach dependent primaries; converge again.
		stats.RescanPasses += r.fixedPoint(contexts)
	}

	// Workers report into their own slot; stats aggregation happens only
	// after the join.
	weakCleared := make([]int, len(contexts))
	depCleared := make([]int, len(contexts))
	r.eachWorker(contexts, func(sc *scan.ScanContext) {
		weakCleared[sc.ThreadIndex], depCleared[sc.ThreadIndex] =
			r.scanner.ScanWeakReferences(condemned, r.cfg.MaxGen, sc)
	})
	for i := range contexts {
		stats.WeakCleared += weakCleared[i]
		stats.DependentCleared += depCleared[i]
	}

	if demoted {
		r.eachWorker(contexts, func(sc *scan.ScanContext) {
			r.scanner.Demote(condemned, r.cfg.MaxGen, sc)
		})
	} else {
		stats.Moved = r.engine.Compact()
		r.eachWorker(contexts, func(sc *scan.ScanContext) {
			r.scanner.ScanRelocationPhase(r.engine.Relocate, condemned, r.cfg.MaxGen, sc)
		})
		r.scanner.RelocateSyncBlockReferences(r.engine.Relocate, contexts[0])
	}

	shortWeakCleared := make([]int, len(contexts))
	r.eachWorker(contexts, func(sc *scan.ScanContext) {
		shortWeakCleared[sc.ThreadIndex] = r.scanner.ScanShortWeakReferences(condemned, r.cfg.MaxGen, sc)
	})
	for _, n := range shortWeakCleared {
		stats.ShortWeakCleared += n
	}
	r.scanner.ScanSyncBlockWeakReferences(contexts[0])

	// The promotion notification deliberately comes last, not between weak
	// clearing and relocation: aging moves surviving handles out of the
	// condemned range, and any walk after that point would skip them. Issuing
	// it earlier would leave the relocation and short-weak passes looking at
	// stale, never-revisited slots.
	if !demoted {
		r.eachWorker(contexts, func(sc *scan.ScanContext) {
			r.scanner.PromotionsGranted(condemned, r.cfg.MaxGen, sc)
		})
	}

	if r.cfg.Diagnostics {
		r.scanner.ScanHandlesForDiagnostics(r.cfg.MaxGen, contexts[0])
		r.scanner.ScanDependentHandlesForDiagnostics(r.cfg.MaxGen, contexts[0])
	}

	if r.cfg.Verify {
		for _, sc := range contexts {
			if err := r.scanner.VerifyHandleTable(condemned, r.cfg.MaxGen, sc); err != nil {
				return nil, fmt.Errorf("handle table verification failed on heap %d: %w", sc.ThreadIndex, err)
			}
		}
	}

	stats.Promoted = r.engine.PromotedCount()
	stats.Resurrected = r.engine.ResurrectedCount()
	stats.Overflows = r.engine.Overflows()
	stats.Duration = time.Since(start)
	return stats, nil
}

// fixedPoint alternates the mark engine's drain with dependent-handle
// re-scans until neither reports progress. Heaps that report no unpromoted
// primaries skip their re-scan entirely; that flag is what makes the common
// no-dependent-work cycle cost a single flat walk.
func (r *Runner) fixedPoint(contexts []*scan.ScanContext) int {
	passes := 0
	for {
		progress := r.engine.Drain()
		for _, sc := range contexts {
			if !r.scanner.UnpromotedDependentHandlesExist(sc) {
				continue
			}
			passes++
			if r.scanner.RescanDependentHandles(sc) {
				progress = true
			}
		}
		if !progress {
			return passes
		}
	}
}

// eachWorker runs fn once per heap context, in parallel in server mode.
func (r *Runner) eachWorker(contexts []*scan.ScanContext, fn func(sc *scan.ScanContext)) {
	if len(contexts) == 1 {
		fn(contexts[0])
		return
	}
	var wg sync.WaitGroup
	for _, sc := range contexts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(sc)
		}()
	}
	wg.Wait()
}

// mutate grows and perturbs the heap between cycles so consecutive
// collections see different work.
func (r *Runner) mutate() {
	births := r.cfg.Objects / 10
	if births == 0 {
		births = 1
	}
	for range births {
		r.allocateObject()
	}

	// Drop a fraction of roots so some objects die.
	roots := r.engine.Roots()
	for _, root := range roots {
		if r.rng.Intn(5) == 0 {
			r.engine.RemoveRoot(root)
		}
	}
}

// Advance prepares the next cycle's workload. Compaction invalidated old
// addresses, so the mutator's view of the heap is re-anchored before
// allocating against it.
func (r *Runner) Advance() {
	r.objects = r.engine.LiveAddresses()
	r.mutate()
}

// Run executes the configured number of cycles, mutating the heap between
// them, and returns the per-cycle stats plus a run summary.
func (r *Runner) Run() ([]CycleStats, *Summary, error) {
	var all []CycleStats
	for n := range r.cfg.Cycles {
		stats, err := r.RunCycle(n)
		if err != nil {
			return all, nil, fmt.Errorf("cycle %d: %w", n, err)
		}
		all = append(all, *stats)
		r.Advance()
	}
	return all, r.Summarize(all), nil
}

// Summarize aggregates per-cycle stats against the current heap state.
func (r *Runner) Summarize(cycles []CycleStats) *Summary {
	return summarize(cycles, r.cfg.Heaps, r.engine.ObjectCount(), r.engine.HeapSize())
}

// LiveObjects returns the current object count.
func (r *Runner) LiveObjects() int {
	return r.engine.ObjectCount()
}

// HeapSize returns the total size of live objects.
func (r *Runner) HeapSize() utils.MemorySize {
	return utils.MemorySize(r.engine.HeapSize())
}

// Sink exposes the diagnostics tallies for reporting.
func (r *Runner) Sink() *CountingSink {
	return r.sink
}

// Cache exposes the sync block cache for reporting.
func (r *Runner) Cache() *syncblk.Cache {
	return r.cache
}

// HandleCount returns the number of handle slots across all partitions.
func (r *Runner) HandleCount() int {
	total := 0
	for _, t := range r.tables {
		total += t.TotalCount()
	}
	return total
}
