package handles

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mabhi256/gcscan/internal/scan"
)

// Table is one handle table partition. In server mode each heap worker owns
// one Table and scans it without cross-worker locking; the mutex exists for
// mutator-side create/destroy outside of collection windows.
type Table struct {
	mu         sync.RWMutex
	byCategory map[scan.Category][]*Handle
}

func NewTable() *Table {
	return &Table{
		byCategory: make(map[scan.Category][]*Handle),
	}
}

// CreateHandle registers a new slot of a plain category. Categories carrying
// more than one word (dependent, sized-ref, weak-interior) have dedicated
// constructors.
func (t *Table) CreateHandle(cat scan.Category, obj scan.ObjectRef) (*Handle, error) {
	switch cat {
	case scan.CategoryStrong, scan.CategoryPinned, scan.CategoryShortWeak, scan.CategoryLongWeak, scan.CategoryBridge:
	default:
		return nil, fmt.Errorf("category %s requires a dedicated constructor", cat)
	}
	return t.add(&Handle{category: cat, object: obj}), nil
}

// CreateDependentHandle registers a (primary, secondary) pair. The secondary
// is kept alive for as long as the primary is, with no reverse reference.
func (t *Table) CreateDependentHandle(primary, secondary scan.ObjectRef) *Handle {
	return t.add(&Handle{category: scan.CategoryDependent, object: primary, secondary: secondary})
}

// CreateSizedRefHandle registers a size-tracked strong handle.
func (t *Table) CreateSizedRefHandle(obj scan.ObjectRef, size uint64) *Handle {
	return t.add(&Handle{category: scan.CategorySizedRef, object: obj, extra: size, hasExtra: true})
}

// CreateWeakInteriorHandle registers a weak handle to an interior pointer;
// base is the address of the containing object, needed to relocate the
// interior pointer by the same displacement.
func (t *Table) CreateWeakInteriorHandle(interior scan.ObjectRef, base uint64) *Handle {
	return t.add(&Handle{category: scan.CategoryWeakInterior, object: interior, extra: base, hasExtra: true})
}

func (t *Table) add(h *Handle) *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byCategory[h.category] = append(t.byCategory[h.category], h)
	return h
}

// DestroyHandle removes a slot from the table.
func (t *Table) DestroyHandle(h *Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	slots := t.byCategory[h.category]
	for i, s := range slots {
		if s == h {
			slots[i] = slots[len(slots)-1]
			t.byCategory[h.category] = slots[:len(slots)-1]
			return
		}
	}
}

// ForEachInCategory visits every slot of cat whose generation falls in the
// condemned range. Each call is a fresh, finite pass.
func (t *Table) ForEachInCategory(cat scan.Category, condemned, maxGen int, visit func(scan.Slot)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, h := range t.byCategory[cat] {
		if h.gen <= condemned {
			visit(h)
		}
	}
}

// ForEachDependent visits every dependent pair in the condemned range.
func (t *Table) ForEachDependent(condemned, maxGen int, visit func(scan.DependentSlot)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, h := range t.byCategory[scan.CategoryDependent] {
		if h.gen <= condemned {
			visit(h)
		}
	}
}

// AgeAll advances condemned-range handles one generation, clamped at maxGen.
// Called once the collector has granted promotions, so the recorded ages keep
// matching the generation their referents now live in.
func (t *Table) AgeAll(condemned, maxGen int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, slots := range t.byCategory {
		for _, h := range slots {
			if h.gen <= condemned && h.gen < maxGen {
				h.gen++
			}
		}
	}
}

// RejuvenateAll resets condemned-range handles back to the youngest
// generation after an aborted or partial collection, so the next cycle scans
// them again.
func (t *Table) RejuvenateAll(condemned, maxGen int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, slots := range t.byCategory {
		for _, h := range slots {
			if h.gen <= condemned {
				h.gen = 0
			}
		}
	}
}

// Count returns the number of slots in cat.
func (t *Table) Count(cat scan.Category) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byCategory[cat])
}

// TotalCount returns the number of slots across all categories.
func (t *Table) TotalCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := 0
	for _, slots := range t.byCategory {
		total += len(slots)
	}
	return total
}

// Verify performs the diagnostic-only consistency check over the table. It
// reports every inconsistency found rather than stopping at the first.
func (t *Table) Verify(condemned, maxGen int) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var errs []error
	for cat, slots := range t.byCategory {
		for i, h := range slots {
			if h.category != cat {
				errs = append(errs, fmt.Errorf("%s slot %d: stored under wrong category %s", cat, i, h.category))
			}
			if h.gen < 0 || h.gen > maxGen {
				errs = append(errs, fmt.Errorf("%s slot %d: generation %d outside [0, %d]", cat, i, h.gen, maxGen))
			}
			if cat != scan.CategoryDependent && h.secondary != 0 {
				errs = append(errs, fmt.Errorf("%s slot %d: non-dependent slot carries a secondary", cat, i))
			}
			if cat == scan.CategoryDependent && h.object == 0 && h.secondary != 0 {
				errs = append(errs, fmt.Errorf("dependent slot %d: secondary outlived cleared primary", i))
			}
			switch cat {
			case scan.CategorySizedRef, scan.CategoryWeakInterior:
				if !h.hasExtra {
					errs = append(errs, fmt.Errorf("%s slot %d: missing auxiliary word", cat, i))
				}
			default:
				if h.hasExtra {
					errs = append(errs, fmt.Errorf("%s slot %d: unexpected auxiliary word", cat, i))
				}
			}
		}
	}
	return errors.Join(errs...)
}

var _ scan.HandleTable = (*Table)(nil)
