// Package handles implements the handle table storage backing the scan
// layer: per-category slot partitions with generation bookkeeping, dependent
// pair storage, and the auxiliary word carried by sized-ref and weak-interior
// handles.
package handles

import (
	"github.com/mabhi256/gcscan/internal/scan"
)

// Handle is a single table slot. It satisfies scan.Slot, and scan.DependentSlot
// for the dependent category.
type Handle struct {
	category  scan.Category
	gen       int
	object    scan.ObjectRef
	secondary scan.ObjectRef
	extra     uint64
	hasExtra  bool
}

// Object returns the stored reference (the primary, for dependent handles).
func (h *Handle) Object() scan.ObjectRef { return h.object }

func (h *Handle) SetObject(ref scan.ObjectRef) { h.object = ref }

// Extra returns the slot's auxiliary word: the approximate size for
// sized-ref handles, the base object address for weak-interior handles.
// Nil for every other category.
func (h *Handle) Extra() *uint64 {
	if !h.hasExtra {
		return nil
	}
	return &h.extra
}

func (h *Handle) Generation() int { return h.gen }

// SetGeneration is used when registering handles for objects that already
// live in an older generation.
func (h *Handle) SetGeneration(gen int) { h.gen = gen }

func (h *Handle) Secondary() scan.ObjectRef { return h.secondary }

func (h *Handle) SetSecondary(ref scan.ObjectRef) { h.secondary = ref }

var (
	_ scan.Slot          = (*Handle)(nil)
	_ scan.DependentSlot = (*Handle)(nil)
)
