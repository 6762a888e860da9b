package scan

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ValidityGate is a reentrant counter gating whether GC-internal structures
// are safe to read. The counter starts at 1: structures are invalid until the
// handle subsystem finishes its first full initialization. Valid holds iff
// the counter is exactly zero.
//
// Readers (including out-of-process diagnostic readers) must be able to poll
// Valid without blocking, so the gate is a single atomic word and nothing
// else.
type ValidityGate struct {
	invalid atomic.Int32
}

func NewValidityGate() *ValidityGate {
	g := &ValidityGate{}
	g.invalid.Store(1)
	return g
}

// Valid reports whether GC structures are currently safe to inspect.
func (g *ValidityGate) Valid() bool {
	return g.invalid.Load() == 0
}

// MarkInvalid opens a reconfiguration window. Calls may nest; each must be
// balanced by exactly one MarkValid.
func (g *ValidityGate) MarkInvalid() {
	g.invalid.Add(1)
}

// MarkValid closes one reconfiguration window. An unbalanced call drives the
// counter negative, which means GC metadata bookkeeping is corrupt; that is a
// fatal programming error, not a recoverable condition.
func (g *ValidityGate) MarkValid() {
	if n := g.invalid.Add(-1); n < 0 {
		panic(fmt.Sprintf("scan: unbalanced ValidityGate release (counter %d)", n))
	}
}

// Set marks structures valid or invalid, mirroring the collector-facing
// SetStructuresValid entry point.
func (g *ValidityGate) Set(valid bool) {
	if valid {
		g.MarkValid()
	} else {
		g.MarkInvalid()
	}
}

// AcquireInvalidScope marks structures invalid and returns the matching
// release. The release is idempotent, so callers can defer it and also call
// it early without double-decrementing.
func (g *ValidityGate) AcquireInvalidScope() func() {
	g.MarkInvalid()
	return sync.OnceFunc(g.MarkValid)
}

// Structures is the process-wide gate for the collector's own metadata.
var Structures = NewValidityGate()

// StructuresValid reports the process-wide gate.
func StructuresValid() bool {
	return Structures.Valid()
}

// SetStructuresValid adjusts the process-wide gate.
func SetStructuresValid(valid bool) {
	Structures.Set(valid)
}
