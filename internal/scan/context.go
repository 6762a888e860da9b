package scan

// ScanContext carries the per-invocation parameters of one collection phase.
// In server mode every participating heap worker gets its own instance; the
// worker with ThreadIndex 0 is the one responsible for global, non-duplicated
// side effects.
type ScanContext struct {
	// Promotion is true during the mark phase and false during the
	// relocation (compaction fixup) phase.
	Promotion bool

	Condemned   int
	MaxGen      int
	ThreadIndex int
}

// DhContext is the per-heap dependent-handle scanning state. It is allocated
// once at handle-subsystem initialization and reused every collection; the
// initial scan records the cycle's callback and parameters so repeated
// re-scans don't need them re-passed.
type DhContext struct {
	Fn        PromoteFunc
	Condemned int
	MaxGen    int
	Scan      *ScanContext

	// UnpromotedPrimaries is true when at least one pair still has an
	// unreachable-so-far primary with an unpromoted secondary. While false,
	// no amount of further marking can create dependent-handle work, so all
	// re-scans may be skipped.
	UnpromotedPrimaries bool

	// PromotedAny reports whether the most recent walk promoted at least
	// one secondary.
	PromotedAny bool
}
