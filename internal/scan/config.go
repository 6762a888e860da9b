package scan

// Config holds the feature flags the orchestrator resolves once at startup.
// Disabled features turn the corresponding scan states into no-ops.
type Config struct {
	// SizedRefHandles enables the optional sized-ref category walk during
	// the promotion phase.
	SizedRefHandles bool

	// BridgeObjects enables the cross-runtime bridge handle category and its
	// promotion-phase scan.
	BridgeObjects bool

	// Diagnostics enables the read-only profiler side passes. When false the
	// diagnostics sink is never consulted.
	Diagnostics bool
}
