// Package sim drives complete collection cycles over a synthetic heap: it
// wires the handle tables, the mark engine, and the sync block cache through
// the scan orchestrator for one or more heap workers and collects per-cycle
// statistics.
package sim

import "fmt"

// Config holds the workload parameters for a simulation run.
type Config struct {
	// Heaps is the number of heap workers; 1 selects workstation mode.
	Heaps int

	// Objects is the initial object count of the synthetic heap.
	Objects int

	// Cycles is how many collections Run performs.
	Cycles int

	// MaxGen is the oldest generation.
	MaxGen int

	// MarkStackCap bounds the mark stack; small values force overflow and
	// exercise the linear re-mark path.
	MarkStackCap int

	// Seed makes the workload reproducible.
	Seed int64

	// OldEvery condemns generation 1 every Nth cycle, FullEvery condemns
	// MaxGen every Nth cycle; zero disables either. Full wins on overlap.
	OldEvery  int
	FullEvery int

	// DemoteEvery simulates an aborted collection every Nth cycle; zero
	// disables it.
	DemoteEvery int

	SizedRefHandles bool
	BridgeObjects   bool
	Diagnostics     bool

	// Verify runs the diagnostic handle table check after every cycle.
	Verify bool
}

func DefaultConfig() *Config {
	return &Config{
		Heaps:           1,
		Objects:         2000,
		Cycles:          10,
		MaxGen:          2,
		MarkStackCap:    256,
		Seed:            1,
		OldEvery:        4,
		FullEvery:       8,
		SizedRefHandles: true,
	}
}

func (c *Config) Validate() error {
	if c.Heaps < 1 {
		return fmt.Errorf("at least one heap is required")
	}
	if c.Objects < 1 {
		return fmt.Errorf("object count must be positive")
	}
	if c.Cycles < 1 {
		return fmt.Errorf("cycle count must be positive")
	}
	if c.MaxGen < 1 {
		return fmt.Errorf("max generation must be at least 1")
	}
	if c.MarkStackCap < 1 {
		return fmt.Errorf("mark stack capacity must be positive")
	}
	return nil
}

// condemnedFor applies the generation policy for cycle n (0-based).
func (c *Config) condemnedFor(n int) int {
	if c.FullEvery > 0 && (n+1)%c.FullEvery == 0 {
		return c.MaxGen
	}
	if c.OldEvery > 0 && (n+1)%c.OldEvery == 0 {
		return 1
	}
	return 0
}
