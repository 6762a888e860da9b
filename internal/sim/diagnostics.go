package sim

import (
	"sync"

	"github.com/mabhi256/gcscan/internal/scan"
)

// CountingSink is a diagnostics sink that tallies what the read-only profiler
// passes report. It never influences scan results.
type CountingSink struct {
	mu         sync.Mutex
	byCategory map[scan.Category]int
	dependents int
}

func NewCountingSink() *CountingSink {
	return &CountingSink{
		byCategory: make(map[scan.Category]int),
	}
}

func (c *CountingSink) HandleScanned(cat scan.Category, gen int, ref scan.ObjectRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byCategory[cat]++
}

func (c *CountingSink) DependentScanned(primary, secondary scan.ObjectRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dependents++
}

// Counts returns the per-category tallies and the dependent pair count.
func (c *CountingSink) Counts() (map[scan.Category]int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[scan.Category]int, len(c.byCategory))
	for k, v := range c.byCategory {
		out[k] = v
	}
	return out, c.dependents
}

var _ scan.DiagnosticsSink = (*CountingSink)(nil)
