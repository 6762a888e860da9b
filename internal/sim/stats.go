package sim

import (
	"time"

	"github.com/mabhi256/gcscan/utils"
)

// CycleStats describes one completed collection cycle.
type CycleStats struct {
	Cycle     int
	Condemned int

	Promoted    int
	Resurrected int

	RescanPasses int
	Overflows    int

	WeakCleared      int
	ShortWeakCleared int
	DependentCleared int

	Moved   int
	Demoted bool

	Duration time.Duration
}

// Summary aggregates a full run.
type Summary struct {
	Cycles int
	Heaps  int

	TotalPromoted         int
	TotalWeakCleared      int
	TotalShortWeakCleared int
	TotalDependentCleared int
	TotalRescanPasses     int
	TotalOverflows        int
	DemotedCycles         int

	AvgDuration time.Duration
	MaxDuration time.Duration

	// DurationJitter is the normalized variance of cycle durations; values
	// near zero mean steady pause times.
	DurationJitter float64

	LiveObjects int
	HeapSize    utils.MemorySize
}

func summarize(cycles []CycleStats, heaps, liveObjects int, heapSize uint64) *Summary {
	s := &Summary{
		Cycles:      len(cycles),
		Heaps:       heaps,
		LiveObjects: liveObjects,
		HeapSize:    utils.MemorySize(heapSize),
	}

	durations := make([]time.Duration, 0, len(cycles))
	for _, c := range cycles {
		s.TotalPromoted += c.Promoted
		s.TotalWeakCleared += c.WeakCleared
		s.TotalShortWeakCleared += c.ShortWeakCleared
		s.TotalDependentCleared += c.DependentCleared
		s.TotalRescanPasses += c.RescanPasses
		s.TotalOverflows += c.Overflows
		if c.Demoted {
			s.DemotedCycles++
		}
		if c.Duration > s.MaxDuration {
			s.MaxDuration = c.Duration
		}
		durations = append(durations, c.Duration)
	}

	if len(durations) > 0 {
		s.AvgDuration = time.Duration(utils.CalculateMean(durations))
		s.DurationJitter = utils.CalculateDurationVariance(durations, s.AvgDuration)
	}
	return s
}
