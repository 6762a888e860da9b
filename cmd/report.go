package cmd

import (
	"fmt"

	"github.com/mabhi256/gcscan/internal/sim"
	"github.com/mabhi256/gcscan/utils"
)

func printCycles(cycles []sim.CycleStats) {
	fmt.Println("🧹 Collection cycles:")
	for _, c := range cycles {
		outcome := "promoted"
		if c.Demoted {
			outcome = "demoted"
		}
		fmt.Printf("  #%-3d gen%-2d %-9s promoted=%-5d rescans=%-2d overflows=%-3d weak=%-4d short-weak=%-4d dependent=%-4d moved=%-5d %s\n",
			c.Cycle, c.Condemned, outcome,
			c.Promoted, c.RescanPasses, c.Overflows,
			c.WeakCleared, c.ShortWeakCleared, c.DependentCleared,
			c.Moved, utils.FormatDuration(c.Duration))
	}
}

func printSummary(s *sim.Summary, runner *sim.Runner) {
	const keyWidth = 22

	fmt.Println()
	fmt.Println("📊 Run summary:")
	fmt.Println("  " + utils.FormatKeyValue("Cycles", fmt.Sprintf("%d (%d heap workers)", s.Cycles, s.Heaps), keyWidth))
	fmt.Println("  " + utils.FormatKeyValue("Objects promoted", fmt.Sprintf("%d", s.TotalPromoted), keyWidth))
	fmt.Println("  " + utils.FormatKeyValue("Long-weak cleared", fmt.Sprintf("%d", s.TotalWeakCleared), keyWidth))
	fmt.Println("  " + utils.FormatKeyValue("Short-weak cleared", fmt.Sprintf("%d", s.TotalShortWeakCleared), keyWidth))
	fmt.Println("  " + utils.FormatKeyValue("Dependent cleared", fmt.Sprintf("%d", s.TotalDependentCleared), keyWidth))
	fmt.Println("  " + utils.FormatKeyValue("Dependent rescans", fmt.Sprintf("%d", s.TotalRescanPasses), keyWidth))
	fmt.Println("  " + utils.FormatKeyValue("Mark-stack overflows", fmt.Sprintf("%d", s.TotalOverflows), keyWidth))
	if s.DemotedCycles > 0 {
		fmt.Println("  " + utils.FormatKeyValue("Demoted cycles", fmt.Sprintf("%d", s.DemotedCycles), keyWidth))
	}
	fmt.Println("  " + utils.FormatKeyValue("Live objects", fmt.Sprintf("%d (%s)", s.LiveObjects, s.HeapSize), keyWidth))
	fmt.Println("  " + utils.FormatKeyValue("Handles", fmt.Sprintf("%d", runner.HandleCount()), keyWidth))
	fmt.Println("  " + utils.FormatKeyValue("Avg cycle", utils.FormatDuration(s.AvgDuration), keyWidth))
	fmt.Println("  " + utils.FormatKeyValue("Max cycle", utils.FormatDuration(s.MaxDuration), keyWidth))
	fmt.Println("  " + utils.FormatKeyValue("Cycle jitter", fmt.Sprintf("%.3f", s.DurationJitter), keyWidth))

	if counts, dependents := runner.Sink().Counts(); len(counts) > 0 || dependents > 0 {
		fmt.Println()
		fmt.Println("🔍 Diagnostics passes:")
		for cat, n := range counts {
			fmt.Println("  " + utils.FormatKeyValue(cat.String(), fmt.Sprintf("%d", n), keyWidth))
		}
		fmt.Println("  " + utils.FormatKeyValue("dependent pairs", fmt.Sprintf("%d", dependents), keyWidth))
	}
}
