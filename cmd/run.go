package cmd

import (
	"fmt"
	"slices"

	"github.com/mabhi256/gcscan/internal/sim"
	"github.com/mabhi256/gcscan/internal/simtui"
	"github.com/spf13/cobra"
)

var (
	runOutput      string
	runHeaps       int
	runObjects     int
	runCycles      int
	runSeed        int64
	runMarkStack   int
	runOldEvery    int
	runFullEvery   int
	runDemoteEvery int
	runNoSizedRef  bool
	runBridge      bool
	runDiagnostics bool
	runVerify      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run collection cycles over a synthetic heap",
	Long: `Run builds a randomized object graph with a mixed handle population
(strong, pinned, short/long weak, dependent pairs, sized-ref, weak-interior),
then drives the full scan sequence for each collection cycle and reports what
was promoted, cleared, and moved.

Examples:
  gcscan run                        # workstation mode, 10 cycles
  gcscan run --heaps 4 --cycles 50  # server mode, 4 heap workers
  gcscan run -o tui                 # live dashboard
  gcscan run --markstack 16         # force mark-stack overflow`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		validFormats := []string{"cli", "tui"}
		if !slices.Contains(validFormats, runOutput) {
			return fmt.Errorf("invalid output format: %s. Valid options: %v", runOutput, validFormats)
		}
		return runConfig().Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := runConfig()

		if runOutput == "tui" {
			if err := simtui.Start(cfg); err != nil {
				return fmt.Errorf("unable to start TUI: %w", err)
			}
			return nil
		}

		runner, err := sim.NewRunner(cfg)
		if err != nil {
			return err
		}

		cycles, summary, err := runner.Run()
		if err != nil {
			return err
		}

		printCycles(cycles)
		printSummary(summary, runner)
		return nil
	},
}

func runConfig() *sim.Config {
	cfg := sim.DefaultConfig()
	cfg.Heaps = runHeaps
	cfg.Objects = runObjects
	cfg.Cycles = runCycles
	cfg.Seed = runSeed
	cfg.MarkStackCap = runMarkStack
	cfg.OldEvery = runOldEvery
	cfg.FullEvery = runFullEvery
	cfg.DemoteEvery = runDemoteEvery
	cfg.SizedRefHandles = !runNoSizedRef
	cfg.BridgeObjects = runBridge
	cfg.Diagnostics = runDiagnostics
	cfg.Verify = runVerify
	return cfg
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runOutput, "output", "o", "cli", "Output format (cli, tui)")
	runCmd.Flags().IntVar(&runHeaps, "heaps", 1, "Heap workers (>1 enables server mode)")
	runCmd.Flags().IntVar(&runObjects, "objects", 2000, "Initial object count")
	runCmd.Flags().IntVar(&runCycles, "cycles", 10, "Collection cycles to run")
	runCmd.Flags().Int64Var(&runSeed, "seed", 1, "Workload seed")
	runCmd.Flags().IntVar(&runMarkStack, "markstack", 256, "Mark stack capacity")
	runCmd.Flags().IntVar(&runOldEvery, "old-every", 4, "Condemn generation 1 every N cycles (0 = never)")
	runCmd.Flags().IntVar(&runFullEvery, "full-every", 8, "Condemn the max generation every N cycles (0 = never)")
	runCmd.Flags().IntVar(&runDemoteEvery, "demote-every", 0, "Abort the collection every N cycles (0 = never)")
	runCmd.Flags().BoolVar(&runNoSizedRef, "no-sizedref", false, "Disable the sized-ref handle category")
	runCmd.Flags().BoolVar(&runBridge, "bridge", false, "Enable the cross-runtime bridge handle category")
	runCmd.Flags().BoolVar(&runDiagnostics, "diagnostics", false, "Enable the read-only profiler passes")
	runCmd.Flags().BoolVar(&runVerify, "verify", false, "Verify the handle table after every cycle")

	runCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"cli", "tui"}, cobra.ShellCompDirectiveNoFileComp
	})
}
