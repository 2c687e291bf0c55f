package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/server-sim/server-sim/sim/metrics"
	"github.com/server-sim/server-sim/sim/scenario"
	"github.com/server-sim/server-sim/sim/trace"
)

var (
	scenarioPath string // Scenario file (.yaml, .yml or .toml); empty runs the built-in scenario
	seed         int64  // Overrides the scenario seed when set
	ticks        int    // Overrides the number of passes when set
	tickRate     int64  // Overrides the clock advance per pass when set
	logLevel     string // Log verbosity level
	traceLevel   string // Overrides the scenario trace level when set
	metricsOut   string // File receiving Prometheus text exposition after the run
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "server-sim",
	Short: "Tick-driven request flow simulator for server networks",
}

// runCmd executes a scenario and prints the end-of-run report
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		sc, err := loadScenario(scenarioPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		// CLI flags override the file only when explicitly set
		if cmd.Flags().Changed("seed") {
			sc.Seed = seed
		}
		if cmd.Flags().Changed("ticks") {
			sc.Ticks = ticks
		}
		if cmd.Flags().Changed("tick-rate") {
			sc.TickRate = tickRate
		}
		if cmd.Flags().Changed("trace") {
			sc.TraceLevel = traceLevel
		}

		startTime := time.Now()
		if err := runScenario(sc, os.Stdout, metricsOut); err != nil {
			logrus.Fatalf("simulation failed: %v", err)
		}
		logrus.Infof("Simulation complete in %s.", time.Since(startTime))
	},
}

func addLogFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadScenario reads path, or returns the built-in scenario when path is empty.
func loadScenario(path string) (*scenario.Scenario, error) {
	if path == "" {
		logrus.Info("no --scenario given, using the built-in web-stack scenario")
		return scenario.Default(), nil
	}
	sc, err := scenario.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return sc, nil
}

// runScenario builds and simulates sc, writes the metrics report and trace
// summary to w and, if metricsPath is set, the Prometheus exposition to that file.
func runScenario(sc *scenario.Scenario, w io.Writer, metricsPath string) error {
	registry := metrics.NewRegistry()
	built, err := scenario.Build(sc, registry)
	if err != nil {
		return err
	}
	logrus.Infof("Starting scenario %q with seed=%d, ticks=%d, tick rate=%d",
		sc.Name, sc.Seed, built.Ticks, built.Simulator.TickRate)

	if err := built.Simulator.Simulate(built.Ticks); err != nil {
		return err
	}
	built.Simulator.Metrics.Fprint(w)
	if built.Trace.Enabled() {
		printTraceSummary(w, trace.Summarize(built.Trace))
	}

	if metricsPath != "" {
		if err := writeMetrics(registry, metricsPath); err != nil {
			return err
		}
		logrus.Infof("metrics written to %s", metricsPath)
	}
	return nil
}

// writeMetrics writes the Prometheus text exposition to path. A failed
// close is reported since it may lose buffered output.
func writeMetrics(registry *metrics.Registry, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating metrics output: %w", err)
	}
	if err := registry.WriteText(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing metrics output: %w", err)
	}
	return nil
}

func printTraceSummary(w io.Writer, s *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Trace Summary ===")
	fmt.Fprintf(w, "Drops                : %d\n", s.TotalDrops)
	fmt.Fprintf(w, "Terminations         : %d\n", s.TotalTerminations)
	if s.Truncated > 0 {
		fmt.Fprintf(w, "Truncated Records    : %d\n", s.Truncated)
	}
	if s.TotalDrops > 0 {
		fmt.Fprintf(w, "Mean Drop Age        : %.2f ticks\n", s.MeanDropAge)
	}
	for _, node := range sortedNames(s.DropsByNode) {
		fmt.Fprintf(w, "  drops at %-12s: %d\n", node, s.DropsByNode[node])
	}
	for _, node := range sortedNames(s.TerminationsBy) {
		fmt.Fprintf(w, "  ended at %-12s: %d\n", node, s.TerminationsBy[node])
	}
}

func sortedNames(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario file (.yaml, .yml or .toml); built-in scenario if empty")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for request generation (overrides the scenario)")
	runCmd.Flags().IntVar(&ticks, "ticks", 2000, "Number of network passes (overrides the scenario)")
	runCmd.Flags().Int64Var(&tickRate, "tick-rate", 100, "Clock advance per pass in ticks (overrides the scenario)")
	addLogFlag(runCmd)
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Trace level (none, diagnostics)")
	runCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus text metrics to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(inspectCmd)
}
