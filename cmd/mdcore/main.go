package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/mdcore/internal/analysis"
	"github.com/san-kum/mdcore/internal/automation"
	"github.com/san-kum/mdcore/internal/config"
	"github.com/san-kum/mdcore/internal/experiment"
	"github.com/san-kum/mdcore/internal/optim"
	"github.com/san-kum/mdcore/internal/sim"
	"github.com/san-kum/mdcore/internal/store"
	"github.com/san-kum/mdcore/internal/telemetry"
)

var (
	dataDir  string
	logLevel string

	configFile  string
	preset      string
	mode        string
	evaluator   string
	atoms       int
	density     float64
	temperature float64
	steps       int
	seed        int64
	dt          float64
	stepSize    float64
	jitter      float64

	plot        bool
	outFile     string
	showMetrics bool
	replicas    int
	save        bool

	tolerance float64
	blocks    int

	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepN     int

	tuneSizes  []float64
	tuneTarget float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mdcore",
		Short: "particle simulation energy engine",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".mdcore", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addSystemFlags(runCmd)
	runCmd.Flags().StringVar(&mode, "mode", "md", "md or mc")
	runCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "steps")
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "md timestep")
	runCmd.Flags().Float64Var(&stepSize, "step-size", config.DefaultStepSize, "mc displacement")
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot the potential energy trace")
	runCmd.Flags().StringVar(&outFile, "out", "", "write the run as JSON ('-' for stdout)")
	runCmd.Flags().BoolVar(&showMetrics, "metrics", false, "dump engine metrics in Prometheus text format")
	runCmd.Flags().IntVar(&replicas, "replicas", 1, "independent runs with consecutive seeds")
	runCmd.Flags().BoolVar(&save, "save", true, "store the run under the data directory")

	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "evaluate one configuration with every evaluator",
		Args:  cobra.NoArgs,
		RunE:  compareEvaluators,
	}
	addSystemFlags(compareCmd)
	compareCmd.Flags().Float64Var(&tolerance, "tolerance", 1e-9, "largest allowed relative disagreement")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMODE\tEVAL\tPOTENTIAL\tATOMS\tDENSITY\tT")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.3f\t%.3f\n",
					name, p.Mode, p.Evaluator, p.Potential.Type, p.Atoms, p.Density, p.Temperature)
			}
			return w.Flush()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "energy statistics of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().IntVar(&blocks, "blocks", 10, "number of blocks for the error estimate")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "scan one parameter and report energy and pressure",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addSystemFlags(sweepCmd)
	sweepCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "steps per point")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "density", "parameter to scan")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0.5, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 0.9, "last value")
	sweepCmd.Flags().IntVar(&sweepN, "n", 5, "number of points")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a yaml scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "pick the mc step size closest to a target acceptance",
		Args:  cobra.NoArgs,
		RunE:  tuneStepSize,
	}
	addSystemFlags(tuneCmd)
	tuneCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "steps per trial run")
	tuneCmd.Flags().Float64SliceVar(&tuneSizes, "sizes", []float64{0.05, 0.1, 0.15, 0.2, 0.3}, "candidate step sizes")
	tuneCmd.Flags().Float64Var(&tuneTarget, "target", 0.5, "target acceptance")

	rootCmd.AddCommand(runCmd, compareCmd, presetsCmd, listCmd, plotCmd, exportCmd, analyzeCmd, sweepCmd, scenarioCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSystemFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&evaluator, "evaluator", "list", "brute, cell or list")
	cmd.Flags().IntVar(&atoms, "atoms", config.DefaultAtoms, "number of atoms")
	cmd.Flags().Float64Var(&density, "density", config.DefaultDensity, "number density")
	cmd.Flags().Float64Var(&temperature, "temperature", config.DefaultTemperature, "temperature")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().Float64Var(&jitter, "jitter", 0, "random lattice displacement")
}

// loadConfig layers preset, config file and explicitly set flags.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			logrus.Fatalf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			logrus.Fatalf("failed to load config: %v", err)
		}
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			apply()
		}
	}
	set("mode", func() { cfg.Mode = mode })
	set("evaluator", func() { cfg.Evaluator = evaluator })
	set("atoms", func() { cfg.Atoms = atoms })
	set("density", func() { cfg.Density = density })
	set("temperature", func() { cfg.Temperature = temperature })
	set("steps", func() { cfg.Steps = steps })
	set("seed", func() { cfg.Seed = seed })
	set("dt", func() { cfg.Dt = dt })
	set("step-size", func() { cfg.StepSize = stepSize })
	set("jitter", func() { cfg.Jitter = jitter })

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	return cfg
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	registry := experiment.NewRegistry()
	if replicas > 1 {
		return runEnsemble(ctx, cfg, registry)
	}

	promReg := prometheus.NewRegistry()
	collector, err := telemetry.NewCollector(promReg)
	if err != nil {
		return err
	}

	exp, err := experiment.Build(cfg, registry, collector)
	if err != nil {
		logrus.Fatalf("setup failed: %v", err)
	}

	fmt.Printf("running %s with %d atoms (%s evaluator)...\n", cfg.Mode, cfg.Atoms, exp.Engine().Strategy())
	start := time.Now()

	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	for _, e := range result.Errors {
		logrus.Errorf("run: %v", e)
	}

	data := store.NewExportData(cfg, exp.Pressure(), result)
	if save {
		st := store.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(runName(cfg), data)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	last := result.Samples[len(result.Samples)-1]
	fmt.Printf("energy: U=%.6f K=%.6f\n", last.Potential, last.Kinetic)
	fmt.Printf("pressure: %.6f\n", exp.Pressure())
	printMetrics(result.Metrics)

	if plot {
		plotSamples(result.Samples, "potential energy")
	}
	if outFile == "-" {
		if err := store.ExportJSONStdout(data); err != nil {
			return err
		}
	} else if outFile != "" {
		if err := store.ExportJSON(outFile, data); err != nil {
			return err
		}
	}
	if showMetrics {
		return dumpMetrics(promReg)
	}
	return nil
}

func runEnsemble(ctx context.Context, cfg *config.Config, registry *experiment.Registry) error {
	ensemble := sim.NewEnsemble(experiment.Factory(cfg, registry), replicas, cfg.Seed)
	simCfg := sim.Config{Steps: cfg.Steps, SampleEvery: cfg.SampleEvery, ValidateState: true}

	fmt.Printf("running %d replicas of %s with %d atoms...\n", replicas, cfg.Mode, cfg.Atoms)
	start := time.Now()
	results, err := ensemble.Run(ctx, simCfg)
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v\n\n", time.Since(start))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tSTEPS\tU/N\tDRIFT\tERRORS")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%d\t%.6f\t%.2e\t%d\n",
			cfg.Seed+int64(i), r.StepsTaken, r.Metrics["potential_per_atom"], r.EnergyDrift, len(r.Errors))
	}
	return w.Flush()
}

func runName(cfg *config.Config) string {
	if preset != "" {
		return preset
	}
	return fmt.Sprintf("%s-%s", cfg.Mode, cfg.Potential.Type)
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func plotSamples(samples []sim.Sample, caption string) {
	data := make([]float64, len(samples))
	for i, s := range samples {
		data[i] = s.Potential
	}
	if len(data) < 2 {
		fmt.Println("not enough samples to plot")
		return
	}
	graph := asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
	fmt.Println()
	fmt.Println(graph)
	fmt.Println()
}

func dumpMetrics(g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	fmt.Println()
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			return err
		}
	}
	return nil
}

func compareEvaluators(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	if !cmd.Flags().Changed("jitter") && cfg.Jitter == 0 {
		cfg.Jitter = 0.1
	}

	evals, err := experiment.Compare(cfg, experiment.NewRegistry(), nil)
	if err != nil {
		logrus.Fatalf("compare failed: %v", err)
	}

	fmt.Printf("comparing evaluators on %d atoms (density=%.3f, rc=%.3f)\n\n", cfg.Atoms, cfg.Density, cfg.InteractionRange())
	fmt.Printf("%-8s  %-20s  %-20s\n", "strategy", "energy", "virial")
	fmt.Println(strings.Repeat("-", 52))
	for _, ev := range evals {
		fmt.Printf("%-8s  %20.12f  %20.12f\n", ev.Strategy, ev.Energy, ev.Virial)
	}

	dev := experiment.MaxDeviation(evals)
	fmt.Printf("\nmax relative deviation: %.3e\n", dev)
	if dev > tolerance {
		return fmt.Errorf("evaluators disagree: %.3e > %.3e", dev, tolerance)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tEVAL\tTIME\tSTEPS\tSEED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
			run.ID,
			run.Mode,
			run.Evaluator,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Steps,
			run.Seed,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := store.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}

	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("mode: %s\n", meta.Mode)
	fmt.Printf("samples: %d\n", len(samples))
	plotSamples(samples, "potential energy")
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := store.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := store.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	if len(samples) < 2 {
		return fmt.Errorf("not enough samples to analyze")
	}

	// skip the starting configuration
	u := make([]float64, 0, len(samples)-1)
	for _, s := range samples[1:] {
		u = append(u, s.Potential)
	}

	mean, stderr := analysis.BlockAverage(u, blocks)
	fmt.Printf("run: %s (%s, %s)\n", meta.ID, meta.Mode, meta.Evaluator)
	fmt.Printf("samples: %d\n", len(u))
	fmt.Printf("potential: %.6f +/- %.6f\n", mean, stderr)
	fmt.Printf("correlation time: %.2f samples\n", analysis.CorrelationTime(u))
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	results, err := automation.RunSweep(cmd.Context(), &automation.ParameterSweep{
		Base:      cfg,
		ParamName: sweepParam,
		ParamMin:  sweepMin,
		ParamMax:  sweepMax,
		NumSteps:  sweepN,
	}, experiment.NewRegistry())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tU/N\tP\tACC\tERRORS\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		fmt.Fprintf(w, "%.4f\t%.6f\t%.6f\t%.3f\t%d\n", r.ParamValue, r.PotentialPerAtom, r.Pressure, r.Acceptance, r.Errors)
	}
	return w.Flush()
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("scenario: %s\n", sc.Name)

	results, err := automation.RunScenario(cmd.Context(), sc, experiment.NewRegistry())
	if err != nil {
		return err
	}

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	for i, r := range results {
		name := sc.Steps[i].SaveAs
		if name == "" {
			name = fmt.Sprintf("%s-%d", sc.Name, i+1)
		}
		runID, err := st.Save(name, store.NewExportData(r.Config, r.Pressure, r.Result))
		if err != nil {
			return err
		}
		fmt.Printf("  %s: %d steps, U/N=%.6f\n", runID, r.Result.StepsTaken, r.Result.Metrics["potential_per_atom"])
	}
	return nil
}

func tuneStepSize(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	cfg.Mode = "mc"

	gs := optim.NewGridSearch([]string{"step_size"}, [][]float64{tuneSizes})
	params, score, err := gs.Search(cmd.Context(), cfg, experiment.NewRegistry(), optim.TargetObjective("acceptance", tuneTarget))
	if err != nil {
		return err
	}
	if params == nil {
		return fmt.Errorf("no candidate step size ran successfully")
	}
	fmt.Printf("step size: %.4f (acceptance off target by %.3f)\n", params["step_size"], score)
	return nil
}
