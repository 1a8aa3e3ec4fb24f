package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"

	"github.com/san-kum/contactsim/internal/config"
	"github.com/san-kum/contactsim/internal/metrics"
	"github.com/san-kum/contactsim/internal/parallel"
	"github.com/san-kum/contactsim/internal/scene"
	"github.com/san-kum/contactsim/internal/sim"
	"github.com/san-kum/contactsim/internal/storage"
	"github.com/san-kum/contactsim/internal/tui"
)

var (
	dataDir    string
	verbosity  int
	configFile string
	preset     string
	dt         float64
	duration   float64
	integrator string
	forceAL    bool
	threads    int
	useTUI     bool
	live       bool
	frameRate  int
	noSave     bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "contactsim",
		Short:         "contact-aware constrained equilibrium solver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".contactsim", "data directory")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log verbosity (repeat for more)")

	solveCmd := &cobra.Command{
		Use:   "solve [scene]",
		Short: "solve a scene",
		Args:  cobra.MaximumNArgs(1),
		RunE:  solveScene,
	}
	solveCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	solveCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	solveCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	solveCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	solveCmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "time integrator")
	solveCmd.Flags().BoolVar(&forceAL, "force-al", false, "run at least one AL step")
	solveCmd.Flags().IntVar(&threads, "threads", 0, "worker count (0 keeps the default)")
	solveCmd.Flags().BoolVar(&useTUI, "tui", false, "show a progress view")
	solveCmd.Flags().BoolVar(&live, "live", false, "draw the surface after each step")
	solveCmd.Flags().IntVar(&frameRate, "fps", 30, "live view frame rate")
	solveCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	scenesCmd := &cobra.Command{
		Use:     "scenes",
		Aliases: []string{"presets"},
		Short:   "list scenes and their presets",
		RunE:    listScenes,
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a config file",
		Args:  cobra.ExactArgs(1),
		RunE:  writeConfig,
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "start from a preset (scene/name)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "print the per-step solver report of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotSeries, "series", "energy", "series: "+strings.Join(seriesNames(), ", "))

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (stdout when empty)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run states as csv",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (stdout when empty)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "draw one state of a run as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (stdout when empty)")
	exportSVGCmd.Flags().IntVar(&svgStep, "step", -1, "state index (negative counts from the end)")
	exportSVGCmd.Flags().IntVar(&svgSize, "size", 600, "image width and height")

	rootCmd.AddCommand(solveCmd, newTuneCmd(), scenesCmd, initCmd, listCmd, showCmd, plotCmd, exportJSONCmd, exportCSVCmd, exportSVGCmd)
	return rootCmd
}

func newLogger(w io.Writer) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}

// resolveConfig layers defaults, preset, config file and explicit flags.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) == 1 {
		cfg.Scene = args[0]
	}

	if preset != "" {
		p := config.GetPreset(cfg.Scene, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Scene))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if len(args) == 1 && loaded.Scene != args[0] {
			return nil, fmt.Errorf("config %s is for scene %s, not %s", configFile, loaded.Scene, args[0])
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("integrator") {
		cfg.TimeIntegrator = integrator
	}
	if flags.Changed("force-al") {
		cfg.ForceAL = forceAL
	}
	if flags.Changed("threads") {
		cfg.Threads = threads
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func solveScene(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if cfg.Threads > 0 {
		parallel.SetWorkers(cfg.Threads)
	}

	setup, err := cfg.Setup()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	log := newLogger(cmd.ErrOrStderr())
	s, err := sim.New(setup, sim.WithLogger(log))
	if err != nil {
		return err
	}
	for _, m := range metrics.Default() {
		s.AddMetric(m)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	simCfg := cfg.SimConfig()
	start := time.Now()
	var result *sim.Result

	switch {
	case useTUI && term.IsTerminal(os.Stdout.Fd()):
		title := fmt.Sprintf("solving %s", cfg.Scene)
		err = tui.RunProgress(ctx, title, s.NumSteps(simCfg), os.Stdin, os.Stdout,
			func(ctx context.Context, obs sim.Observer) error {
				s.AddObserver(obs)
				var runErr error
				result, runErr = s.Run(ctx, simCfg)
				return runErr
			})
	case live:
		r := tui.NewLiveRenderer(out, s.Scene(), frameRate)
		s.AddObserver(r)
		r.Start()
		result, err = s.Run(ctx, simCfg)
		r.Stop()
	default:
		fmt.Fprintf(out, "solving %s...\n", cfg.Scene)
		result, err = s.Run(ctx, simCfg)
	}
	if err != nil {
		if result != nil && result.StepsTaken > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "stopped after %d steps\n", result.StepsTaken)
		}
		return err
	}
	elapsed := time.Since(start)

	fmt.Fprintf(out, "completed in %v\n", elapsed)
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(cfg, result)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "run id: %s\n", runID)
	}
	fmt.Fprintf(out, "steps: %d\n", result.StepsTaken)
	printMetrics(out, result.Metrics)
	return nil
}

func printMetrics(w io.Writer, m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "\nmetrics:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %.6g\n", name, m[name])
	}
}

func listScenes(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENE\tDIM\tKIND\tPRESETS")
	for _, name := range scene.Names() {
		sc, err := scene.New(name)
		if err != nil {
			return err
		}
		kind := "dynamic"
		if sc.Static {
			kind = "static"
		}
		fmt.Fprintf(w, "%s\t%dD\t%s\t%s\n", name, sc.Dim(), kind, strings.Join(config.ListPresets(name), ", "))
	}
	return w.Flush()
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if preset != "" {
		sceneName, name, ok := strings.Cut(preset, "/")
		if !ok {
			return fmt.Errorf("preset must be scene/name, got %q", preset)
		}
		cfg = config.GetPreset(sceneName, name)
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(sceneName))
		}
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
	return nil
}
