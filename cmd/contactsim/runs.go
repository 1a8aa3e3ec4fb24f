package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/contactsim/internal/config"
	"github.com/san-kum/contactsim/internal/export"
	"github.com/san-kum/contactsim/internal/scene"
	"github.com/san-kum/contactsim/internal/sim"
	"github.com/san-kum/contactsim/internal/storage"
	"github.com/san-kum/contactsim/internal/viz"
)

var (
	plotSeries string
	outputPath string
	svgStep    int
	svgSize    int
)

var series = map[string]func(sim.Step) float64{
	"energy":       func(s sim.Step) float64 { return s.Energy },
	"min_distance": func(s sim.Step) float64 { return s.MinDistance },
	"al_steps":     func(s sim.Step) float64 { return float64(s.ALSteps) },
	"newton":       func(s sim.Step) float64 { return float64(s.NewtonIterations) },
	"contacts":     func(s sim.Step) float64 { return float64(s.Contacts) },
	"stiffness":    func(s sim.Step) float64 { return s.Stiffness },
	"peak_vertex":  func(s sim.Step) float64 { return s.PeakVertexContact },
}

func seriesNames() []string {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tDURATION\tDT\tINTEG\tSTEPS\tAL")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%d\t%.0f\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.StepsTaken,
			run.Metrics["al_steps"],
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	meta, err := storage.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s (%s, %s)\n\n", meta.ID, meta.Scene, meta.Material)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "STEP\tTIME\tAL\tNEWTON\tCONTACTS\tMIN DIST\tKAPPA\tENERGY\t")
	for _, s := range meta.Steps {
		fmt.Fprintf(w, "%d\t%.4g\t%d\t%d\t%d\t%.3e\t%.3e\t%.6g\t\n",
			s.Index, s.Time, s.ALSteps, s.NewtonIterations, s.Contacts, s.MinDistance, s.Stiffness, s.Energy)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	printMetrics(out, meta.Metrics)
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	value, ok := series[plotSeries]
	if !ok {
		return fmt.Errorf("unknown series: %s (available: %v)", plotSeries, seriesNames())
	}

	meta, err := storage.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}
	if len(meta.Steps) == 0 {
		return fmt.Errorf("run %s has no steps", meta.ID)
	}

	data := make([]float64, len(meta.Steps))
	for i, s := range meta.Steps {
		data[i] = value(s)
	}
	if len(data) == 1 {
		data = append(data, data[0])
	}

	graph := asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("%s - %s", meta.Scene, plotSeries)),
	)
	fmt.Fprintln(cmd.OutOrStdout(), graph)
	return nil
}

// loadResult rebuilds the stored result of a run with the config that
// produced it.
func loadResult(runID string) (*config.Config, *sim.Result, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := st.LoadConfig(runID)
	if err != nil {
		return nil, nil, err
	}
	states, times, err := st.LoadStates(runID)
	if err != nil {
		return nil, nil, err
	}
	return cfg, &sim.Result{
		States:     states,
		Times:      times,
		Steps:      meta.Steps,
		Metrics:    meta.Metrics,
		StepsTaken: meta.StepsTaken,
	}, nil
}

// withOutput writes to --output when set, else to the command's stdout.
func withOutput(cmd *cobra.Command, fn func(w io.Writer) error) error {
	if outputPath == "" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "exported to %s\n", outputPath)
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	cfg, result, err := loadResult(args[0])
	if err != nil {
		return err
	}
	return withOutput(cmd, func(w io.Writer) error { return storage.ExportJSON(w, cfg, result) })
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, result, err := loadResult(args[0])
	if err != nil {
		return err
	}
	return withOutput(cmd, func(w io.Writer) error { return storage.ExportCSV(w, result) })
}

func exportSVG(cmd *cobra.Command, args []string) error {
	cfg, result, err := loadResult(args[0])
	if err != nil {
		return err
	}
	if len(result.States) == 0 {
		return fmt.Errorf("run %s has no states", args[0])
	}
	idx := svgStep
	if idx < 0 {
		idx += len(result.States)
	}
	if idx < 0 || idx >= len(result.States) {
		return fmt.Errorf("step %d out of range [0,%d)", svgStep, len(result.States))
	}

	sc, err := scene.New(cfg.Scene)
	if err != nil {
		return err
	}
	if len(result.States[idx]) != sc.Body.Size() {
		return fmt.Errorf("state %d has %d entries, scene %s needs %d", idx, len(result.States[idx]), sc.Name, sc.Body.Size())
	}
	frame := viz.NewFrame(sc, result.States[idx])
	return withOutput(cmd, func(w io.Writer) error { return export.WriteFrameSVG(w, frame, svgSize, svgSize, "#00ff88") })
}
