package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/san-kum/contactsim/internal/config"
	"github.com/san-kum/contactsim/internal/metrics"
	"github.com/san-kum/contactsim/internal/optim"
	"github.com/san-kum/contactsim/internal/sim"
)

var (
	tuneParams []string
	tuneMetric string
)

func newTuneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tune [scene]",
		Short: "grid search solver parameters for the lowest metric",
		Args:  cobra.MaximumNArgs(1),
		RunE:  tuneScene,
	}
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringArrayVar(&tuneParams, "param", nil, "grid axis as key=v1,v2,... (repeatable)")
	cmd.Flags().StringVar(&tuneMetric, "metric", "al_steps", "metric to minimise")
	return cmd
}

// parseAxis splits "al.scaling=0.25,0.5" into its key and values.
func parseAxis(s string) (string, []float64, error) {
	key, list, ok := strings.Cut(s, "=")
	if !ok || key == "" || list == "" {
		return "", nil, fmt.Errorf("bad --param %q, want key=v1,v2", s)
	}
	var values []float64
	for _, field := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return "", nil, fmt.Errorf("bad --param %q: %w", s, err)
		}
		values = append(values, v)
	}
	return key, values, nil
}

func tuneScene(cmd *cobra.Command, args []string) error {
	if len(tuneParams) == 0 {
		return fmt.Errorf("at least one --param is required")
	}
	base, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(tuneParams))
	ranges := make([][]float64, 0, len(tuneParams))
	for _, p := range tuneParams {
		key, values, err := parseAxis(p)
		if err != nil {
			return err
		}
		if err := base.Clone().SetParam(key, values[0]); err != nil {
			return err
		}
		names = append(names, key)
		ranges = append(ranges, values)
	}
	grid, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	log := newLogger(cmd.ErrOrStderr())
	fmt.Fprintf(out, "tuning %s over %d points...\n", base.Scene, grid.Size())
	best, val, trials, err := grid.Search(ctx, func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg := base.Clone()
		for k, v := range params {
			if err := cfg.SetParam(k, v); err != nil {
				return 0, err
			}
		}
		return evaluate(ctx, cfg, tuneMetric, log)
	})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\t"+strings.ToUpper(tuneMetric))
	for _, t := range trials {
		row := make([]string, 0, len(names)+1)
		for _, n := range names {
			row = append(row, strconv.FormatFloat(t.Params[n], 'g', -1, 64))
		}
		if t.Err != nil {
			row = append(row, "error: "+t.Err.Error())
		} else {
			row = append(row, strconv.FormatFloat(t.Value, 'g', 6, 64))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(out, "\nbest %s = %.6g with", tuneMetric, val)
	for _, k := range keys {
		fmt.Fprintf(out, " %s=%g", k, best[k])
	}
	fmt.Fprintln(out)
	return nil
}

func evaluate(ctx context.Context, cfg *config.Config, metric string, log logr.Logger) (float64, error) {
	setup, err := cfg.Setup()
	if err != nil {
		return 0, err
	}
	s, err := sim.New(setup, sim.WithLogger(log))
	if err != nil {
		return 0, err
	}
	for _, m := range metrics.Default() {
		s.AddMetric(m)
	}
	result, err := s.Run(ctx, cfg.SimConfig())
	if err != nil {
		return 0, err
	}
	v, ok := result.Metrics[metric]
	if !ok {
		return 0, fmt.Errorf("unknown metric %q", metric)
	}
	return v, nil
}
