package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/contactsim/internal/config"
	"github.com/san-kum/contactsim/internal/sim"
)

type ExportData struct {
	Scene      string             `json:"scene"`
	Integrator string             `json:"integrator"`
	Material   string             `json:"material"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	StepsTaken int                `json:"steps_taken"`
	Times      []float64          `json:"times"`
	States     [][]float64        `json:"states"`
	Steps      []sim.Step         `json:"steps"`
	Metrics    map[string]float64 `json:"metrics"`
}

func NewExportData(cfg *config.Config, result *sim.Result) ExportData {
	data := ExportData{
		Scene:      cfg.Scene,
		Integrator: cfg.TimeIntegrator,
		Material:   cfg.Material.Name,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		StepsTaken: result.StepsTaken,
		Times:      result.Times,
		States:     make([][]float64, len(result.States)),
		Steps:      result.Steps,
		Metrics:    result.Metrics,
	}
	for i, s := range result.States {
		data.States[i] = s
	}
	return data
}

func ExportJSON(w io.Writer, cfg *config.Config, result *sim.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewExportData(cfg, result))
}

// ExportCSV writes one row per stored state: the time followed by every
// displacement entry.
func ExportCSV(w io.Writer, result *sim.Result) error {
	cw := csv.NewWriter(w)

	if len(result.States) == 0 {
		cw.Flush()
		return cw.Error()
	}

	header := []string{"time"}
	for i := range result.States[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, state := range result.States {
		row := make([]string, 0, len(state)+1)
		row = append(row, strconv.FormatFloat(result.Times[i], 'g', -1, 64))
		for _, val := range state {
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
