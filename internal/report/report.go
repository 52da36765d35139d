// Package report writes run artifacts: CSV history dumps always, and a
// hook for PNG plotting that stays an external-collaborator stub (the
// CLI depth beyond a minimal contract is a Non-goal — SPEC_FULL.md
// Non-goals, "CLI/plot/dot-export depth beyond a minimal contract").
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/faridzandi/psim-go/internal/simulator"
)

// WriteHistoryCSV writes one row per step: timer, step size, comm/comp
// progress that step, mirroring record_*_history from the original model.
func WriteHistoryCSV(path string, result *simulator.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"timer", "step_size", "step_comm", "step_comp"}); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}

	for _, h := range result.History {
		row := []string{
			strconv.FormatFloat(h.Timer, 'f', -1, 64),
			strconv.FormatFloat(h.StepSize, 'f', -1, 64),
			strconv.FormatFloat(h.StepComm, 'f', -1, 64),
			strconv.FormatFloat(h.StepComp, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("report: write row: %w", err)
		}
	}

	return w.Error()
}

// PlotGraphs is a stub: plotting is explicitly out of scope. It exists
// so callers can gate on config.Output.PlotGraphs without special-casing
// the absence of a real renderer.
func PlotGraphs(path string, result *simulator.Result) error {
	return fmt.Errorf("report: plotting is not implemented (path=%s, steps=%d)", path, len(result.History))
}
