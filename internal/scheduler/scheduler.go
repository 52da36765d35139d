package scheduler

import (
	"encoding/json"
	"io"
)

// Solve runs the timing and routing passes in lockstep (spec.md §4.H):
// timing proposes a schedule, routing tries to color it, and any window
// routing could not color within opts.MaxSpines is fed back to timing
// as a bad range to avoid on the next round. The loop stops once a
// round produces no bad ranges (dry) or MaxFixingRounds is spent,
// matching the teacher's bounded-rounds Scheduler (services/orchestrator/
// scheduler.go) rather than iterating forever looking for a perfect fit.
func Solve(in Input) Output {
	opts := in.Options
	if opts.MaxFixingRounds <= 0 {
		opts.MaxFixingRounds = 1
	}

	profiled := loadProfiles(in.ProfilePaths)

	var (
		timings   []JobTiming
		plans     []iterationPlan
		decisions []LBDecision
		bad       []badRange
	)

	for round := 0; round < opts.MaxFixingRounds; round++ {
		timings, plans = runTiming(in.Jobs, opts, bad, profiled)
		decisions, bad = runRouting(in.Jobs, opts, plans)
		if len(bad) == 0 {
			break
		}
	}

	return Output{
		JobTimings:  timings,
		LBDecisions: decisions,
	}
}

// Run reads an Input document from r, solves it, and writes the Output
// document to w — the JSON-over-stdio contract of spec.md §6.
func Run(r io.Reader, w io.Writer) error {
	var in Input
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return err
	}

	out := Solve(in)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
