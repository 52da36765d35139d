// Package scheduler implements the offline scheduler H (spec.md §4.H):
// a two-pass solver that times each job's iterations (LegoV2) against a
// prior run's profiled load where profile files are given, or else a
// static comm_size/link_bandwidth estimate, and then routes every flow
// onto spines by greedy edge coloring (graph-coloring-v7), iterating
// the two passes until no bad ranges remain or the round budget is
// spent. It reads/writes the JSON contract of spec.md §6 over stdin/
// stdout. Grounded on the teacher's Scheduler (services/orchestrator/
// scheduler.go) for the overall "solve in bounded rounds, summarize,
// feed back" shape, adapted from cron-triggered workflow scheduling to
// a single offline batch solve.
package scheduler

// Job is one training job's placement and iteration shape (spec.md §4.H).
type Job struct {
	JobID     int   `json:"job_id"`
	Machines  []int `json:"machines"`
	LayerCount int  `json:"layer_count"`
	IterCount int   `json:"iter_count"`
	CommSize  float64 `json:"comm_size"`
	CompSize  float64 `json:"comp_size"`
}

// Options carries the tunables spec.md §6's Scheduler I/O groups under
// "options" (subflow count, throttle factor, round budget, regret mode).
type Options struct {
	Subflows        int     `json:"subflows"`
	ThrottleFactor  float64 `json:"throttle_factor"`
	MaxFixingRounds int     `json:"max_fixing_rounds"`
	RegretMode      bool    `json:"regret_mode"`
	LinkBandwidth   float64 `json:"link_bandwidth"`
	MaxSpines       int     `json:"max_spines"`
}

// Input is the full JSON document read from stdin.
type Input struct {
	Jobs            []Job    `json:"jobs"`
	Options         Options  `json:"options"`
	RunContext      any      `json:"run_context,omitempty"`
	TimingFilePath  string   `json:"timing_file_path,omitempty"`
	RoutingFilePath string   `json:"routing_file_path,omitempty"`
	PlacementSeed   int64    `json:"placement_seed"`
	ProfilePaths    []string `json:"profile_paths,omitempty"`
}

// JobTiming is one job's committed per-iteration delay and throttle rate.
type JobTiming struct {
	JobID         int       `json:"job_id"`
	Deltas        []int     `json:"deltas"`
	ThrottleRates []float64 `json:"throttle_rates"`
}

// SpineRatio is one spine's share of a flow's traffic.
type SpineRatio struct {
	Spine int     `json:"spine"`
	Ratio float64 `json:"ratio"`
}

// LBDecision is one flow iteration's spine assignment.
type LBDecision struct {
	JobID      int          `json:"job_id"`
	FlowID     int          `json:"flow_id"`
	Iteration  int          `json:"iteration"`
	SpineCount int          `json:"spine_count"`
	SpineRates []SpineRatio `json:"spine_rates"`
}

// Output is the full JSON document written to stdout.
type Output struct {
	JobTimings    []JobTiming  `json:"job_timings"`
	LBDecisions   []LBDecision `json:"lb_decisions"`
	AddToContext  any          `json:"add_to_context,omitempty"`
}

// badRange is a (start, end) time window routing asked timing to avoid
// on the next round because too many colors were needed there.
type badRange struct {
	start, end int
	job        int
}
