package scheduler

import "sort"

// flowInstance is one job iteration's aggregate rack-to-rack traffic,
// synthesized from the job's machine placement (a ring: machine i talks
// to machine i+1) since the scheduler's input carries job shape, not a
// full per-flow trace.
type flowInstance struct {
	jobID     int
	iteration int
	flowID    int
	src, dst  int // rack ids, taken directly from job.Machines
	start     int
	end       int
}

// runRouting implements graph-coloring-v7 (spec.md §4.H "Routing"): walk
// flow instances in start-time order and greedily give each one spines
// (colors) not already claimed by an overlapping window at its source or
// destination rack, so that no rack is asked to use the same spine for
// two overlapping flows. The original colors
// via repeated Hopcroft-Karp bipartite matching; this uses a greedy
// smallest-available-color assignment per edge instead — a materially
// simpler algorithm than real edge coloring but one that still respects
// the per-rack degree constraint, documented as a deliberate
// simplification in DESIGN.md.
func runRouting(jobs []Job, opts Options, plans []iterationPlan) ([]LBDecision, []badRange) {
	if opts.MaxSpines <= 0 {
		opts.MaxSpines = 1
	}
	if opts.Subflows <= 0 {
		opts.Subflows = 1
	}

	flows := synthesizeFlows(jobs, plans)
	sort.Slice(flows, func(i, j int) bool {
		if flows[i].start != flows[j].start {
			return flows[i].start < flows[j].start
		}
		return flows[i].flowID < flows[j].flowID
	})

	assignments := make(map[int][]colorWindow) // rack -> colored windows claimed so far
	var decisions []LBDecision
	var bad []badRange

	for _, f := range flows {
		active := activeColorsAt(assignments, f.src, f.dst, f)
		colors := assignColors(active, opts.Subflows, opts.MaxSpines)
		if len(colors) < opts.Subflows {
			bad = append(bad, badRange{start: f.start, end: f.end, job: f.jobID})
		}

		markUsed(assignments, f.src, f.start, f.end, colors)
		markUsed(assignments, f.dst, f.start, f.end, colors)

		// Each assigned color carries 1/needed_subflows of the flow's
		// traffic, not 1/(colors actually found): a window that comes up
		// short (len(colors) < opts.Subflows) must report ratios that sum
		// to less than 1, so an oversubscribed flow is visibly
		// under-provisioned rather than silently rescaled to full share.
		ratio := 1.0 / float64(opts.Subflows)
		rates := make([]SpineRatio, len(colors))
		for i, c := range colors {
			rates[i] = SpineRatio{Spine: c, Ratio: ratio}
		}

		decisions = append(decisions, LBDecision{
			JobID:      f.jobID,
			FlowID:     f.flowID,
			Iteration:  f.iteration,
			SpineCount: len(colors),
			SpineRates: rates,
		})
	}

	return decisions, bad
}

func synthesizeFlows(jobs []Job, plans []iterationPlan) []flowInstance {
	var flows []flowInstance
	flowID := 0
	for i, job := range jobs {
		if len(job.Machines) < 2 {
			continue
		}
		plan := plans[i]
		for iter, delta := range plan.deltas {
			throttle := 1.0
			if iter < len(plan.throttleRates) {
				throttle = plan.throttleRates[iter]
			}
			duration := int(plan.duration/throttle) + 1
			for m := 0; m < len(job.Machines); m++ {
				src := job.Machines[m]
				dst := job.Machines[(m+1)%len(job.Machines)]
				if src == dst {
					continue
				}
				flows = append(flows, flowInstance{
					jobID:     job.JobID,
					iteration: iter,
					flowID:    flowID,
					src:       src,
					dst:       dst,
					start:     delta,
					end:       delta + duration,
				})
				flowID++
			}
		}
	}
	return flows
}

// colorWindow is one (color, time window) claim a rack has made.
type colorWindow struct {
	color      int
	start, end int
}

// activeColorsAt returns the colors already claimed at either endpoint
// by windows that overlap f in time, so a new color assignment never
// reuses a spine two time-overlapping flows on the same rack both need.
// Non-overlapping claims are ignored, so a color frees up once its
// window ends — this is what keeps the coloring from exhausting
// maxSpines over a long schedule.
func activeColorsAt(claims map[int][]colorWindow, src, dst int, f flowInstance) map[int]bool {
	active := make(map[int]bool)
	for _, rack := range [2]int{src, dst} {
		for _, w := range claims[rack] {
			if w.start < f.end && f.start < w.end {
				active[w.color] = true
			}
		}
	}
	return active
}

// assignColors picks up to want colors from [0, maxSpines) not already
// active, returning as many as it could find (fewer than want signals
// oversubscription for that window).
func assignColors(active map[int]bool, want, maxSpines int) []int {
	var colors []int
	for c := 0; c < maxSpines && len(colors) < want; c++ {
		if !active[c] {
			colors = append(colors, c)
		}
	}
	if len(colors) == 0 {
		colors = []int{0}
	}
	return colors
}

func markUsed(claims map[int][]colorWindow, rack, start, end int, colors []int) {
	for _, c := range colors {
		claims[rack] = append(claims[rack], colorWindow{color: c, start: start, end: end})
	}
}
