package scheduler

// iterationPlan is one job's committed schedule: a delta (absolute start
// tick) and throttle rate per iteration.
type iterationPlan struct {
	job           *Job
	deltas        []int
	throttleRates []float64
	duration      float64 // base duration (comm+comp) at throttle 1.0
	loadPerLink   float64 // per-iteration demand at throttle 1.0
}

// throttleCandidates are the rates the timing pass considers for every
// iteration, matching the original's "every throttle candidate" search
// over a small fixed menu rather than a continuous sweep.
var throttleCandidates = []float64{1.0, 0.75, 0.5}

// runTiming implements LegoV2 (spec.md §4.H "Timing"): a single scalar
// remaining-capacity signal over a discretized horizon stands in for the
// original's per-(direction, rack) per-link vectors — a simplification
// recorded in DESIGN.md — but the scheduling policy itself (least
// service attained, earliest non-overloaded fit, bad-range avoidance) is
// unchanged. profiled carries, per job id, the measured comm duration
// and link load observed in a prior run (via loadProfiles); a job
// present there uses its measured signal instead of the static
// comm_size/link_bandwidth estimate.
func runTiming(jobs []Job, opts Options, bad []badRange, profiled map[int]profiledLoad) ([]JobTiming, []iterationPlan) {
	if opts.LinkBandwidth <= 0 {
		opts.LinkBandwidth = 1
	}

	plans := make([]iterationPlan, len(jobs))
	serviceAttained := make([]float64, len(jobs))
	iterationsLeft := make([]int, len(jobs))

	horizon := 0
	for i := range jobs {
		j := &jobs[i]
		commDuration := j.CommSize
		loadPerLink := j.CommSize / opts.LinkBandwidth
		if measured, ok := profiled[j.JobID]; ok {
			commDuration = measured.avgFCT
			loadPerLink = measured.avgLoad / opts.LinkBandwidth
		}
		plans[i] = iterationPlan{
			job:         j,
			duration:    commDuration + j.CompSize,
			loadPerLink: loadPerLink,
		}
		iterationsLeft[i] = j.IterCount
		horizon += j.IterCount * int(commDuration+j.CompSize+1)
	}
	if horizon <= 0 {
		horizon = 1
	}

	remaining := make([]float64, horizon+1)
	for i := range remaining {
		remaining[i] = 1.0
	}
	applyBadRanges(remaining, bad)

	totalIterations := 0
	for _, n := range iterationsLeft {
		totalIterations += n
	}

	for totalIterations > 0 {
		job := leastServiceAttained(serviceAttained, iterationsLeft)
		if job < 0 {
			break
		}

		start, throttle := bestFit(remaining, plans[job], opts)
		duration := int(plans[job].duration/throttle) + 1
		load := plans[job].loadPerLink * throttle

		for t := start; t < start+duration && t < len(remaining); t++ {
			remaining[t] -= load
		}

		plans[job].deltas = append(plans[job].deltas, start)
		plans[job].throttleRates = append(plans[job].throttleRates, throttle)
		serviceAttained[job] += plans[job].duration
		iterationsLeft[job]--
		totalIterations--
	}

	out := make([]JobTiming, len(jobs))
	for i := range jobs {
		out[i] = JobTiming{
			JobID:         jobs[i].JobID,
			Deltas:        plans[i].deltas,
			ThrottleRates: plans[i].throttleRates,
		}
	}
	return out, plans
}

func leastServiceAttained(service []float64, left []int) int {
	best := -1
	for i, n := range left {
		if n <= 0 {
			continue
		}
		if best == -1 || service[i] < service[best] {
			best = i
		}
	}
	return best
}

// bestFit finds the earliest start tick at which every tick in the
// (possibly throttle-inflated) active window has enough remaining
// capacity for each throttle candidate, and keeps the candidate whose
// window ends earliest (ties go to the throttle tried first), never
// going past the horizon.
func bestFit(remaining []float64, plan iterationPlan, opts Options) (start int, throttle float64) {
	bestStart := -1
	bestThrottle := throttleCandidates[len(throttleCandidates)-1]
	bestEnd := -1

	for _, thr := range throttleCandidates {
		duration := int(plan.duration/thr) + 1
		load := plan.loadPerLink * thr * opts.ThrottleFactor

		for t := 0; t+duration <= len(remaining); t++ {
			if fits(remaining, t, duration, load) {
				end := t + duration
				if bestStart == -1 || end < bestEnd {
					bestStart, bestEnd, bestThrottle = t, end, thr
				}
				break
			}
		}
	}

	if bestStart == -1 {
		return 0, throttleCandidates[len(throttleCandidates)-1]
	}
	return bestStart, bestThrottle
}

func fits(remaining []float64, start, duration int, load float64) bool {
	for t := start; t < start+duration; t++ {
		if remaining[t] < load {
			return false
		}
	}
	return true
}

// applyBadRanges makes remaining capacity artificially scarce wherever
// more than one caller-supplied bad range overlaps (spec.md §4.H).
func applyBadRanges(remaining []float64, bad []badRange) {
	if len(bad) == 0 {
		return
	}
	overlap := make([]int, len(remaining))
	for _, b := range bad {
		for t := b.start; t <= b.end && t < len(overlap); t++ {
			if t >= 0 {
				overlap[t]++
			}
		}
	}
	for t, count := range overlap {
		if count > 1 {
			remaining[t] *= 0.1
		}
	}
}
