package scheduler

import "github.com/faridzandi/psim-go/internal/profile"

// profiledLoad is the per-job signal measured from a prior simulation
// run's profile file, replacing the static comm_size/link_bandwidth
// estimate with an observed one wherever a profile is available
// (spec.md §4.H/§6: the timing pass's core input is the profiled
// progress_history, not a job's declared size alone).
type profiledLoad struct {
	avgFCT  float64 // mean measured flow completion time
	avgLoad float64 // mean measured per-flow throughput demand (flow_size / fct)
	samples int
}

// loadProfiles reads every path in paths (Input.ProfilePaths) and
// aggregates per-job measured flow completion time and throughput. A
// path that cannot be read or parsed is skipped rather than failing the
// whole solve — the timing pass falls back to the static estimate for
// any job with no usable profile, the same way it already does for a
// job with no profile paths supplied at all.
func loadProfiles(paths []string) map[int]profiledLoad {
	out := make(map[int]profiledLoad)
	for _, path := range paths {
		prof, err := profile.ReadFile(path)
		if err != nil {
			continue
		}
		for _, fr := range prof.Flows {
			fct := fr.FCT
			if fct <= 0 {
				fct = fr.EndTime - fr.StartTime
			}
			if fct <= 0 || fr.FlowSize <= 0 {
				continue
			}
			agg := out[fr.JobID]
			agg.avgFCT += fct
			agg.avgLoad += fr.FlowSize / fct
			agg.samples++
			out[fr.JobID] = agg
		}
	}
	for id, agg := range out {
		if agg.samples == 0 {
			continue
		}
		agg.avgFCT /= float64(agg.samples)
		agg.avgLoad /= float64(agg.samples)
		out[id] = agg
	}
	return out
}
