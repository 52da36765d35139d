package loadbalancer

import (
	"math"

	"github.com/faridzandi/psim-go/internal/protocol"
)

// RobinHood maintains a moving lower bound L = max(L_prev, mean_load).
// Items whose load exceeds sqrt(N)*L are "hard-working" (their
// consecutive-iterations counter increments); others are reset to 0.
// If any non-hard-working item exists, pick one uniformly at random;
// otherwise pick the item that most recently became hard-working —
// the one with the smallest counter (spec.md §4.C).
type RobinHood struct {
	base
	iterationsHardWorking []int
	multiplier            float64
	lowerBound            float64
}

func newRobinHood(itemCount int, metric protocol.LoadMetric, seed int64) *RobinHood {
	return &RobinHood{
		base:                  newBase(itemCount, metric, seed),
		iterationsHardWorking: make([]int, itemCount),
		multiplier:            math.Sqrt(float64(itemCount)),
	}
}

func (r *RobinHood) GetUpperItem(src, dst int, flow *protocol.Flow, timer float64) int {
	loads := r.allLoads(src, dst)

	var total float64
	for _, l := range loads {
		total += l
	}

	mean := total / float64(r.itemCount)
	if mean > r.lowerBound {
		r.lowerBound = mean
	}
	cutoff := r.multiplier * r.lowerBound

	var nonHardWorking []int
	latestHardWorking := -1
	latestIterations := math.MaxInt64

	for c, load := range loads {
		if load < cutoff {
			r.iterationsHardWorking[c] = 0
			nonHardWorking = append(nonHardWorking, c)
		} else {
			r.iterationsHardWorking[c]++
			if r.iterationsHardWorking[c] < latestIterations {
				latestIterations = r.iterationsHardWorking[c]
				latestHardWorking = c
			}
		}
	}

	if len(nonHardWorking) > 0 {
		return nonHardWorking[r.rng.Intn(len(nonHardWorking))]
	}
	return latestHardWorking
}
