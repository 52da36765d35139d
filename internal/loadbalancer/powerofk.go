package loadbalancer

import (
	"math"

	"github.com/faridzandi/psim-go/internal/protocol"
)

// PowerOfK samples K distinct random upper items plus the previously
// chosen best, and returns the argmin of uplink+downlink load among
// them, ties broken by first encountered (spec.md §4.C).
type PowerOfK struct {
	base
	samples  int
	prevBest int
}

func newPowerOfK(itemCount, samples int, metric protocol.LoadMetric, seed int64) *PowerOfK {
	return &PowerOfK{base: newBase(itemCount, metric, seed), samples: samples}
}

func (p *PowerOfK) GetUpperItem(src, dst int, flow *protocol.Flow, timer float64) int {
	seen := map[int]bool{}
	candidates := make([]int, 0, p.samples+1)

	for len(candidates) < p.samples && p.itemCount > 0 {
		c := p.rng.Intn(p.itemCount)
		if seen[c] {
			continue
		}
		seen[c] = true
		candidates = append(candidates, c)
	}
	candidates = append(candidates, p.prevBest)

	least := math.MaxFloat64
	best := p.prevBest
	for _, c := range candidates {
		load := p.linkPairLoad(src, dst, c)
		if load < least {
			least = load
			best = c
		}
	}

	p.prevBest = best
	return best
}
