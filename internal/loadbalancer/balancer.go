// Package loadbalancer selects an upper-tier item (a core switch, or an
// agg switch within a pod) for a flow crossing between two lower-tier
// items (spec.md §4.C).
package loadbalancer

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/faridzandi/psim-go/internal/protocol"
)

// LinkReader is the narrow view of a link every balancer variant needs:
// its load under the configured metric. Topology's Bottleneck satisfies
// this implicitly.
type LinkReader interface {
	ID() int
	GetLoad(metric protocol.LoadMetric) float64
}

// Balancer is the contract every load-balancing policy satisfies.
type Balancer interface {
	RegisterLink(lowerItem, upperItem, dir int, link LinkReader)
	GetUpperItem(src, dst int, flow *protocol.Flow, timer float64) int
}

// Scheme names the load-balancing policies selectable via configuration.
type Scheme string

const (
	SchemeRandom      Scheme = "random"
	SchemeRoundRobin  Scheme = "roundrobin"
	SchemePowerOfK    Scheme = "powerofk"
	SchemeLeastLoaded Scheme = "leastloaded"
	SchemeRobinHood   Scheme = "robinhood"
	SchemeFutureLoad  Scheme = "futureload"
)

type linkKey struct{ lower, upper int }

// base implements register_link / uplink / downlink / get_bottleneck_load,
// shared by every LoadBalancer subclass in the original model.
type base struct {
	itemCount  int
	linkUp     map[linkKey]LinkReader
	linkDown   map[linkKey]LinkReader
	loadMetric protocol.LoadMetric
	rng        *rand.Rand
}

func newBase(itemCount int, metric protocol.LoadMetric, seed int64) base {
	return base{
		itemCount:  itemCount,
		linkUp:     make(map[linkKey]LinkReader),
		linkDown:   make(map[linkKey]LinkReader),
		loadMetric: metric,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

func (b *base) RegisterLink(lowerItem, upperItem, dir int, link LinkReader) {
	key := linkKey{lowerItem, upperItem}
	if dir == 1 {
		b.linkUp[key] = link
	} else {
		b.linkDown[key] = link
	}
}

func (b *base) uplink(lower, upper int) LinkReader   { return b.linkUp[linkKey{lower, upper}] }
func (b *base) downlink(lower, upper int) LinkReader { return b.linkDown[linkKey{lower, upper}] }

func (b *base) linkPairLoad(src, dst, item int) float64 {
	up := b.uplink(src, item)
	down := b.downlink(dst, item)
	var load float64
	if up != nil {
		load += up.GetLoad(b.loadMetric)
	}
	if down != nil {
		load += down.GetLoad(b.loadMetric)
	}
	return load
}

func (b *base) allLoads(src, dst int) []float64 {
	loads := make([]float64, b.itemCount)
	for c := 0; c < b.itemCount; c++ {
		loads[c] = b.linkPairLoad(src, dst, c)
	}
	return loads
}

func argmin(loads []float64) int {
	best := -1
	least := math.MaxFloat64
	for i, l := range loads {
		if l < least {
			least = l
			best = i
		}
	}
	return best
}

// New constructs the balancer named by scheme over itemCount upper-tier
// items, using seed for every variant that needs randomness (power-of-k,
// random, robin-hood tie-breaks), so routing stays deterministic given
// a seed (spec.md §5).
func New(scheme Scheme, itemCount, samples int, metric protocol.LoadMetric, seed int64) (Balancer, error) {
	switch scheme {
	case SchemeRandom:
		return newRandom(itemCount, metric, seed), nil
	case SchemeRoundRobin:
		return newRoundRobin(itemCount, metric, seed), nil
	case SchemePowerOfK:
		return newPowerOfK(itemCount, samples, metric, seed), nil
	case SchemeLeastLoaded:
		return newLeastLoaded(itemCount, metric, seed), nil
	case SchemeRobinHood:
		return newRobinHood(itemCount, metric, seed), nil
	case SchemeFutureLoad:
		return newFutureLoad(itemCount, metric, seed), nil
	default:
		return nil, fmt.Errorf("loadbalancer: unknown scheme %q", scheme)
	}
}
