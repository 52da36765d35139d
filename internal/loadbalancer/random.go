package loadbalancer

import "github.com/faridzandi/psim-go/internal/protocol"

// Random picks a uniformly random upper-tier item every time.
type Random struct{ base }

func newRandom(itemCount int, metric protocol.LoadMetric, seed int64) *Random {
	return &Random{base: newBase(itemCount, metric, seed)}
}

func (r *Random) GetUpperItem(src, dst int, flow *protocol.Flow, timer float64) int {
	return r.rng.Intn(r.itemCount)
}
