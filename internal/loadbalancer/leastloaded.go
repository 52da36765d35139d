package loadbalancer

import "github.com/faridzandi/psim-go/internal/protocol"

// LeastLoaded scans every upper-tier item and returns the argmin of
// uplink+downlink load.
type LeastLoaded struct{ base }

func newLeastLoaded(itemCount int, metric protocol.LoadMetric, seed int64) *LeastLoaded {
	return &LeastLoaded{base: newBase(itemCount, metric, seed)}
}

func (l *LeastLoaded) GetUpperItem(src, dst int, flow *protocol.Flow, timer float64) int {
	return argmin(l.allLoads(src, dst))
}
