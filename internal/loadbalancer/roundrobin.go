package loadbalancer

import "github.com/faridzandi/psim-go/internal/protocol"

// RoundRobin cycles through upper-tier items in order.
type RoundRobin struct {
	base
	current int
}

func newRoundRobin(itemCount int, metric protocol.LoadMetric, seed int64) *RoundRobin {
	return &RoundRobin{base: newBase(itemCount, metric, seed)}
}

func (r *RoundRobin) GetUpperItem(src, dst int, flow *protocol.Flow, timer float64) int {
	item := r.current
	r.current = (r.current + 1) % r.itemCount
	return item
}
