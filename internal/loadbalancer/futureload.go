package loadbalancer

import (
	"github.com/faridzandi/psim-go/internal/protocol"
)

// RunHistory is the slice of Run Context (spec.md §4.G) that the
// future-load balancer replays: the previous run's per-link time series
// and per-flow timing, plus the ability to save/recall where a flow was
// routed and to adjust the stored series for counterfactual routing.
type RunHistory interface {
	IsFirstRun() bool
	LastDecision(flowID int) (int, bool)
	SaveDecision(flowID, item int)
	LastFlowFCT(flowID int) (float64, bool)
	LastFlowStart(flowID int) (float64, bool)
	LastFlowEnd(flowID int) (float64, bool)
	MaxTimeStep() int
	LinkLoadAt(t, linkID int) float64
	FlowLoadAt(t, flowID int) (float64, bool)
	AdjustLinkLoad(t, linkID int, delta float64)
}

// FutureLoad replays a prior run's profile to predict per-item load
// during a flow's expected residency, picking the argmin after
// subtracting the flow's own previously-observed contribution. The
// first run always falls back to round-robin, since there is no prior
// profile yet (spec.md §4.C).
type FutureLoad struct {
	base
	history           RunHistory
	profilingInterval int
	roundRobin        int
}

// NewFutureLoad constructs a future-load balancer bound to the run
// history it replays. Exported (unlike the other constructors) because
// it needs to be wired to the run context after topology construction.
func NewFutureLoad(itemCount int, metric protocol.LoadMetric, seed int64, history RunHistory, profilingInterval int) *FutureLoad {
	return &FutureLoad{
		base:              newBase(itemCount, metric, seed),
		history:           history,
		profilingInterval: profilingInterval,
	}
}

func newFutureLoad(itemCount int, metric protocol.LoadMetric, seed int64) *FutureLoad {
	return &FutureLoad{base: newBase(itemCount, metric, seed)}
}

func (f *FutureLoad) myRoundRobin() int {
	item := f.roundRobin
	f.roundRobin = (f.roundRobin + 1) % f.itemCount
	return item
}

// profLimits rounds [start, end] outward to the nearest sampled ticks.
func (f *FutureLoad) profLimits(start, end float64) (int, int) {
	interval := f.profilingInterval
	if interval <= 0 {
		interval = 1
	}
	first := (int(start) / interval) * interval
	last := ((int(end) / interval) + 1) * interval
	return first, last
}

func (f *FutureLoad) GetUpperItem(src, dst int, flow *protocol.Flow, timer float64) int {
	if f.history == nil || f.history.IsFirstRun() {
		return f.myRoundRobin()
	}

	lastDecision, ok := f.history.LastDecision(flow.ID)
	if !ok {
		return f.myRoundRobin()
	}

	lastFCT, _ := f.history.LastFlowFCT(flow.ID)
	lastStart, _ := f.history.LastFlowStart(flow.ID)
	lastEnd, _ := f.history.LastFlowEnd(flow.ID)

	var lastFlowRate float64
	switch f.loadMetric {
	case protocol.LoadMetricFlowCount:
		lastFlowRate = 1.0
	case protocol.LoadMetricUtilization:
		if lastFCT > 0 {
			lastFlowRate = flow.Size / lastFCT
		}
	case protocol.LoadMetricFlowSize:
		lastFlowRate = flow.Size
	default:
		return f.myRoundRobin()
	}

	thisRunFirst, thisRunLast := f.profLimits(timer, timer+lastFCT)
	lastRunFirst, lastRunLast := f.profLimits(lastStart, lastEnd)

	coreLoad := make([]float64, f.itemCount)
	noProfilingFound := true
	maxStep := f.history.MaxTimeStep()

	for t := thisRunFirst; t <= thisRunLast; t += f.profilingInterval {
		if t > maxStep {
			break
		}
		noProfilingFound = false

		for c := 0; c < f.itemCount; c++ {
			up := f.uplink(src, c)
			down := f.downlink(dst, c)
			var totalRate float64
			if up != nil {
				totalRate += f.history.LinkLoadAt(t, up.ID())
			}
			if down != nil {
				totalRate += f.history.LinkLoadAt(t, down.ID())
			}

			if c == lastDecision && t > lastRunFirst && t <= lastRunLast {
				if flowLoad, ok := f.history.FlowLoadAt(t, flow.ID); ok {
					totalRate -= 2 * flowLoad
				}
			}
			coreLoad[c] += totalRate
		}
	}

	if noProfilingFound {
		return f.myRoundRobin()
	}

	best := argmin(coreLoad)

	lastUp := f.uplink(src, lastDecision)
	lastDown := f.downlink(dst, lastDecision)
	thisUp := f.uplink(src, best)
	thisDown := f.downlink(dst, best)

	for t := lastRunFirst + f.profilingInterval; t <= lastRunLast; t += f.profilingInterval {
		if t > maxStep {
			break
		}
		flowLoad, ok := f.history.FlowLoadAt(t, flow.ID)
		if !ok {
			continue
		}
		if lastUp != nil {
			f.history.AdjustLinkLoad(t, lastUp.ID(), -flowLoad)
		}
		if lastDown != nil {
			f.history.AdjustLinkLoad(t, lastDown.ID(), -flowLoad)
		}
	}

	for t := thisRunFirst; t <= thisRunLast; t += f.profilingInterval {
		if t > maxStep {
			break
		}
		if thisUp != nil {
			f.history.AdjustLinkLoad(t, thisUp.ID(), lastFlowRate)
		}
		if thisDown != nil {
			f.history.AdjustLinkLoad(t, thisDown.ID(), lastFlowRate)
		}
	}

	f.history.SaveDecision(flow.ID, best)
	return best
}
