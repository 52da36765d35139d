package protocol

import (
	"fmt"
	"math"
)

// Flow is a communication task: it holds a path of links and carries
// bytes from src to dst, adjusting its own sending rate every step
// (spec.md §4.E). Grounded on the original Flow::register_rate_on_path /
// make_progress / update_rate sequence.
type Flow struct {
	Base

	CurrentRate        float64
	LastRate           float64
	InitialRate        float64
	MinRate            float64
	RegisteredRate     float64
	RateIncrease       float64
	RateDecreaseFactor float64
	MinBottleneckRate  float64
	ProtocolMaxRate    float64 // <= 0 means unset

	SrcDevID int
	DstDevID int
	Size     float64
	Progress float64

	JobID            int
	SelectedPriority int
	BnPriorityLevels int

	Path []Link

	LoadMetric LoadMetric

	BottleneckedBySrcDstCount        int
	BottleneckedByIntermediateCount  int
}

// NewFlow builds a flow with the step-size-independent defaults the
// original constructor pulls from global configuration; callers supply
// the configured values since this package never reads global config.
func NewFlow(id int, initialRate, minRate, rateIncrease, rateDecreaseFactor float64, metric LoadMetric) *Flow {
	f := &Flow{}
	f.ID = id
	f.Status = Blocked
	f.InitialRate = initialRate
	f.CurrentRate = initialRate
	f.MinRate = minRate
	f.RateIncrease = rateIncrease
	f.RateDecreaseFactor = rateDecreaseFactor
	f.LoadMetric = metric
	f.ProtocolMaxRate = -1
	f.SrcDevID = -1
	f.DstDevID = -1
	f.JobID = -1
	f.SelectedPriority = -1
	return f
}

func (f *Flow) Base() *Base { return &f.Base }
func (f *Flow) Type() Type  { return TypeFlow }

// Initiate computes the path-wide bottleneck bound and starting rate,
// and tells every link on the path that this flow exists.
func (f *Flow) Initiate() {
	f.MinBottleneckRate = math.MaxFloat64
	for _, link := range f.Path {
		if b := link.Bandwidth(); b < f.MinBottleneckRate {
			f.MinBottleneckRate = b
		}
	}

	f.ComputePriority()

	for _, link := range f.Path {
		link.FlowStarted(f.ID)
	}

	f.CurrentRate = math.Min(f.MinBottleneckRate, f.InitialRate)
	if f.ProtocolMaxRate > 0 {
		f.CurrentRate = math.Min(f.CurrentRate, f.ProtocolMaxRate)
	}
}

// Finished tells every link on the path this flow is gone.
func (f *Flow) Finished() {
	for _, link := range f.Path {
		link.FlowFinished(f.ID)
	}
}

// ComputePriority assigns selected_priority from the flow's owning job,
// so flows from the same job contend for bandwidth at the same level.
func (f *Flow) ComputePriority() {
	if f.ID == -1 {
		f.SelectedPriority = 1000000
		return
	}
	f.SelectedPriority = f.JobID
}

// RegisterRateOnPath is phase 1 of a simulator step: record demand on
// every link the flow uses.
func (f *Flow) RegisterRateOnPath(stepSize float64) {
	f.RegisteredRate = f.CurrentRate
	for _, link := range f.Path {
		link.RegisterRate(f.ID, f.RegisteredRate, f.SelectedPriority)
	}
}

// UpdateRate applies a multiplicative-increase/multiplicative-decrease
// rule: drop on any congested link, otherwise grow by rate_increase^step_size,
// then clamp into [min_rate, min_bottleneck_rate] and any protocol cap.
func (f *Flow) UpdateRate(stepSize float64) {
	drop := false
	for _, link := range f.Path {
		if link.ShouldDrop(stepSize) {
			drop = true
			break
		}
	}

	if drop {
		f.CurrentRate *= f.RateDecreaseFactor
	} else {
		f.CurrentRate *= math.Pow(f.RateIncrease, stepSize)
	}

	f.CurrentRate = math.Min(f.CurrentRate, f.MinBottleneckRate)
	f.CurrentRate = math.Max(f.CurrentRate, f.MinRate)

	if f.ProtocolMaxRate > 0 {
		f.CurrentRate = math.Min(f.CurrentRate, f.ProtocolMaxRate)
	}
}

// GetLoad reads the flow's load under the given metric, or the flow's
// own default metric when arg is LoadMetricDefault.
func (f *Flow) GetLoad(arg LoadMetric) float64 {
	metric := f.LoadMetric
	if arg != LoadMetricDefault {
		metric = arg
	}

	switch metric {
	case LoadMetricRegistered, LoadMetricAllocated:
		return f.RegisteredRate
	case LoadMetricUtilization:
		return f.LastRate
	case LoadMetricFlowSize:
		return f.Size
	case LoadMetricFlowCount:
		return 1.0
	default:
		panic(fmt.Sprintf("protocol: invalid load metric %d", metric))
	}
}

// MakeProgress is phase 2 of a simulator step: read back the allocation
// on every link, advance progress by the path's bottleneck, and finalize
// the flow once its bytes are fully sent.
func (f *Flow) MakeProgress(stepSize float64) float64 {
	allocated := math.MaxFloat64
	bottleneckLinkID := 0

	for i, link := range f.Path {
		rate := link.GetAllocatedRate(f.ID, f.RegisteredRate, f.SelectedPriority)
		if rate < allocated {
			allocated = rate
			bottleneckLinkID = link.ID()
			_ = i
		}
	}

	if bottleneckLinkID == 0 || bottleneckLinkID == lastPathLinkID(f.Path) {
		f.BottleneckedBySrcDstCount++
	} else {
		f.BottleneckedByIntermediateCount++
	}

	f.CurrentRate = allocated
	stepProgress := allocated * stepSize
	f.Progress += stepProgress

	if f.Progress >= f.Size {
		f.Progress = f.Size
		f.Status = Finished
	}

	for _, link := range f.Path {
		link.RegisterUtilization(allocated)
	}

	f.LastRate = f.CurrentRate
	f.UpdateRate(stepSize)

	return stepProgress
}

func lastPathLinkID(path []Link) int {
	if len(path) == 0 {
		return -1
	}
	return path[len(path)-1].ID()
}

// CrudeRemainingTimeEstimate backs adaptive step sizing (spec.md §4.E).
func (f *Flow) CrudeRemainingTimeEstimate() float64 {
	if f.MinBottleneckRate <= 0 {
		return math.MaxFloat64
	}
	return (f.Size - f.Progress) / f.MinBottleneckRate
}

func (f *Flow) Reset() {
	f.Progress = 0
	f.CurrentRate = f.InitialRate
	f.LastRate = 0
	f.RegisteredRate = 0
	f.Path = nil
	f.SelectedPriority = -1
	f.BottleneckedBySrcDstCount = 0
	f.BottleneckedByIntermediateCount = 0
	f.Status = Blocked
}

func (f *Flow) ShallowCopy() Task {
	return &Flow{
		Base: Base{ID: f.ID},
		Size: f.Size, SrcDevID: f.SrcDevID, DstDevID: f.DstDevID,
		InitialRate: f.InitialRate, CurrentRate: f.InitialRate,
		MinRate: f.MinRate, RateIncrease: f.RateIncrease,
		RateDecreaseFactor: f.RateDecreaseFactor, LoadMetric: f.LoadMetric,
		ProtocolMaxRate: -1, JobID: f.JobID, SelectedPriority: -1,
	}
}

func (f *Flow) Describe() string {
	return fmt.Sprintf("Comm [%05d] size %v from %d to %d", f.ID, f.Size, f.SrcDevID, f.DstDevID)
}
