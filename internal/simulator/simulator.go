// Package simulator drives the main discrete-time loop: it starts each
// protocol's initiators, advances the network and every machine each
// step, admits newly-unblocked successors, and records history until
// every protocol finishes (spec.md §4.F).
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/faridzandi/psim-go/internal/protocol"
	"github.com/faridzandi/psim-go/internal/runctx"
	"github.com/faridzandi/psim-go/internal/topology"
)

// RatesConfig mirrors the subset of config.RatesConfig the loop needs,
// kept narrow so this package does not import internal/config.
type RatesConfig struct {
	StepSize            float64
	AdaptiveStep         bool
	AdaptiveMin          float64
	AdaptiveMax          float64
	ProfilingInterval    int
	RecordLinkHistory    bool
	RecordFlowHistory    bool
}

// HistoryEntry is one step's summary, appended every iteration the way
// the original model appends a row to its run-wide history table.
type HistoryEntry struct {
	Timer     float64
	StepSize  float64
	StepComm  float64
	StepComp  float64
}

// Result is what a completed run produces: total elapsed simulated time
// and the per-step history. The critical path walk marks tasks on the
// tasks themselves, not in Result.
type Result struct {
	TotalTime float64
	History   []HistoryEntry
}

// Simulator owns one run: the network under simulation, every protocol
// instance sharing it, and the run context it reports samples to.
type Simulator struct {
	Network   topology.Network
	Protocols []*protocol.Protocol
	Rates     RatesConfig
	RunCtx    *runctx.RunContext

	timer         float64
	step          int
	runningFlows  []*protocol.Flow
	history       []HistoryEntry

	stepDuration metric.Float64Histogram
}

// Option configures optional collaborators on a Simulator.
type Option func(*Simulator)

// WithStepDurationHistogram wires an otel histogram recording each
// step's wall-clock duration, mirroring DAGEngine's taskDuration
// instrument repurposed to the per-step granularity of this loop.
func WithStepDurationHistogram(h metric.Float64Histogram) Option {
	return func(s *Simulator) { s.stepDuration = h }
}

// New constructs a Simulator over an already-built network and the set
// of protocols it will run to completion.
func New(net topology.Network, protocols []*protocol.Protocol, rates RatesConfig, rc *runctx.RunContext, opts ...Option) *Simulator {
	s := &Simulator{Network: net, Protocols: protocols, Rates: rates, RunCtx: rc}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes the loop of spec.md §4.F to completion and returns the
// accumulated history. It never retries: any invariant violation
// surfaces as an error and ends the run immediately (spec.md §4.F,
// "Failure semantics").
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	for _, p := range s.Protocols {
		for _, initiator := range p.Initiators {
			s.startTask(initiator, p, 0, false)
		}
	}

	for !s.allFinished() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		stepStart := time.Now()
		stepSize := s.computeStepSize()

		s.Network.RegisterFlows(s.runningFlows)

		recordHistory := s.Rates.ProfilingInterval > 0 && s.step%s.Rates.ProfilingInterval == 0
		stepComm, finishedFlows := s.Network.MakeProgressOnFlows(stepSize, recordHistory)
		stepComp, finishedComputes := s.Network.MakeProgressOnMachines(stepSize, recordHistory)

		if recordHistory && s.RunCtx != nil {
			s.recordLinkSamples()
		}

		for _, f := range finishedFlows {
			s.removeRunningFlow(f)
			f.Finished()
			f.Base().EndTime = s.timer + stepSize
			if s.RunCtx != nil {
				s.RunCtx.RecordFlowTiming(f.ID, f.Base().StartTime, f.Base().EndTime)
			}
			proto, err := s.ownerOf(f.ID, f)
			if err != nil {
				return nil, err
			}
			proto.FinishedTaskCount++
			s.startNextTasks(f, proto, stepSize)
		}

		for _, c := range finishedComputes {
			c.Base().EndTime = s.timer + stepSize
			proto, err := s.ownerOf(c.ID, c)
			if err != nil {
				return nil, err
			}
			proto.FinishedTaskCount++
			s.startNextTasks(c, proto, stepSize)
		}

		s.history = append(s.history, HistoryEntry{
			Timer: s.timer, StepSize: stepSize, StepComm: stepComm, StepComp: stepComp,
		})

		s.timer += stepSize
		s.step++

		if s.stepDuration != nil {
			s.stepDuration.Record(ctx, float64(time.Since(stepStart).Microseconds())/1000.0)
		}
	}

	s.markCriticalPath()

	if s.RunCtx != nil {
		if err := s.RunCtx.Finish(s.timer); err != nil {
			slog.Warn("run context finish failed", "error", err)
		}
	}

	return &Result{TotalTime: s.timer, History: s.history}, nil
}

func (s *Simulator) allFinished() bool {
	for _, p := range s.Protocols {
		if p.FinishedTaskCount < p.TotalTaskCount {
			return false
		}
	}
	return true
}

// computeStepSize applies fixed or adaptive sizing (spec.md §4.E): the
// adaptive form takes the minimum crude-remaining-time-estimate across
// every in-flight task, clamped into [adaptive_min, adaptive_max].
func (s *Simulator) computeStepSize() float64 {
	if !s.Rates.AdaptiveStep {
		return s.Rates.StepSize
	}

	next := s.Rates.AdaptiveMax
	for _, f := range s.runningFlows {
		if est := f.CrudeRemainingTimeEstimate(); est < next {
			next = est
		}
	}
	for _, p := range s.Protocols {
		for _, task := range p.Tasks {
			ct, ok := task.(*protocol.ComputeTask)
			if !ok || ct.Status != protocol.Running {
				continue
			}
			if est := ct.CrudeRemainingTimeEstimate(); est < next {
				next = est
			}
		}
	}

	if next < s.Rates.AdaptiveMin {
		next = s.Rates.AdaptiveMin
	}
	if next > s.Rates.AdaptiveMax || math.IsInf(next, 1) {
		next = s.Rates.AdaptiveMax
	}
	return next
}

// startTask transitions a task Blocked->Running (or straight to Finished
// for an empty task), assigning its start time. shiftedNext, when true,
// delays the start time by one step so a task cannot consume bandwidth
// on the same step its predecessor completed (spec.md §4.F).
func (s *Simulator) startTask(task protocol.Task, proto *protocol.Protocol, stepSize float64, shiftedNext bool) {
	base := task.Base()
	startTime := s.timer
	if shiftedNext {
		startTime += stepSize
	}
	base.StartTime = startTime

	switch t := task.(type) {
	case *protocol.Flow:
		s.Network.SetPath(t, s.timer)
		t.Initiate()
		base.Status = protocol.Running
		s.runningFlows = append(s.runningFlows, t)
	case *protocol.ComputeTask:
		base.Status = protocol.Running
		s.Network.GetMachine(t.DevID).Enqueue(t)
	case *protocol.EmptyTask:
		base.Status = protocol.Finished
		base.EndTime = startTime
		proto.FinishedTaskCount++
		s.startNextTasks(task, proto, stepSize)
	}
}

// startNextTasks decrements every successor's dependency count and
// starts whichever one reaches zero.
func (s *Simulator) startNextTasks(task protocol.Task, proto *protocol.Protocol, stepSize float64) {
	for _, next := range task.Base().NextTasks {
		nb := next.Base()
		nb.DepLeft--
		if nb.DepLeft <= 0 {
			s.startTask(next, proto, stepSize, true)
		}
	}
}

func (s *Simulator) removeRunningFlow(f *protocol.Flow) {
	for i, rf := range s.runningFlows {
		if rf == f {
			s.runningFlows = append(s.runningFlows[:i], s.runningFlows[i+1:]...)
			return
		}
	}
}

// ownerOf finds which protocol owns a task by id. Protocol counts are
// small (one per job), so a linear scan over the id's owning map is
// cheap and avoids threading a back-pointer through every task type.
func (s *Simulator) ownerOf(id int, task protocol.Task) (*protocol.Protocol, error) {
	for _, p := range s.Protocols {
		if owned, ok := p.TaskMap[id]; ok && owned == task {
			return p, nil
		}
	}
	return nil, fmt.Errorf("simulator: task %d not owned by any protocol", id)
}

func (s *Simulator) recordLinkSamples() {
	for _, bn := range s.Network.Bottlenecks() {
		s.RunCtx.RecordLinkSample(s.step, bn.ID(), bn.GetLoad(protocol.LoadMetricDefault))
	}
	for _, f := range s.runningFlows {
		s.RunCtx.RecordFlowSample(s.step, f.ID, f.LastRate)
	}
}

// markCriticalPath walks backward from each protocol's latest-finishing
// finisher through predecessors whose end time matches the maximum of
// their successor's predecessor end times, marking every task visited
// (spec.md §4.F, "Critical path").
func (s *Simulator) markCriticalPath() {
	for _, p := range s.Protocols {
		var latest protocol.Task
		for _, f := range p.Finishers {
			if latest == nil || f.Base().EndTime > latest.Base().EndTime {
				latest = f
			}
		}
		if latest == nil {
			continue
		}

		queue := []protocol.Task{latest}
		for len(queue) > 0 {
			task := queue[0]
			queue = queue[1:]
			base := task.Base()
			if base.Critical {
				continue
			}
			base.Critical = true

			var maxPrevEnd float64 = -1
			for _, prev := range base.PrevTasks {
				if prev.Base().EndTime > maxPrevEnd {
					maxPrevEnd = prev.Base().EndTime
				}
			}
			for _, prev := range base.PrevTasks {
				if prev.Base().EndTime == maxPrevEnd {
					queue = append(queue, prev)
				}
			}
		}
	}
}
