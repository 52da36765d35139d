// Package topology builds the simulated fabric — machines, links, and
// the lookup tables used to route a flow's path — in three variants:
// big switch, fat-tree, and leaf-spine (spec.md §4.B).
package topology

import (
	"fmt"

	"github.com/faridzandi/psim-go/internal/bwalloc"
	"github.com/faridzandi/psim-go/internal/loadbalancer"
	"github.com/faridzandi/psim-go/internal/protocol"
)

// Network is the contract every topology variant satisfies.
type Network interface {
	// SetPath mutates flow.Path to the links the flow must traverse. The
	// cross-pod core (fat-tree) or spine (leaf-spine) comes from the load
	// balancer; a same-pod fat-tree agg is picked round-robin per pod,
	// without the load balancer. SetPath itself records nothing; only
	// the future-load balancer saves its choice to the run history.
	SetPath(flow *protocol.Flow, timer float64)
	// GetSourceForFlow returns the flow's upper-tier source unit: the
	// pod for fat-tree, the rack for leaf-spine, the source machine for
	// big-switch.
	GetSourceForFlow(flow *protocol.Flow) int

	Machines() map[int]*Machine
	Bottlenecks() []*Bottleneck
	GetMachine(name int) *Machine

	TotalLinkBandwidth() float64
	TotalBWUtilization() float64

	// RegisterFlows hands the network the full in-flight flow set, so
	// MakeProgressOnFlows can walk it every step.
	RegisterFlows(flows []*protocol.Flow)
	MakeProgressOnMachines(stepSize float64, recordHistory bool) (float64, []*protocol.ComputeTask)
	MakeProgressOnFlows(stepSize float64, recordHistory bool) (float64, []*protocol.Flow)
}

// base implements the bookkeeping shared by every variant: the machine
// and bottleneck registries, and the two-phase flow/machine progress
// loop (spec.md §4.E), mirroring Network's non-virtual methods.
type base struct {
	machines    map[int]*Machine
	bottlenecks []*Bottleneck
	flows       []*protocol.Flow

	cachedTotalBandwidth float64
	bandwidthCached      bool
}

func newBase() base {
	return base{machines: make(map[int]*Machine)}
}

func (b *base) Machines() map[int]*Machine  { return b.machines }
func (b *base) Bottlenecks() []*Bottleneck  { return b.bottlenecks }

func (b *base) GetMachine(name int) *Machine {
	if m, ok := b.machines[name]; ok {
		return m
	}
	m := NewMachine(name)
	b.machines[name] = m
	return m
}

func (b *base) addBottleneck(bn *Bottleneck) { b.bottlenecks = append(b.bottlenecks, bn) }

// RegisterFlows hands the base the full flow set once protocols are
// integrated, so MakeProgressOnFlows can walk it every step.
func (b *base) RegisterFlows(flows []*protocol.Flow) { b.flows = flows }

func (b *base) TotalLinkBandwidth() float64 {
	if b.bandwidthCached {
		return b.cachedTotalBandwidth
	}
	var total float64
	for _, bn := range b.bottlenecks {
		total += bn.Bandwidth_
	}
	b.cachedTotalBandwidth = total
	b.bandwidthCached = true
	return total
}

func (b *base) TotalBWUtilization() float64 {
	var total float64
	for _, bn := range b.bottlenecks {
		total += bn.Alloc.Totals().Utilized
	}
	return total
}

// MakeProgressOnMachines advances every machine's head-of-queue compute
// task by step_size, returning the tasks that finished this step.
func (b *base) MakeProgressOnMachines(stepSize float64, recordHistory bool) (stepComp float64, finished []*protocol.ComputeTask) {
	for _, m := range b.machines {
		f, progress := m.MakeProgress(stepSize)
		stepComp += progress
		if f != nil {
			finished = append(finished, f)
		}
	}

	if recordHistory {
		for _, m := range b.machines {
			m.RecordQueueLength()
		}
	}

	return stepComp, finished
}

// MakeProgressOnFlows runs one step's two-phase rate registration and
// allocation read-back across every bottleneck and flow (spec.md §4.E).
func (b *base) MakeProgressOnFlows(stepSize float64, recordHistory bool) (stepComm float64, finished []*protocol.Flow) {
	for _, bn := range b.bottlenecks {
		bn.ResetRegister()
	}

	for _, f := range b.flows {
		f.RegisterRateOnPath(stepSize)
	}

	for _, bn := range b.bottlenecks {
		bn.AllocateBandwidths()
	}

	for _, f := range b.flows {
		stepComm += f.MakeProgress(stepSize)
		if f.Status == protocol.Finished {
			finished = append(finished, f)
		}
	}

	if recordHistory {
		for _, bn := range b.bottlenecks {
			bn.RecordHistory()
		}
	}

	return stepComm, finished
}

// ftLoc keys every bottleneck map across all three topology variants: a
// location plus a direction (1 = up, 2 = down) plus, for core links, the
// core index. Unused fields are -1, matching the original ft_loc.
type ftLoc struct {
	pod, rack, server, dir, core int
}

// Kind names the topology variants selectable via configuration.
type Kind string

const (
	KindBigSwitch Kind = "bigswitch"
	KindFatTree   Kind = "fattree"
	KindLeafSpine Kind = "leafspine"
)

// Params carries every dimension and capacity a variant might need;
// unused fields are ignored by variants that do not need them.
type Params struct {
	MachineCount int

	ServerPerRack int
	RackPerPod    int
	AggPerPod     int
	PodCount      int
	CoreCount     int

	ServerTorLinkCapacity float64
	TorAggLinkCapacity    float64
	CoreLinkCapacity      float64

	BigSwitchLinkCapacity float64

	LoadMetric           protocol.LoadMetric
	DropChanceMultiplier float64
	Seed                 int64

	AllocKind bwalloc.Kind
	AllocOpts bwalloc.Options

	LBScheme  loadbalancer.Scheme
	LBSamples int
	LBSeed    int64

	// History and ProfilingInterval wire the future-load balancer to
	// Run Context; both are ignored by every other scheme.
	History           loadbalancer.RunHistory
	ProfilingInterval int
}

// buildLoadBalancer constructs the load balancer named by p.LBScheme,
// special-casing future-load since it needs a Run Context handle that
// loadbalancer.New's plain factory signature has no room for.
func buildLoadBalancer(itemCount int, p Params) (loadbalancer.Balancer, error) {
	if p.LBScheme == loadbalancer.SchemeFutureLoad {
		return loadbalancer.NewFutureLoad(itemCount, p.LoadMetric, p.LBSeed, p.History, p.ProfilingInterval), nil
	}
	return loadbalancer.New(p.LBScheme, itemCount, p.LBSamples, p.LoadMetric, p.LBSeed)
}

// New constructs the topology variant named by kind.
func New(kind Kind, p Params) (Network, error) {
	switch kind {
	case KindBigSwitch:
		return newBigSwitch(p)
	case KindFatTree:
		return newFatTree(p)
	case KindLeafSpine:
		return newLeafSpine(p)
	default:
		return nil, fmt.Errorf("topology: unknown kind %q", kind)
	}
}
