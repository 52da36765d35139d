package topology

import (
	"github.com/faridzandi/psim-go/internal/loadbalancer"
	"github.com/faridzandi/psim-go/internal/protocol"
)

// LeafSpine is a degenerate fat-tree where rack == pod: two links per
// flow in-rack, four links cross-rack with a load-balanced core between
// (spec.md §4.B). Grounded on LeafSpineNetwork in core_network.cc.
type LeafSpine struct {
	base

	serverPerRack int
	torCount      int
	coreCount     int

	serverLocMap    map[int]ftLoc
	serverTorBottle map[ftLoc]*Bottleneck
	coreBottlenecks map[ftLoc]*Bottleneck

	lb loadbalancer.Balancer
}

func newLeafSpine(p Params) (*LeafSpine, error) {
	ResetBottleneckCounter()

	serverPerRack := p.ServerPerRack * p.RackPerPod
	torCount := p.MachineCount / serverPerRack

	ls := &LeafSpine{
		base:            newBase(),
		serverPerRack:   serverPerRack,
		torCount:        torCount,
		coreCount:       p.CoreCount,
		serverLocMap:    make(map[int]ftLoc),
		serverTorBottle: make(map[ftLoc]*Bottleneck),
		coreBottlenecks: make(map[ftLoc]*Bottleneck),
	}

	newBottleneck := func(capacity float64) (*Bottleneck, error) {
		return NewBottleneck(capacity, p.AllocKind, p.AllocOpts, p.LoadMetric, p.DropChanceMultiplier, p.Seed)
	}

	for i := 0; i < torCount; i++ {
		for k := 0; k < serverPerRack; k++ {
			machineNum := i*serverPerRack + k
			ls.GetMachine(machineNum)
			ls.serverLocMap[machineNum] = ftLoc{pod: -1, rack: i, server: k, dir: -1, core: -1}

			bnUp, err := newBottleneck(p.ServerTorLinkCapacity)
			if err != nil {
				return nil, err
			}
			ls.serverTorBottle[ftLoc{-1, i, k, 1, -1}] = bnUp
			ls.addBottleneck(bnUp)

			bnDown, err := newBottleneck(p.ServerTorLinkCapacity)
			if err != nil {
				return nil, err
			}
			ls.serverTorBottle[ftLoc{-1, i, k, 2, -1}] = bnDown
			ls.addBottleneck(bnDown)
		}

		for c := 0; c < p.CoreCount; c++ {
			bnUp, err := newBottleneck(p.CoreLinkCapacity)
			if err != nil {
				return nil, err
			}
			ls.coreBottlenecks[ftLoc{-1, i, -1, 1, c}] = bnUp
			ls.addBottleneck(bnUp)

			bnDown, err := newBottleneck(p.CoreLinkCapacity)
			if err != nil {
				return nil, err
			}
			ls.coreBottlenecks[ftLoc{-1, i, -1, 2, c}] = bnDown
			ls.addBottleneck(bnDown)
		}
	}

	lb, err := buildLoadBalancer(p.CoreCount, p)
	if err != nil {
		return nil, err
	}
	ls.lb = lb

	for t := 0; t < torCount; t++ {
		for c := 0; c < p.CoreCount; c++ {
			lb.RegisterLink(t, c, 1, ls.coreBottlenecks[ftLoc{-1, t, -1, 1, c}])
			lb.RegisterLink(t, c, 2, ls.coreBottlenecks[ftLoc{-1, t, -1, 2, c}])
		}
	}

	return ls, nil
}

func (ls *LeafSpine) SetPath(flow *protocol.Flow, timer float64) {
	srcLoc := ls.serverLocMap[flow.SrcDevID]
	dstLoc := ls.serverLocMap[flow.DstDevID]

	sameRack := srcLoc.rack == dstLoc.rack
	sameMachine := sameRack && srcLoc.server == dstLoc.server

	switch {
	case sameMachine:
		return
	case sameRack:
		flow.Path = append(flow.Path,
			ls.serverTorBottle[ftLoc{-1, srcLoc.rack, srcLoc.server, 1, -1}],
			ls.serverTorBottle[ftLoc{-1, dstLoc.rack, dstLoc.server, 2, -1}],
		)
	default:
		core := ls.lb.GetUpperItem(srcLoc.rack, dstLoc.rack, flow, timer)
		flow.Path = append(flow.Path,
			ls.serverTorBottle[ftLoc{-1, srcLoc.rack, srcLoc.server, 1, -1}],
			ls.coreBottlenecks[ftLoc{-1, srcLoc.rack, -1, 1, core}],
			ls.coreBottlenecks[ftLoc{-1, dstLoc.rack, -1, 2, core}],
			ls.serverTorBottle[ftLoc{-1, dstLoc.rack, dstLoc.server, 2, -1}],
		)
	}
}

func (ls *LeafSpine) GetSourceForFlow(flow *protocol.Flow) int {
	return ls.serverLocMap[flow.SrcDevID].rack
}
