package topology

import (
	"fmt"

	"github.com/faridzandi/psim-go/internal/loadbalancer"
	"github.com/faridzandi/psim-go/internal/protocol"
)

// FatTree builds the classic 3-tier fabric: server-tor, tor-agg, and
// agg-pod-core links, with an upper-tier load balancer choosing the core
// for cross-pod flows (spec.md §4.B). Grounded on FatTreeNetwork in
// core_network.cc / fattreenetwork.cc.
type FatTree struct {
	base

	serverPerRack int
	rackPerPod    int
	aggPerPod     int
	podCount      int
	coreCount     int
	coreLinkPerAgg int

	serverLocMap map[int]ftLoc

	serverTorBottlenecks map[ftLoc]*Bottleneck
	torAggBottlenecks    map[ftLoc]*Bottleneck
	coreBottlenecks      map[ftLoc]*Bottleneck
	podCoreAggMap        map[ftLoc]int

	lastAggInPod []int
	lb           loadbalancer.Balancer
}

func newFatTree(p Params) (*FatTree, error) {
	ResetBottleneckCounter()

	if p.MachineCount != p.ServerPerRack*p.RackPerPod*p.PodCount {
		return nil, fmt.Errorf("topology: machine_count (%d) must equal server_per_rack*rack_per_pod*pod_count (%d)",
			p.MachineCount, p.ServerPerRack*p.RackPerPod*p.PodCount)
	}
	if p.AggPerPod == 0 || p.CoreCount%p.AggPerPod != 0 {
		return nil, fmt.Errorf("topology: core_count (%d) must be divisible by agg_per_pod (%d)", p.CoreCount, p.AggPerPod)
	}

	ft := &FatTree{
		base:                 newBase(),
		serverPerRack:        p.ServerPerRack,
		rackPerPod:           p.RackPerPod,
		aggPerPod:            p.AggPerPod,
		podCount:             p.PodCount,
		coreCount:            p.CoreCount,
		coreLinkPerAgg:       p.CoreCount / p.AggPerPod,
		serverLocMap:         make(map[int]ftLoc),
		serverTorBottlenecks: make(map[ftLoc]*Bottleneck),
		torAggBottlenecks:    make(map[ftLoc]*Bottleneck),
		coreBottlenecks:      make(map[ftLoc]*Bottleneck),
		podCoreAggMap:        make(map[ftLoc]int),
		lastAggInPod:         make([]int, p.PodCount),
	}

	newBottleneck := func(capacity float64) (*Bottleneck, error) {
		return NewBottleneck(capacity, p.AllocKind, p.AllocOpts, p.LoadMetric, p.DropChanceMultiplier, p.Seed)
	}

	for i := 0; i < p.PodCount; i++ {
		for j := 0; j < p.RackPerPod; j++ {
			for k := 0; k < p.ServerPerRack; k++ {
				machineNum := i*p.RackPerPod*p.ServerPerRack + j*p.ServerPerRack + k
				ft.GetMachine(machineNum)
				ft.serverLocMap[machineNum] = ftLoc{pod: i, rack: j, server: k, dir: -1, core: -1}

				bnUp, err := newBottleneck(p.ServerTorLinkCapacity)
				if err != nil {
					return nil, err
				}
				ft.serverTorBottlenecks[ftLoc{i, j, k, 1, -1}] = bnUp
				ft.addBottleneck(bnUp)

				bnDown, err := newBottleneck(p.ServerTorLinkCapacity)
				if err != nil {
					return nil, err
				}
				ft.serverTorBottlenecks[ftLoc{i, j, k, 2, -1}] = bnDown
				ft.addBottleneck(bnDown)
			}
		}

		for j := 0; j < p.RackPerPod; j++ {
			for k := 0; k < p.AggPerPod; k++ {
				bnUp, err := newBottleneck(p.TorAggLinkCapacity)
				if err != nil {
					return nil, err
				}
				ft.torAggBottlenecks[ftLoc{i, j, k, 1, -1}] = bnUp
				ft.addBottleneck(bnUp)

				bnDown, err := newBottleneck(p.TorAggLinkCapacity)
				if err != nil {
					return nil, err
				}
				ft.torAggBottlenecks[ftLoc{i, j, k, 2, -1}] = bnDown
				ft.addBottleneck(bnDown)
			}
		}

		for c := 0; c < p.CoreCount; c++ {
			aggNum := c / ft.coreLinkPerAgg

			bnUp, err := newBottleneck(p.CoreLinkCapacity)
			if err != nil {
				return nil, err
			}
			ft.coreBottlenecks[ftLoc{i, -1, -1, 1, c}] = bnUp
			ft.addBottleneck(bnUp)

			bnDown, err := newBottleneck(p.CoreLinkCapacity)
			if err != nil {
				return nil, err
			}
			ft.coreBottlenecks[ftLoc{i, -1, -1, 2, c}] = bnDown
			ft.addBottleneck(bnDown)

			ft.podCoreAggMap[ftLoc{i, -1, -1, -1, c}] = aggNum
		}
	}

	lb, err := buildLoadBalancer(p.CoreCount, p)
	if err != nil {
		return nil, err
	}
	ft.lb = lb

	for pod := 0; pod < p.PodCount; pod++ {
		for c := 0; c < p.CoreCount; c++ {
			lb.RegisterLink(pod, c, 1, ft.coreBottlenecks[ftLoc{pod, -1, -1, 1, c}])
			lb.RegisterLink(pod, c, 2, ft.coreBottlenecks[ftLoc{pod, -1, -1, 2, c}])
		}
	}

	return ft, nil
}

func (ft *FatTree) selectAgg(podNumber int) int {
	agg := ft.lastAggInPod[podNumber]
	ft.lastAggInPod[podNumber] = (agg + 1) % ft.aggPerPod
	return agg
}

func (ft *FatTree) SetPath(flow *protocol.Flow, timer float64) {
	srcLoc := ft.serverLocMap[flow.SrcDevID]
	dstLoc := ft.serverLocMap[flow.DstDevID]

	samePod := srcLoc.pod == dstLoc.pod
	sameRack := samePod && srcLoc.rack == dstLoc.rack
	sameMachine := sameRack && srcLoc.server == dstLoc.server

	switch {
	case sameMachine:
		return
	case sameRack:
		flow.Path = append(flow.Path,
			ft.serverTorBottlenecks[ftLoc{srcLoc.pod, srcLoc.rack, srcLoc.server, 1, -1}],
			ft.serverTorBottlenecks[ftLoc{dstLoc.pod, dstLoc.rack, dstLoc.server, 2, -1}],
		)
	case samePod:
		agg := ft.selectAgg(srcLoc.pod)
		flow.Path = append(flow.Path,
			ft.serverTorBottlenecks[ftLoc{srcLoc.pod, srcLoc.rack, srcLoc.server, 1, -1}],
			ft.torAggBottlenecks[ftLoc{srcLoc.pod, srcLoc.rack, agg, 1, -1}],
			ft.torAggBottlenecks[ftLoc{dstLoc.pod, dstLoc.rack, agg, 2, -1}],
			ft.serverTorBottlenecks[ftLoc{dstLoc.pod, dstLoc.rack, dstLoc.server, 2, -1}],
		)
	default:
		core := ft.lb.GetUpperItem(srcLoc.pod, dstLoc.pod, flow, timer)
		srcAgg := ft.podCoreAggMap[ftLoc{srcLoc.pod, -1, -1, -1, core}]
		dstAgg := ft.podCoreAggMap[ftLoc{dstLoc.pod, -1, -1, -1, core}]

		flow.Path = append(flow.Path,
			ft.serverTorBottlenecks[ftLoc{srcLoc.pod, srcLoc.rack, srcLoc.server, 1, -1}],
			ft.torAggBottlenecks[ftLoc{srcLoc.pod, srcLoc.rack, srcAgg, 1, -1}],
			ft.coreBottlenecks[ftLoc{srcLoc.pod, -1, -1, 1, core}],
			ft.coreBottlenecks[ftLoc{dstLoc.pod, -1, -1, 2, core}],
			ft.torAggBottlenecks[ftLoc{dstLoc.pod, dstLoc.rack, dstAgg, 2, -1}],
			ft.serverTorBottlenecks[ftLoc{dstLoc.pod, dstLoc.rack, dstLoc.server, 2, -1}],
		)
	}
}

func (ft *FatTree) GetSourceForFlow(flow *protocol.Flow) int {
	return ft.serverLocMap[flow.SrcDevID].pod
}
