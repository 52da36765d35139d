package topology

import "github.com/faridzandi/psim-go/internal/protocol"

// BigSwitch models every machine hanging off one non-blocking switch of
// infinite capacity: a flow crosses only its own up-link and the
// destination's down-link, never contending with any other rack's
// traffic (spec.md §4.B). There is no separate .cc source for this
// variant in the original corpus — its shape is inferred from
// network.h's BigSwitchNetwork declaration (one bottleneck per machine
// per direction, no load balancer, no upper-tier selection).
type BigSwitch struct {
	base

	upBottlenecks   map[int]*Bottleneck
	downBottlenecks map[int]*Bottleneck
}

func newBigSwitch(p Params) (*BigSwitch, error) {
	ResetBottleneckCounter()

	bs := &BigSwitch{
		base:            newBase(),
		upBottlenecks:   make(map[int]*Bottleneck),
		downBottlenecks: make(map[int]*Bottleneck),
	}

	capacity := p.BigSwitchLinkCapacity
	if capacity == 0 {
		capacity = p.ServerTorLinkCapacity
	}

	for i := 0; i < p.MachineCount; i++ {
		bs.GetMachine(i)

		up, err := NewBottleneck(capacity, p.AllocKind, p.AllocOpts, p.LoadMetric, p.DropChanceMultiplier, p.Seed)
		if err != nil {
			return nil, err
		}
		bs.upBottlenecks[i] = up
		bs.addBottleneck(up)

		down, err := NewBottleneck(capacity, p.AllocKind, p.AllocOpts, p.LoadMetric, p.DropChanceMultiplier, p.Seed)
		if err != nil {
			return nil, err
		}
		bs.downBottlenecks[i] = down
		bs.addBottleneck(down)
	}

	return bs, nil
}

func (bs *BigSwitch) SetPath(flow *protocol.Flow, _ float64) {
	if flow.SrcDevID == flow.DstDevID {
		return
	}
	flow.Path = append(flow.Path,
		bs.upBottlenecks[flow.SrcDevID],
		bs.downBottlenecks[flow.DstDevID],
	)
}

// GetSourceForFlow has no upper tier to report in a single-switch
// fabric; every machine is its own unit, so it returns the source
// machine itself.
func (bs *BigSwitch) GetSourceForFlow(flow *protocol.Flow) int {
	return flow.SrcDevID
}
