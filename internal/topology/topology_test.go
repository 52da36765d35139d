package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faridzandi/psim-go/internal/bwalloc"
	"github.com/faridzandi/psim-go/internal/loadbalancer"
	"github.com/faridzandi/psim-go/internal/protocol"
)

func baseParams() Params {
	return Params{
		ServerTorLinkCapacity: 100,
		TorAggLinkCapacity:    100,
		CoreLinkCapacity:      100,
		BigSwitchLinkCapacity: 100,
		LoadMetric:            protocol.LoadMetricUtilization,
		DropChanceMultiplier:  0.01,
		Seed:                  1,
		AllocKind:             bwalloc.KindFairShare,
		LBScheme:              loadbalancer.SchemeRoundRobin,
		LBSeed:                1,
	}
}

func newFlow(id, src, dst int) *protocol.Flow {
	f := protocol.NewFlow(id, 1, 0.01, 1.1, 0.5, protocol.LoadMetricUtilization)
	f.SrcDevID = src
	f.DstDevID = dst
	return f
}

func TestFatTreeRejectsBadDimensions(t *testing.T) {
	p := baseParams()
	p.MachineCount = 7
	p.ServerPerRack = 2
	p.RackPerPod = 2
	p.PodCount = 2
	p.AggPerPod = 2
	p.CoreCount = 4

	_, err := New(KindFatTree, p)
	require.Error(t, err)
}

func TestFatTreeSameMachineEmptyPath(t *testing.T) {
	p := baseParams()
	p.MachineCount = 8
	p.ServerPerRack = 2
	p.RackPerPod = 2
	p.PodCount = 2
	p.AggPerPod = 2
	p.CoreCount = 4

	net, err := New(KindFatTree, p)
	require.NoError(t, err)

	f := newFlow(1, 0, 0)
	net.SetPath(f, 0)
	assert.Empty(t, f.Path)
}

func TestFatTreeSameRackTwoHops(t *testing.T) {
	p := baseParams()
	p.MachineCount = 8
	p.ServerPerRack = 2
	p.RackPerPod = 2
	p.PodCount = 2
	p.AggPerPod = 2
	p.CoreCount = 4

	net, err := New(KindFatTree, p)
	require.NoError(t, err)

	f := newFlow(1, 0, 1)
	net.SetPath(f, 0)
	assert.Len(t, f.Path, 2)
}

func TestFatTreeSamePodFourHops(t *testing.T) {
	p := baseParams()
	p.MachineCount = 8
	p.ServerPerRack = 2
	p.RackPerPod = 2
	p.PodCount = 2
	p.AggPerPod = 2
	p.CoreCount = 4

	net, err := New(KindFatTree, p)
	require.NoError(t, err)

	f := newFlow(1, 0, 2)
	net.SetPath(f, 0)
	assert.Len(t, f.Path, 4)
}

func TestFatTreeCrossPodSixHops(t *testing.T) {
	p := baseParams()
	p.MachineCount = 8
	p.ServerPerRack = 2
	p.RackPerPod = 2
	p.PodCount = 2
	p.AggPerPod = 2
	p.CoreCount = 4

	net, err := New(KindFatTree, p)
	require.NoError(t, err)

	f := newFlow(1, 0, 4)
	net.SetPath(f, 0)
	assert.Len(t, f.Path, 6)

	assert.Equal(t, 0, net.GetSourceForFlow(f))
}

func TestLeafSpineCrossRackFourHops(t *testing.T) {
	p := baseParams()
	p.MachineCount = 8
	p.ServerPerRack = 2
	p.RackPerPod = 2
	p.CoreCount = 4

	net, err := New(KindLeafSpine, p)
	require.NoError(t, err)

	f := newFlow(1, 0, 4)
	net.SetPath(f, 0)
	assert.Len(t, f.Path, 4)
	assert.Equal(t, 0, net.GetSourceForFlow(f))
}

func TestLeafSpineSameRackTwoHops(t *testing.T) {
	p := baseParams()
	p.MachineCount = 8
	p.ServerPerRack = 2
	p.RackPerPod = 2
	p.CoreCount = 4

	net, err := New(KindLeafSpine, p)
	require.NoError(t, err)

	f := newFlow(1, 0, 1)
	net.SetPath(f, 0)
	assert.Len(t, f.Path, 2)
}

func TestBigSwitchSingleHopEachWay(t *testing.T) {
	p := baseParams()
	p.MachineCount = 4

	net, err := New(KindBigSwitch, p)
	require.NoError(t, err)

	f := newFlow(1, 0, 3)
	net.SetPath(f, 0)
	assert.Len(t, f.Path, 2)
	assert.Equal(t, 0, net.GetSourceForFlow(f))

	same := newFlow(2, 1, 1)
	net.SetPath(same, 0)
	assert.Empty(t, same.Path)
}

func TestUnknownKindErrors(t *testing.T) {
	_, err := New(Kind("nonsense"), baseParams())
	require.Error(t, err)
}
