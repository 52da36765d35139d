package simulator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faridzandi/psim-go/internal/bwalloc"
	"github.com/faridzandi/psim-go/internal/loadbalancer"
	"github.com/faridzandi/psim-go/internal/protocol"
	"github.com/faridzandi/psim-go/internal/topology"
)

func bigSwitchOfTwo(t *testing.T) topology.Network {
	t.Helper()
	net, err := topology.New(topology.KindBigSwitch, topology.Params{
		MachineCount:          2,
		BigSwitchLinkCapacity: 100,
		LoadMetric:            protocol.LoadMetricUtilization,
		DropChanceMultiplier:  0,
		Seed:                  1,
		AllocKind:             bwalloc.KindFairShare,
		LBScheme:              loadbalancer.SchemeRoundRobin,
		LBSeed:                1,
	})
	require.NoError(t, err)
	return net
}

func TestSimulatorRunsPingPongToCompletion(t *testing.T) {
	p := protocol.PingPong(50, 4)
	p.ApplyRateConfig(10, 0.01, 1.2, 0.5, protocol.LoadMetricUtilization)

	sim := New(bigSwitchOfTwo(t), []*protocol.Protocol{p}, RatesConfig{
		StepSize: 1.0,
	}, nil)

	result, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Greater(t, result.TotalTime, 0.0)
	assert.NotEmpty(t, result.History)

	for _, task := range p.Tasks {
		assert.Equal(t, protocol.Finished, task.Base().Status, "task %d should finish", task.Base().ID)
	}
}

func TestSimulatorMarksCriticalPath(t *testing.T) {
	p := protocol.PingPong(50, 2)
	p.ApplyRateConfig(10, 0.01, 1.2, 0.5, protocol.LoadMetricUtilization)

	sim := New(bigSwitchOfTwo(t), []*protocol.Protocol{p}, RatesConfig{StepSize: 1.0}, nil)
	_, err := sim.Run(context.Background())
	require.NoError(t, err)

	var anyCritical bool
	for _, task := range p.Tasks {
		if task.Base().Critical {
			anyCritical = true
		}
	}
	assert.True(t, anyCritical, "expected at least one task on the critical path")
}

func TestSimulatorAdaptiveStepCompletes(t *testing.T) {
	p := protocol.PingPong(50, 3)
	p.ApplyRateConfig(10, 0.01, 1.2, 0.5, protocol.LoadMetricUtilization)

	sim := New(bigSwitchOfTwo(t), []*protocol.Protocol{p}, RatesConfig{
		StepSize:     1.0,
		AdaptiveStep: true,
		AdaptiveMin:  0.01,
		AdaptiveMax:  50,
	}, nil)

	result, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Greater(t, result.TotalTime, 0.0)
}
