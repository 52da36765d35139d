package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fattree", cfg.Topology.Kind)
	assert.Equal(t, "roundrobin", cfg.LB.Scheme)
	assert.Equal(t, 100.0, cfg.Rates.StepSize)
}

func TestValidateRejectsUnknownTopology(t *testing.T) {
	cfg := &Simulation{Topology: TopologyConfig{Kind: "ring"}}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateFatTreeDimensions(t *testing.T) {
	cfg := &Simulation{
		Topology: TopologyConfig{
			Kind: "fattree", MachineCount: 8,
			ServersPerRack: 2, RacksPerPod: 2, PodCount: 2,
			AggsPerPod: 2, CoreCount: 4,
		},
		LB:        LBConfig{Scheme: "roundrobin"},
		Allocator: AllocatorConfig{Kind: "fairshare"},
	}
	require.NoError(t, cfg.Validate())

	cfg.Topology.MachineCount = 7
	assert.Error(t, cfg.Validate())
}

func TestValidateCoreCountMustBeMultipleOfAggsPerPod(t *testing.T) {
	cfg := &Simulation{
		Topology: TopologyConfig{
			Kind: "fattree", MachineCount: 8,
			ServersPerRack: 2, RacksPerPod: 2, PodCount: 2,
			AggsPerPod: 3, CoreCount: 4,
		},
		LB:        LBConfig{Scheme: "roundrobin"},
		Allocator: AllocatorConfig{Kind: "fairshare"},
	}
	assert.Error(t, cfg.Validate())
}
