package scheduler

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInput() Input {
	return Input{
		Jobs: []Job{
			{JobID: 1, Machines: []int{0, 1, 2}, IterCount: 3, CommSize: 10, CompSize: 5},
			{JobID: 2, Machines: []int{2, 3}, IterCount: 2, CommSize: 8, CompSize: 2},
		},
		Options: Options{
			Subflows:        1,
			ThrottleFactor:  1.0,
			MaxFixingRounds: 3,
			LinkBandwidth:   10,
			MaxSpines:       4,
		},
	}
}

func TestSolveProducesOneTimingPerJob(t *testing.T) {
	out := Solve(sampleInput())
	assert.Len(t, out.JobTimings, 2)

	for _, jt := range out.JobTimings {
		switch jt.JobID {
		case 1:
			assert.Len(t, jt.Deltas, 3)
		case 2:
			assert.Len(t, jt.Deltas, 2)
		default:
			t.Fatalf("unexpected job id %d", jt.JobID)
		}
	}
}

func TestSolveAssignsSpinesWithinBudget(t *testing.T) {
	out := Solve(sampleInput())
	require.NotEmpty(t, out.LBDecisions)

	for _, d := range out.LBDecisions {
		assert.LessOrEqual(t, d.SpineCount, 4)
		for _, r := range d.SpineRates {
			assert.GreaterOrEqual(t, r.Spine, 0)
			assert.Less(t, r.Spine, 4)
		}
	}
}

func TestDeltasAreNonDecreasingPerJob(t *testing.T) {
	out := Solve(sampleInput())
	for _, jt := range out.JobTimings {
		for i := 1; i < len(jt.Deltas); i++ {
			assert.GreaterOrEqual(t, jt.Deltas[i], jt.Deltas[i-1])
		}
	}
}

func TestRunRoundTripsJSON(t *testing.T) {
	in := sampleInput()
	payload, err := json.Marshal(in)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Run(bytes.NewReader(payload), &out))

	var decoded Output
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Len(t, decoded.JobTimings, 2)
}

func TestOversubscribedWindowReportsPartialRatio(t *testing.T) {
	// Three jobs all sharing the same two racks, in lockstep (iter_count
	// 1, comm_size 0 so every job's two ring flows land at delta 0),
	// demanding more subflows than maxSpines provides.
	in := Input{
		Jobs: []Job{
			{JobID: 1, Machines: []int{0, 1}, IterCount: 1, CommSize: 0, CompSize: 0},
			{JobID: 2, Machines: []int{0, 1}, IterCount: 1, CommSize: 0, CompSize: 0},
			{JobID: 3, Machines: []int{0, 1}, IterCount: 1, CommSize: 0, CompSize: 0},
		},
		Options: Options{Subflows: 2, MaxFixingRounds: 1, LinkBandwidth: 1, MaxSpines: 1},
	}

	out := Solve(in)
	require.NotEmpty(t, out.LBDecisions)

	var sawPartial bool
	for _, d := range out.LBDecisions {
		sum := 0.0
		for _, r := range d.SpineRates {
			sum += r.Ratio
		}
		if d.SpineCount < in.Options.Subflows {
			assert.Less(t, sum, 1.0, "an oversubscribed flow must report less than full ratio coverage")
			sawPartial = true
		}
	}
	assert.True(t, sawPartial, "expected at least one oversubscribed decision with only 1 spine available for 2 subflows")
}

func TestSingleMachineJobProducesNoFlows(t *testing.T) {
	in := Input{
		Jobs: []Job{
			{JobID: 9, Machines: []int{0}, IterCount: 2, CommSize: 1, CompSize: 1},
		},
		Options: Options{Subflows: 1, MaxFixingRounds: 1, LinkBandwidth: 1, MaxSpines: 1},
	}
	out := Solve(in)
	assert.Empty(t, out.LBDecisions)
	require.Len(t, out.JobTimings, 1)
	assert.Len(t, out.JobTimings[0].Deltas, 2)
}
