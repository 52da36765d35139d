package bwalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStep(t *testing.T, a Allocator, regs []registration, priorities map[int]int) map[int]float64 {
	t.Helper()
	a.Reset()
	for _, r := range regs {
		p := priorities[r.id]
		a.RegisterRate(r.id, r.rate, p)
	}
	a.ComputeAllocations()
	out := make(map[int]float64)
	for _, r := range regs {
		out[r.id] = a.GetAllocatedRate(r.id, r.rate, priorities[r.id])
	}
	return out
}

func TestFairShareUnderSubscribed(t *testing.T) {
	a := NewFairShare(100)
	out := runStep(t, a, []registration{{1, 30}, {2, 40}}, nil)
	assert.Equal(t, 30.0, out[1])
	assert.Equal(t, 40.0, out[2])
}

func TestFairShareOverSubscribed(t *testing.T) {
	a := NewFairShare(100)
	out := runStep(t, a, []registration{{1, 60}, {2, 60}}, nil)
	assert.InDelta(t, 50.0, out[1], 1e-9)
	assert.InDelta(t, 50.0, out[2], 1e-9)
	assert.LessOrEqual(t, out[1]+out[2], 100.0+1e-9)
}

// Scenario 4 (spec.md §8): max-min with rates {5,10,20,40,100} on capacity
// 100 yields {5,10,20,32.5,32.5}.
func TestMaxMinScenario4(t *testing.T) {
	a := NewMaxMin(100, false, 0)
	regs := []registration{{1, 5}, {2, 10}, {3, 20}, {4, 40}, {5, 100}}
	out := runStep(t, a, regs, nil)
	assert.InDelta(t, 5.0, out[1], 1e-9)
	assert.InDelta(t, 10.0, out[2], 1e-9)
	assert.InDelta(t, 20.0, out[3], 1e-9)
	assert.InDelta(t, 32.5, out[4], 1e-9)
	assert.InDelta(t, 32.5, out[5], 1e-9)
}

func TestMaxMinUnregisteredIDReturnsZero(t *testing.T) {
	a := NewMaxMin(100, false, 0)
	a.Reset()
	a.RegisterRate(1, 10, 0)
	a.ComputeAllocations()
	assert.Equal(t, 0.0, a.GetAllocatedRate(999, 10, 0))
}

func TestMaxMinPunishOversubscribed(t *testing.T) {
	a := NewMaxMin(100, true, 0.5)
	out := runStep(t, a, []registration{{1, 80}, {2, 80}}, nil)
	// exceed = 60, available shrinks to 40, floor is 50 so clamps to 50.
	assert.InDelta(t, 25.0, out[1], 1e-9)
	assert.InDelta(t, 25.0, out[2], 1e-9)
}

// Scenario 3 (spec.md §8): priority-queue allocator with 3 flows of rates
// {60,50,30} on a 100-capacity link with priorities {0,1,2}: allocations
// {60, 40, 0}.
func TestPriorityQueueScenario3(t *testing.T) {
	a := NewPriorityQueue(100)
	a.Reset()
	a.RegisterRate(1, 60, 0)
	a.RegisterRate(2, 50, 1)
	a.RegisterRate(3, 30, 2)
	a.ComputeAllocations()
	assert.InDelta(t, 60.0, a.GetAllocatedRate(1, 60, 0), 1e-9)
	assert.InDelta(t, 40.0, a.GetAllocatedRate(2, 50, 1), 1e-9)
	assert.InDelta(t, 0.0, a.GetAllocatedRate(3, 30, 2), 1e-9)
}

func TestPriorityQueueDrainsQueueSoResetDoesNotPanic(t *testing.T) {
	a := NewPriorityQueue(100)
	a.Reset()
	a.RegisterRate(1, 10, 0)
	a.ComputeAllocations()
	require.Empty(t, a.queue)
	assert.NotPanics(t, func() { a.Reset() })
}

func TestFixedPriorityStrictLevels(t *testing.T) {
	a := NewFixedPriority(100, 3)
	a.Reset()
	a.RegisterRate(1, 60, 0)
	a.RegisterRate(2, 50, 1)
	a.RegisterRate(3, 30, 2)
	a.ComputeAllocations()
	assert.InDelta(t, 60.0, a.GetAllocatedRate(1, 60, 0), 1e-9)
	assert.InDelta(t, 40.0, a.GetAllocatedRate(2, 50, 1), 1e-9)
	assert.InDelta(t, 0.0, a.GetAllocatedRate(3, 30, 2), 1e-9)
}

func TestFixedPriorityClampsOutOfRangePriority(t *testing.T) {
	a := NewFixedPriority(100, 2)
	a.Reset()
	a.RegisterRate(1, 10, 99)
	a.ComputeAllocations()
	assert.InDelta(t, 10.0, a.GetAllocatedRate(1, 10, 99), 1e-9)
}

// Allocator fairness invariants (spec.md §8), checked across all variants.
func TestAllocatorFairnessInvariants(t *testing.T) {
	capacity := 100.0
	rates := map[int]float64{1: 10, 2: 25, 3: 40, 4: 5}
	priorities := map[int]int{1: 0, 2: 1, 3: 2, 4: 0}

	variants := []Allocator{
		NewFairShare(capacity),
		NewMaxMin(capacity, false, 0),
		NewFixedPriority(capacity, 4),
		NewPriorityQueue(capacity),
	}

	for _, a := range variants {
		a.Reset()
		for id, r := range rates {
			a.RegisterRate(id, r, priorities[id])
		}
		a.ComputeAllocations()

		var sum float64
		for id, r := range rates {
			got := a.GetAllocatedRate(id, r, priorities[id])
			assert.LessOrEqualf(t, got, r+1e-9, "allocation for %d exceeded registered rate", id)
			sum += got
		}
		assert.LessOrEqualf(t, sum, capacity+1e-9, "%T over-allocated capacity", a)
	}
}

func TestAllocatorServesFullRateWhenUnderSubscribed(t *testing.T) {
	capacity := 100.0
	rates := map[int]float64{1: 10, 2: 20}
	priorities := map[int]int{1: 0, 2: 0}

	variants := []Allocator{
		NewFairShare(capacity),
		NewMaxMin(capacity, false, 0),
		NewFixedPriority(capacity, 2),
		NewPriorityQueue(capacity),
	}

	for _, a := range variants {
		a.Reset()
		for id, r := range rates {
			a.RegisterRate(id, r, priorities[id])
		}
		a.ComputeAllocations()
		for id, r := range rates {
			assert.InDeltaf(t, r, a.GetAllocatedRate(id, r, priorities[id]), 1e-9, "%T", a)
		}
		assert.False(t, a.IsCongested())
	}
}
