package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDependencyGraphRanksAndEndpoints(t *testing.T) {
	p := New()

	a, err := p.CreateTask(TypeCompute, 0)
	require.NoError(t, err)
	b, err := p.CreateTask(TypeCompute, 1)
	require.NoError(t, err)
	c, err := p.CreateTask(TypeCompute, 2)
	require.NoError(t, err)

	a.Base().AddNextTaskID(b.Base().ID)
	b.Base().AddNextTaskID(c.Base().ID)

	p.BuildDependencyGraph()

	require.Len(t, p.Initiators, 1)
	assert.Equal(t, 0, p.Initiators[0].Base().ID)
	require.Len(t, p.Finishers, 1)
	assert.Equal(t, 2, p.Finishers[0].Base().ID)

	assert.Equal(t, 0, a.Base().Rank)
	assert.Equal(t, 1, b.Base().Rank)
	assert.Equal(t, 2, c.Base().Rank)
	assert.Equal(t, 2, p.MaxRank)
}

func TestBuildDependencyGraphIsIdempotent(t *testing.T) {
	p := New()
	a, _ := p.CreateTask(TypeCompute, 0)
	b, _ := p.CreateTask(TypeCompute, 1)
	a.Base().AddNextTaskID(b.Base().ID)

	p.BuildDependencyGraph()
	firstRank := b.Base().Rank

	// Calling it again with no new edges must not change existing ranks
	// or duplicate the edge.
	p.BuildDependencyGraph()
	assert.Equal(t, firstRank, b.Base().Rank)
	assert.Len(t, a.Base().NextTasks, 1)
}

func TestBuildDependencyGraphExtendsNeverContradicts(t *testing.T) {
	p := New()
	a, _ := p.CreateTask(TypeCompute, 0)
	b, _ := p.CreateTask(TypeCompute, 1)
	c, _ := p.CreateTask(TypeCompute, 2)
	a.Base().AddNextTaskID(b.Base().ID)
	p.BuildDependencyGraph()

	// A second call with a freshly added edge extends the graph.
	b.Base().AddNextTaskID(c.Base().ID)
	p.BuildDependencyGraph()

	assert.Len(t, a.Base().NextTasks, 1)
	assert.Len(t, b.Base().NextTasks, 1)
	assert.Equal(t, 2, c.Base().Rank)
}

func TestAddTaskRejectsDuplicateID(t *testing.T) {
	p := New()
	_, err := p.CreateTask(TypeCompute, 5)
	require.NoError(t, err)
	_, err = p.CreateTask(TypeCompute, 5)
	assert.Error(t, err)
}

func TestMakeCopyPreservesStructure(t *testing.T) {
	orig := RingAllReduce(3, 100, 10)
	replica := orig.MakeCopy(true)

	assert.Equal(t, len(orig.Tasks), len(replica.Tasks))
	assert.Equal(t, orig.MaxRank, replica.MaxRank)
	assert.Len(t, replica.Initiators, len(orig.Initiators))
}

func TestRingAllReduceHasTwoLapsPerChunk(t *testing.T) {
	p := RingAllReduce(4, 1000, 5)

	var flows, comps int
	for _, task := range p.Tasks {
		switch task.Type() {
		case TypeFlow:
			flows++
		case TypeCompute:
			comps++
		}
	}

	// Each of the 4 chunks does (n-1) comm+compute steps, then (n-1)
	// comm-only steps: 2*(n-1) flows and (n-1) computes per chunk.
	assert.Equal(t, 4*2*3, flows)
	assert.Equal(t, 4*3, comps)
}

func TestAllToAllSkipsSelfPairs(t *testing.T) {
	p := AllToAll(3, 500, 2)
	assert.Equal(t, 2*3*2, len(p.Tasks))
}

func TestRingAllReduceHasBarrierSynchronization(t *testing.T) {
	numReplicas := 3
	p := RingAllReduce(numReplicas, 1000, 5)
	stages := numReplicas - 1

	var emptyTasks []Task
	for _, task := range p.Tasks {
		if task.Type() == TypeEmpty {
			emptyTasks = append(emptyTasks, task)
		}
	}
	// initial barrier + (stages-1) reduce-scatter barriers + 1 transition
	// barrier + (stages-1) broadcast barriers.
	assert.Len(t, emptyTasks, 2*stages)

	require.Len(t, p.Initiators, 1)
	initial := p.Initiators[0]
	assert.Equal(t, TypeEmpty, initial.Type())
	require.Len(t, initial.Base().NextTasks, numReplicas)
	for _, next := range initial.Base().NextTasks {
		assert.Equal(t, TypeFlow, next.Type())
	}

	// Every stage-0 reduce flow's immediate predecessor is the initial
	// barrier, so no chain can start before every chain is ready.
	for _, next := range initial.Base().NextTasks {
		require.Len(t, next.Base().PrevTasks, 1)
		assert.Equal(t, initial.Base().ID, next.Base().PrevTasks[0].Base().ID)
	}

	// The transition barrier between reduce-scatter and broadcast must
	// gather all numReplicas chains before releasing anything. It is the
	// one barrier fed by aggregates whose released flows feed no further
	// aggregate (reduce-scatter barriers release flows that do; broadcast
	// barriers are fed by flows).
	feedsCompute := func(task Task) bool {
		for _, next := range task.Base().NextTasks {
			if next.Type() == TypeCompute {
				return true
			}
		}
		return false
	}
	var transitionCount int
	for _, task := range emptyTasks {
		if task.Base().ID == initial.Base().ID {
			continue
		}
		prevs, nexts := task.Base().PrevTasks, task.Base().NextTasks
		if len(prevs) == numReplicas && len(nexts) == numReplicas &&
			prevs[0].Type() == TypeCompute && !feedsCompute(nexts[0]) {
			for _, prev := range task.Base().PrevTasks {
				assert.Equal(t, TypeCompute, prev.Type())
			}
			for _, next := range task.Base().NextTasks {
				assert.Equal(t, TypeFlow, next.Type())
			}
			transitionCount++
		}
	}
	assert.Equal(t, 1, transitionCount, "exactly one barrier gathers all chains' aggregates and releases the broadcast phase")
}
