package bwalloc

import "sort"

// PriorityQueue pops the top-priority cohort and pays it in full if it
// fits, otherwise splits the remaining capacity across the cohort
// proportionally to rate, then repeats on the next lower priority with
// whatever capacity is left.
//
// After ComputeAllocations the internal queue must be empty — draining
// it is how the algorithm terminates. A non-empty queue found at the
// next Reset is a programming error (spec.md §7), not a data error, and
// panics rather than being logged and swallowed.
type PriorityQueue struct {
	base

	queue       []pqItem
	allocations map[int]float64
	drained     bool
}

type pqItem struct {
	priority int
	id       int
	rate     float64
}

func NewPriorityQueue(capacity float64) *PriorityQueue {
	a := &PriorityQueue{
		allocations: make(map[int]float64),
		drained:     true,
	}
	a.available = capacity
	return a
}

func (a *PriorityQueue) Reset() {
	if !a.drained && len(a.queue) > 0 {
		panic("bwalloc: PriorityQueue.Reset called with a non-empty register queue; ComputeAllocations should have drained it")
	}
	a.reset()
	a.queue = a.queue[:0]
	a.allocations = make(map[int]float64)
	a.drained = true
}

func (a *PriorityQueue) RegisterRate(id int, rate float64, priority int) {
	a.registered += rate
	a.queue = append(a.queue, pqItem{priority: priority, id: id, rate: rate})
	a.drained = false
}

func (a *PriorityQueue) ComputeAllocations() {
	if len(a.queue) == 0 {
		a.drained = true
		return
	}

	// The lowest priority number is serviced first, matching the C++
	// ordering (items pushed as -priority into a max-heap, so the
	// smallest priority number has the largest key and pops first).
	sort.SliceStable(a.queue, func(i, j int) bool {
		return a.queue[i].priority < a.queue[j].priority
	})

	available := a.available
	i := 0
	for available > 0 && i < len(a.queue) {
		topPriority := a.queue[i].priority

		j := i
		var cohortSum float64
		for j < len(a.queue) && a.queue[j].priority == topPriority {
			cohortSum += a.queue[j].rate
			j++
		}

		if cohortSum <= available {
			for k := i; k < j; k++ {
				a.allocations[a.queue[k].id] = a.queue[k].rate
				available -= a.queue[k].rate
			}
		} else {
			ratio := available / cohortSum
			for k := i; k < j; k++ {
				allocated := a.queue[k].rate * ratio
				a.allocations[a.queue[k].id] = allocated
				available -= allocated
			}
			available = 0
		}

		i = j
	}

	a.queue = a.queue[:0]
	a.drained = true
}

func (a *PriorityQueue) GetAllocatedRate(id int, registeredRate float64, priority int) float64 {
	allocated, ok := a.allocations[id]
	if !ok {
		return 0
	}
	a.allocated += allocated
	return allocated
}
