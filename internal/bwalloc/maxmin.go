package bwalloc

import (
	"log/slog"
	"sort"
)

// MaxMin implements max-min fair share: sort registrations by rate
// ascending and walk the list, handing each id the smaller of its rate
// or an equal split of what remains.
//
// When punishOversubscribed is set, oversubscription shrinks the
// available pool toward a configured floor (punishOversubscribedMin,
// a fraction of capacity) instead of scaling smoothly — making
// oversubscription cost more than its fair share would. spec.md's Open
// Questions note that these two fields are sometimes left
// uninitialized upstream; missing is treated here as false, 0.0 (the
// zero value of Options), matching the documented convention.
type MaxMin struct {
	base
	punishOversubscribed    bool
	punishOversubscribedMin float64

	registerList []registration
	allocations  map[int]float64
}

type registration struct {
	id   int
	rate float64
}

func NewMaxMin(capacity float64, punish bool, punishMin float64) *MaxMin {
	a := &MaxMin{
		punishOversubscribed:    punish,
		punishOversubscribedMin: punishMin,
		allocations:             make(map[int]float64),
	}
	a.available = capacity
	return a
}

func (a *MaxMin) Reset() {
	a.reset()
	a.registerList = a.registerList[:0]
	a.allocations = make(map[int]float64)
}

func (a *MaxMin) RegisterRate(id int, rate float64, priority int) {
	a.registerList = append(a.registerList, registration{id: id, rate: rate})
	a.registered += rate
}

func (a *MaxMin) ComputeAllocations() {
	sort.Slice(a.registerList, func(i, j int) bool {
		return a.registerList[i].rate < a.registerList[j].rate
	})

	remainingCount := len(a.registerList)
	exceedAvailability := a.registered - a.available
	if exceedAvailability < 0 {
		exceedAvailability = 0
	}

	available := a.available
	if a.punishOversubscribed {
		available -= exceedAvailability
		threshold := a.available * a.punishOversubscribedMin
		if available < threshold {
			available = threshold
		}
	}

	for _, item := range a.registerList {
		remainingFairShare := available / float64(remainingCount)
		allocated := item.rate
		if remainingFairShare < allocated {
			allocated = remainingFairShare
		}
		a.allocations[item.id] = allocated
		available -= allocated
		remainingCount--
	}
}

func (a *MaxMin) GetAllocatedRate(id int, registeredRate float64, priority int) float64 {
	allocated, ok := a.allocations[id]
	if !ok {
		slog.Error("maxmin allocator: get_allocated_rate called with unregistered id", "id", id)
		return 0
	}
	a.allocated += allocated
	return allocated
}
