package bwalloc

// FixedPriority allocates strict-priority top-down across a fixed number
// of priority levels: level i consumes min(registered_i, remaining); once
// a level exhausts the remaining capacity, every lower level gets zero.
//
// Open Question resolution (spec.md §9): whether a registrant is
// considered "depleted" when total_registered equals total_available
// exactly is left ambiguous upstream. This implementation uses the
// strict convention — full rate is only given when registered strictly
// less than capacity; the equal case is treated as congested and scaled
// via the level ratio (which evaluates to 1.0 when nothing was actually
// squeezed out, so behavior is continuous across the boundary).
type FixedPriority struct {
	base
	levels int

	registerMap  []float64
	availability []float64
}

func NewFixedPriority(capacity float64, levels int) *FixedPriority {
	a := &FixedPriority{
		levels:       levels,
		registerMap:  make([]float64, levels),
		availability: make([]float64, levels),
	}
	a.available = capacity
	return a
}

func (a *FixedPriority) Reset() {
	a.reset()
	for i := range a.registerMap {
		a.registerMap[i] = 0
		a.availability[i] = 0
	}
}

func (a *FixedPriority) clampPriority(p int) int {
	if p >= a.levels {
		return a.levels - 1
	}
	if p < 0 {
		return 0
	}
	return p
}

func (a *FixedPriority) RegisterRate(id int, rate float64, priority int) {
	priority = a.clampPriority(priority)
	a.registerMap[priority] += rate
	a.registered += rate
}

func (a *FixedPriority) ComputeAllocations() {
	available := a.available

	for i := 0; i < a.levels; i++ {
		depleted := a.registerMap[i] >= available

		got := a.registerMap[i]
		if got > available {
			got = available
		}
		a.availability[i] = got
		available -= got

		if depleted {
			break
		}
	}
}

func (a *FixedPriority) GetAllocatedRate(id int, registeredRate float64, priority int) float64 {
	priority = a.clampPriority(priority)

	var allocated float64
	if a.registered < a.available {
		allocated = registeredRate
	} else if a.registerMap[priority] > 0 {
		allocated = registeredRate * a.availability[priority] / a.registerMap[priority]
	}

	a.allocated += allocated
	return allocated
}
