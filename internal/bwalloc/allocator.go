// Package bwalloc implements the per-link bandwidth allocation disciplines
// of spec.md §4.A: fair share, max-min fair share, fixed priority levels,
// and a per-registration priority queue.
//
// Each variant is a tagged implementation of the Allocator interface
// (Design Notes §9: "tagged variant with a common operation trait, not
// inheritance"), mirroring the teacher's PluginRegistry pattern
// (services/orchestrator/plugins.go) rather than a class hierarchy.
package bwalloc

import "fmt"

// Allocator is the contract every bandwidth-allocation policy satisfies
// for a single link of fixed capacity during one simulation step.
type Allocator interface {
	// Reset clears all per-step registration and allocation state.
	Reset()
	// RegisterRate declares that id wants to send at rate with priority
	// this step. May be called more than once per id within a step by
	// composite policies; each variant defines whether repeats accumulate.
	RegisterRate(id int, rate float64, priority int)
	// ComputeAllocations runs the policy over everything registered since
	// the last Reset.
	ComputeAllocations()
	// GetAllocatedRate returns what id was awarded. registeredRate and
	// priority are echoed back in case the variant does not retain its
	// own copy (mirrors the C++ signature's optional re-supplied args).
	GetAllocatedRate(id int, registeredRate float64, priority int) float64
	// RegisterUtilization records how much of the allocation an id
	// actually used, for reporting.
	RegisterUtilization(utilization float64)
	// IsCongested reports whether total registered demand exceeded
	// capacity this step.
	IsCongested() bool
	// Totals exposes the running counters used to check the invariants
	// of spec.md §3 (allocated ≤ capacity, utilized ≤ allocated).
	Totals() Totals
}

// Totals mirrors BandwidthAllocator's public counters in the original
// implementation.
type Totals struct {
	Available  float64
	Registered float64
	Allocated  float64
	Utilized   float64
}

// base implements the shared bookkeeping every variant embeds, the way
// BandwidthAllocator::reset/register_utilization/is_congested is shared
// by every C++ subclass.
type base struct {
	available  float64
	registered float64
	allocated  float64
	utilized   float64
}

func (b *base) reset() {
	b.registered = 0
	b.allocated = 0
	b.utilized = 0
}

func (b *base) RegisterUtilization(u float64) { b.utilized += u }

func (b *base) IsCongested() bool { return b.registered > b.available }

func (b *base) Totals() Totals {
	return Totals{
		Available:  b.available,
		Registered: b.registered,
		Allocated:  b.allocated,
		Utilized:   b.utilized,
	}
}

// Kind names the allocator policies selectable via configuration.
type Kind string

const (
	KindFairShare     Kind = "fairshare"
	KindMaxMin        Kind = "maxmin"
	KindFixedPriority Kind = "fixedpriority"
	KindPriorityQueue Kind = "priorityqueue"
)

// Options configures the variants that need more than just capacity.
type Options struct {
	PriorityLevels          int
	PunishOversubscribed    bool
	PunishOversubscribedMin float64
}

// New constructs the allocator named by kind for a link of the given
// capacity. An unknown kind is a configuration error (spec.md §7).
func New(kind Kind, capacity float64, opts Options) (Allocator, error) {
	switch kind {
	case KindFairShare:
		return NewFairShare(capacity), nil
	case KindMaxMin:
		return NewMaxMin(capacity, opts.PunishOversubscribed, opts.PunishOversubscribedMin), nil
	case KindFixedPriority:
		levels := opts.PriorityLevels
		if levels <= 0 {
			levels = 1
		}
		return NewFixedPriority(capacity, levels), nil
	case KindPriorityQueue:
		return NewPriorityQueue(capacity), nil
	default:
		return nil, fmt.Errorf("bwalloc: unknown allocator kind %q", kind)
	}
}
