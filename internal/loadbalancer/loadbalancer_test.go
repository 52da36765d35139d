package loadbalancer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faridzandi/psim-go/internal/protocol"
)

type fakeLink struct {
	id   int
	load float64
}

func (f *fakeLink) ID() int                               { return f.id }
func (f *fakeLink) GetLoad(_ protocol.LoadMetric) float64 { return f.load }

func wireUniform(t *testing.T, b Balancer, itemCount int, loads []float64) {
	t.Helper()
	for c := 0; c < itemCount; c++ {
		b.RegisterLink(0, c, 1, &fakeLink{id: c*2 + 1, load: loads[c] / 2})
		b.RegisterLink(0, c, 2, &fakeLink{id: c*2 + 2, load: loads[c] / 2})
	}
}

func TestRoundRobinCycles(t *testing.T) {
	b, err := New(SchemeRoundRobin, 3, 0, protocol.LoadMetricUtilization, 1)
	require.NoError(t, err)

	got := []int{
		b.GetUpperItem(0, 0, &protocol.Flow{}, 0),
		b.GetUpperItem(0, 0, &protocol.Flow{}, 0),
		b.GetUpperItem(0, 0, &protocol.Flow{}, 0),
		b.GetUpperItem(0, 0, &protocol.Flow{}, 0),
	}
	assert.Equal(t, []int{0, 1, 2, 0}, got)
}

func TestLeastLoadedPicksArgmin(t *testing.T) {
	b, err := New(SchemeLeastLoaded, 4, 0, protocol.LoadMetricUtilization, 1)
	require.NoError(t, err)
	wireUniform(t, b, 4, []float64{10, 2, 8, 5})

	got := b.GetUpperItem(0, 0, &protocol.Flow{}, 0)
	assert.Equal(t, 1, got)
}

func TestRandomStaysWithinRange(t *testing.T) {
	b, err := New(SchemeRandom, 5, 0, protocol.LoadMetricUtilization, 42)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		item := b.GetUpperItem(0, 0, &protocol.Flow{}, 0)
		assert.GreaterOrEqual(t, item, 0)
		assert.Less(t, item, 5)
	}
}

func TestPowerOfKPicksAmongSampledAndPrevBest(t *testing.T) {
	b, err := New(SchemePowerOfK, 4, 2, protocol.LoadMetricUtilization, 7)
	require.NoError(t, err)
	wireUniform(t, b, 4, []float64{100, 100, 0, 100})

	var sawZero bool
	for i := 0; i < 50; i++ {
		if b.GetUpperItem(0, 0, &protocol.Flow{}, 0) == 2 {
			sawZero = true
		}
	}
	assert.True(t, sawZero, "expected power-of-k to eventually sample the zero-load item")
}

func TestRobinHoodPrefersNonHardWorking(t *testing.T) {
	b, err := New(SchemeRobinHood, 2, 0, protocol.LoadMetricUtilization, 3)
	require.NoError(t, err)
	wireUniform(t, b, 2, []float64{1000, 0})

	got := b.GetUpperItem(0, 0, &protocol.Flow{}, 0)
	assert.Equal(t, 1, got)
}

func TestFutureLoadFallsBackToRoundRobinOnFirstRun(t *testing.T) {
	b := NewFutureLoad(3, protocol.LoadMetricUtilization, 1, firstRunHistory{}, 10)
	got := []int{
		b.GetUpperItem(0, 0, &protocol.Flow{Base: protocol.Base{ID: 1}}, 0),
		b.GetUpperItem(0, 0, &protocol.Flow{Base: protocol.Base{ID: 2}}, 0),
	}
	assert.Equal(t, []int{0, 1}, got)
}

type firstRunHistory struct{}

func (firstRunHistory) IsFirstRun() bool                         { return true }
func (firstRunHistory) LastDecision(int) (int, bool)              { return 0, false }
func (firstRunHistory) SaveDecision(int, int)                     {}
func (firstRunHistory) LastFlowFCT(int) (float64, bool)           { return 0, false }
func (firstRunHistory) LastFlowStart(int) (float64, bool)         { return 0, false }
func (firstRunHistory) LastFlowEnd(int) (float64, bool)           { return 0, false }
func (firstRunHistory) MaxTimeStep() int                          { return 0 }
func (firstRunHistory) LinkLoadAt(int, int) float64                { return 0 }
func (firstRunHistory) FlowLoadAt(int, int) (float64, bool)        { return 0, false }
func (firstRunHistory) AdjustLinkLoad(int, int, float64)           {}
