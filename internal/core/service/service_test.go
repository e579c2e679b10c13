package service

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"widget-lifecycle/internal/core/ports"
	"widget-lifecycle/internal/host"
	"widget-lifecycle/internal/leak"
	"widget-lifecycle/internal/store"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// MockSampler is a mock implementation of ports.HeapSampler
type MockSampler struct {
	mock.Mock
}

func (m *MockSampler) SampleHeap() (uint64, error) {
	args := m.Called()
	return args.Get(0).(uint64), args.Error(1)
}

func newLifecycle(t *testing.T, detector *leak.Detector) (*Lifecycle, *host.Manual) {
	t.Helper()
	m := host.NewManual(epoch)
	return New(Options{Slot: host.NewSlot(m), Detector: detector}), m
}

func TestLifecycle_ScopeTeardownReleasesEverything(t *testing.T) {
	l, m := newLifecycle(t, nil)
	s := l.CreateScope("quiz")

	fired := false
	s.Timers.SetInterval(time.Second, func() { fired = true })
	s.Events.AddEventListener("window", "resize", func(any) {})
	cache := CreateManagedCache[string, int](l, s, 4, time.Minute)
	state := CreateStateStore[string, string](l, s, store.GCPolicy{MaxEntries: 4, TTL: time.Minute, SweepInterval: time.Second})
	cache.Set("a", 1)
	state.Set("b", "x", store.High)

	require.Len(t, l.Scopes(), 1)
	info := l.Scopes()[0]
	assert.Equal(t, "quiz", info.Name)
	assert.Equal(t, 1, info.ActiveTimers)
	assert.Equal(t, 1, info.ActiveListeners)
	assert.Equal(t, 2, info.Stores)

	s.Teardown()
	m.Advance(time.Hour)

	assert.False(t, fired)
	assert.Zero(t, m.Pending())
	assert.Zero(t, m.Listeners())
	assert.Zero(t, cache.Len())
	assert.Zero(t, state.Len())
	assert.Empty(t, l.Scopes())
}

func TestLifecycle_DetectorSeesOnlyRawLeaks(t *testing.T) {
	d := leak.New(leak.Options{Classes: []leak.Category{leak.Timers, leak.EventListeners}})
	l, m := newLifecycle(t, d)
	s := l.CreateScope("chart")

	// guarded resources are released before the window closes
	s.Timers.SetTimeout(time.Minute, func() {})
	s.Events.AddEventListener("doc", "keydown", func(any) {})
	CreateStateStore[int, int](l, s, store.GCPolicy{MaxEntries: 2, TTL: time.Second, SweepInterval: time.Second})

	// a registration bypassing the guards leaks
	s.Host().RegisterEventHandler("doc", "scroll", func(any) {})

	s.Teardown()

	reports := d.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, leak.EventListeners, reports[0].Category)
	assert.Equal(t, s.ID(), reports[0].ScopeID)
	assert.Equal(t, ports.Host(m), l.Slot().Current())
}

func TestLifecycle_OverlappingScopesReportNothing(t *testing.T) {
	sampler := host.SamplerFunc(func() (uint64, error) { return 1 << 20, nil })
	d := leak.New(leak.Options{Sampler: sampler, HeapSampleInterval: time.Second})
	l, m := newLifecycle(t, d)

	a := l.CreateScope("a")
	b := l.CreateScope("b")
	CreateStateStore[string, int](l, b, store.GCPolicy{MaxEntries: 2, TTL: time.Minute, SweepInterval: time.Second})
	m.Advance(2 * time.Second)

	a.Teardown()
	assert.Empty(t, d.Reports())
	b.Teardown()
	assert.Empty(t, d.Reports())
	assert.Zero(t, m.Pending())
}

func TestLifecycle_FlushKeepsScopeWatched(t *testing.T) {
	d := leak.New(leak.Options{Classes: []leak.Category{leak.EventListeners}, ActivationCeiling: 1})
	l, m := newLifecycle(t, d)
	s := l.CreateScope("panel")
	st := CreateStateStore[string, int](l, s, store.GCPolicy{MaxEntries: 2, TTL: time.Minute, SweepInterval: time.Second})
	st.Set("k", 1, store.Medium)

	s.Flush()
	assert.Equal(t, 1, m.Pending(), "the periodic sweep survives a flush")
	assert.Equal(t, 1, st.Len())

	s.Host().RegisterEventHandler("doc", "scroll", func(any) {})
	l.Activate(s)
	l.Activate(s)
	s.Teardown()

	reports := d.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, leak.ExcessiveActivity, reports[0].Category)
	assert.Equal(t, leak.EventListeners, reports[1].Category)
	assert.Zero(t, st.Len())
	assert.Zero(t, m.Pending())
}

func TestLifecycle_Activate(t *testing.T) {
	d := leak.New(leak.Options{ActivationCeiling: 2})
	l, _ := newLifecycle(t, d)
	s := l.CreateScope("toggle")

	for i := 0; i < 3; i++ {
		l.Activate(s)
	}
	assert.Equal(t, 3, l.Scopes()[0].Activations)
	s.Teardown()

	require.Len(t, d.Reports(), 1)
	assert.Equal(t, leak.ExcessiveActivity, d.Reports()[0].Category)
}

func TestLifecycle_ForceSweep(t *testing.T) {
	l, m := newLifecycle(t, nil)
	s := l.CreateScope("sweep")
	cache := CreateManagedCache[string, int](l, s, 10, time.Second)
	inter := CreateInteractionStore[string](l, s)

	cache.Set("a", 1)
	cache.Set("b", 2)
	inter.Set("w", "k", "v", store.Low)
	m.Advance(2 * time.Second)

	assert.Equal(t, 2, l.ForceSweep())
	assert.Zero(t, cache.Len())
	assert.Equal(t, 1, inter.Stats().EntryCount)
	l.Shutdown()
	assert.Empty(t, l.Scopes())
}

func TestLifecycle_CreateLeakDetectorUsesSampler(t *testing.T) {
	sampler := new(MockSampler)
	sampler.On("SampleHeap").Return(uint64(1<<20), nil)

	m := host.NewManual(epoch)
	l := New(Options{Slot: host.NewSlot(m), Sampler: sampler})
	d := l.CreateLeakDetector(leak.Options{Classes: []leak.Category{leak.HeapGrowth}, HeapSampleInterval: time.Second})

	w := d.Watch(l.Slot(), "heap")
	m.Advance(3 * time.Second)
	w.Close()

	sampler.AssertNumberOfCalls(t, "SampleHeap", 4)
	assert.False(t, d.HasLeaks())
}

func TestLifecycle_Memory(t *testing.T) {
	sampler := new(MockSampler)
	sampler.On("SampleHeap").Return(uint64(4096), nil).Once()
	l := New(Options{Slot: host.NewSlot(host.NewManual(epoch)), Sampler: sampler})

	st, err := l.Memory()
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), st.HeapUsed)
	assert.NotZero(t, st.HeapLimit)
	assert.Greater(t, st.Percentage, 0.0)

	sampler.On("SampleHeap").Return(uint64(0), errors.Wrap(ports.ErrUnavailable, "test"))
	_, err = l.Memory()
	assert.True(t, ports.IsKind(err, ports.ErrUnavailable))
	sampler.AssertExpectations(t)
}
