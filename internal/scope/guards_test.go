package scope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"widget-lifecycle/internal/host"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestScope(t *testing.T) (*Scope, *host.Manual) {
	t.Helper()
	m := host.NewManual(epoch)
	return New(host.NewSlot(m), WithName(t.Name())), m
}

func TestTimerGuard_TeardownCancelsTimers(t *testing.T) {
	s, m := newTestScope(t)

	fired := 0
	s.Timers.SetTimeout(time.Second, func() { fired++ })
	s.Timers.SetInterval(100*time.Millisecond, func() { fired++ })
	require.Equal(t, 2, s.Timers.ActiveTimers())
	require.Equal(t, 2, s.Pending())

	s.Teardown()
	m.Advance(10 * time.Second)

	assert.Zero(t, fired)
	assert.Zero(t, s.Timers.ActiveTimers())
	assert.Zero(t, m.Pending())
}

func TestTimerGuard_FiredTimeoutDropsItsCleanup(t *testing.T) {
	s, m := newTestScope(t)

	fired := 0
	s.Timers.SetTimeout(time.Second, func() { fired++ })
	m.Advance(time.Second)

	assert.Equal(t, 1, fired)
	assert.Zero(t, s.Timers.ActiveTimers())
	assert.Zero(t, s.Pending())
}

func TestTimerGuard_ClearInterval(t *testing.T) {
	s, m := newTestScope(t)

	ticks := 0
	id := s.Timers.SetInterval(time.Second, func() { ticks++ })
	m.Advance(3 * time.Second)
	assert.Equal(t, 3, ticks)

	assert.True(t, s.Timers.ClearInterval(id))
	assert.False(t, s.Timers.ClearInterval(id))
	assert.Zero(t, s.Pending())

	m.Advance(3 * time.Second)
	assert.Equal(t, 3, ticks)
}

func TestTimerGuard_SetAfterTeardownIsCancelled(t *testing.T) {
	s, m := newTestScope(t)
	s.Teardown()

	fired := false
	s.Timers.SetTimeout(time.Millisecond, func() { fired = true })
	m.Advance(time.Second)

	assert.False(t, fired)
	assert.Zero(t, s.Timers.ActiveTimers())
}

func TestEventGuard_TeardownRemovesListeners(t *testing.T) {
	s, m := newTestScope(t)
	target := &struct{ name string }{"window"}

	got := 0
	s.Events.AddEventListener(target, "resize", func(any) { got++ })
	s.Events.AddEventListener(target, "resize", func(any) { got++ })
	assert.Equal(t, 2, s.Events.ListenersFor(target, "resize"))

	assert.Equal(t, 2, m.Dispatch(target, "resize", nil))
	assert.Equal(t, 2, got)

	s.Teardown()
	assert.Zero(t, s.Events.ActiveListeners())
	assert.Zero(t, m.Listeners())
	assert.Zero(t, m.Dispatch(target, "resize", nil))
}

func TestEventGuard_RemoveOneRegistration(t *testing.T) {
	s, m := newTestScope(t)
	target := "document"

	id := s.Events.AddEventListener(target, "keydown", func(any) {})
	s.Events.AddEventListener(target, "keydown", func(any) {})

	assert.True(t, s.Events.RemoveEventListener(id))
	assert.False(t, s.Events.RemoveEventListener(id))
	assert.Equal(t, 1, s.Events.ActiveListeners())
	assert.Equal(t, 1, m.Listeners())
	assert.Equal(t, 1, s.Pending())
}
