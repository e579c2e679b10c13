package host

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"widget-lifecycle/internal/core/ports"
)

type countingHost struct {
	ports.Host
	disarmed  bool
	scheduled int
}

func (c *countingHost) ScheduleTimer(d time.Duration, fn func()) ports.TimerID {
	if !c.disarmed {
		c.scheduled++
	}
	return c.Host.ScheduleTimer(d, fn)
}

func (c *countingHost) Disarm() { c.disarmed = true }

func TestSlot_InstallAndRestore(t *testing.T) {
	base := NewManual(epoch)
	s := NewSlot(base)

	var layer *countingHost
	g := s.Install(func(inner ports.Host) Decorator {
		layer = &countingHost{Host: inner}
		return layer
	})
	assert.Same(t, layer, s.Current())

	s.Current().ScheduleTimer(time.Second, func() {})
	assert.Equal(t, 1, layer.scheduled)

	g.Restore()
	g.Restore()
	assert.Equal(t, ports.Host(base), s.Current())
	assert.Equal(t, 0, s.Depth())
}

func TestSlot_OutOfOrderRestoreChains(t *testing.T) {
	base := NewManual(epoch)
	s := NewSlot(base)

	var outer, inner *countingHost
	g1 := s.Install(func(h ports.Host) Decorator {
		inner = &countingHost{Host: h}
		return inner
	})
	g2 := s.Install(func(h ports.Host) Decorator {
		outer = &countingHost{Host: h}
		return outer
	})

	// Removing the lower layer first must not drop the upper one.
	g1.Restore()
	assert.Same(t, outer, s.Current())
	s.Current().ScheduleTimer(time.Second, func() {})
	assert.Equal(t, 1, outer.scheduled)
	assert.Equal(t, 0, inner.scheduled)
	assert.Equal(t, 1, base.Pending())

	g2.Restore()
	assert.Equal(t, ports.Host(base), s.Current())
	assert.Equal(t, 0, s.Depth())
}
