package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"widget-lifecycle/internal/core/service"
	"widget-lifecycle/internal/store"
)

// runDemo mounts a widget every interval and unmounts it one interval later,
// so the diagnostics endpoints have something to show.
func runDemo(ctx context.Context, svc *service.Lifecycle, p store.GCPolicy, interval time.Duration, logger logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 0; ; n++ {
		s := svc.CreateScope(fmt.Sprintf("demo-%d", n))
		state := service.CreateStateStore[string, int](svc, s, p)
		cache := service.CreateManagedCache[string, string](svc, s, 8, interval)

		ticks := 0
		s.Timers.SetInterval(max(interval/10, time.Millisecond), func() {
			ticks++
			state.Set(fmt.Sprintf("tick-%d", ticks), ticks, store.Priority(ticks%3))
			cache.Set("last", time.Now().Format(time.RFC3339Nano))
		})
		s.Events.AddEventListener(svc, "resize", func(any) {})
		for _, info := range svc.Scopes() {
			if info.ID == s.ID() {
				logger.WithFields(logFields(info)).Debug("demo widget mounted")
			}
		}

		select {
		case <-ctx.Done():
			s.Teardown()
			return
		case <-ticker.C:
			s.Teardown()
		}
	}
}

func logFields(s service.ScopeInfo) logrus.Fields {
	return logrus.Fields{"scope": s.ID, "timers": s.ActiveTimers, "listeners": s.ActiveListeners}
}
