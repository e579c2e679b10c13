package scope

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"widget-lifecycle/internal/core/ports"
	"widget-lifecycle/internal/logging"
	"widget-lifecycle/internal/observability"
)

// Action is a release step registered with a Registry. It runs at most once.
type Action func() error

// Func adapts a function without an error result to an Action.
func Func(f func()) Action {
	return func() error {
		f()
		return nil
	}
}

// Registry is the set of pending release actions owned by one scope.
//
// Flush runs pending actions newest first, the way deferred calls unwind.
// A failing action, whether it returns an error or panics, is logged and
// handed to the error handler; the remaining actions still run.
type Registry struct {
	mu       sync.Mutex
	next     uint64
	pending  map[uint64]Action
	tornDown bool

	logger  logrus.FieldLogger
	onError func(error)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used to report failing actions.
func WithRegistryLogger(l logrus.FieldLogger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithErrorHandler sets a hook called once per failing action.
func WithErrorHandler(fn func(error)) RegistryOption {
	return func(r *Registry) { r.onError = fn }
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{pending: make(map[uint64]Action)}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	return r
}

// Register adds action and returns a function that removes it again without
// running it. If the registry has already been torn down, action runs
// immediately and the returned function is a no-op.
func (r *Registry) Register(action Action) (unregister func()) {
	if action == nil {
		return func() {}
	}
	r.mu.Lock()
	if r.tornDown {
		r.mu.Unlock()
		r.run(0, action)
		return func() {}
	}
	r.next++
	id := r.next
	r.pending[id] = action
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}
}

// Flush runs and clears every pending action. Calling Flush again only runs
// actions registered since the previous call.
func (r *Registry) Flush() {
	r.mu.Lock()
	ids := make([]uint64, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	actions := make([]Action, len(ids))
	for i, id := range ids {
		actions[i] = r.pending[id]
	}
	r.pending = make(map[uint64]Action)
	r.mu.Unlock()

	for i, a := range actions {
		r.run(ids[i], a)
	}
}

// Teardown marks the registry as torn down and flushes it. Actions registered
// afterwards run immediately.
func (r *Registry) Teardown() {
	r.mu.Lock()
	r.tornDown = true
	r.mu.Unlock()
	r.Flush()
}

// TornDown reports whether Teardown has been called.
func (r *Registry) TornDown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tornDown
}

// Pending returns the number of actions waiting for a flush.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Registry) run(id uint64, a Action) {
	err := safeCall(a)
	if err == nil {
		observability.CleanupActionsTotal.WithLabelValues("success").Inc()
		return
	}
	observability.CleanupActionsTotal.WithLabelValues("failure").Inc()
	err = errors.WithMessagef(ports.ErrResourceCleanupFailure, "action %d: %v", id, err)
	r.logger.WithError(err).WithField("action", id).Error("cleanup action failed")
	if r.onError != nil {
		r.onError(err)
	}
}

func safeCall(a Action) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return a()
}
