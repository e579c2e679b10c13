package scope

import (
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"widget-lifecycle/internal/core/ports"
	"widget-lifecycle/internal/host"
	"widget-lifecycle/internal/logging"
	"widget-lifecycle/internal/observability"
)

// Scope is the lifetime of one mounted widget. Everything created through it
// is released by Teardown.
type Scope struct {
	id        string
	name      string
	createdAt time.Time
	slot      *host.Slot
	logger    logrus.FieldLogger

	registry *Registry
	final    *Registry
	Timers   *TimerGuard
	Events   *EventGuard

	teardownOnce sync.Once
	onTeardown   []func(*Scope)
}

// Option configures a Scope.
type Option func(*options)

type options struct {
	id         string
	name       string
	logger     logrus.FieldLogger
	onError    func(error)
	onTeardown []func(*Scope)
}

// WithID overrides the generated scope ID.
func WithID(id string) Option { return func(o *options) { o.id = id } }

// WithName labels the scope in logs and diagnostics.
func WithName(name string) Option { return func(o *options) { o.name = name } }

// WithLogger sets the scope logger.
func WithLogger(l logrus.FieldLogger) Option { return func(o *options) { o.logger = l } }

// OnError sets the handler for failing cleanup actions.
func OnError(fn func(error)) Option { return func(o *options) { o.onError = fn } }

// OnTeardown adds a hook called once the scope has been torn down.
func OnTeardown(fn func(*Scope)) Option {
	return func(o *options) { o.onTeardown = append(o.onTeardown, fn) }
}

// New opens a Scope whose timers and listeners go through slot.
func New(slot *host.Slot, opts ...Option) *Scope {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	logger := o.logger.WithFields(logrus.Fields{"scope": o.id, "name": o.name})

	r := NewRegistry(WithRegistryLogger(logger), WithErrorHandler(o.onError))
	s := &Scope{
		id:         o.id,
		name:       o.name,
		createdAt:  slot.Current().Now(),
		slot:       slot,
		logger:     logger,
		registry:   r,
		final:      NewRegistry(WithRegistryLogger(logger), WithErrorHandler(o.onError)),
		Timers:     NewTimerGuard(slot, r),
		Events:     NewEventGuard(slot, r),
		onTeardown: o.onTeardown,
	}
	observability.LiveScopes.Inc()
	logger.Debug("scope opened")
	return s
}

// ID returns the scope's unique identifier.
func (s *Scope) ID() string { return s.id }

// Name returns the label given with WithName.
func (s *Scope) Name() string { return s.name }

// CreatedAt returns the host time at which the scope was opened.
func (s *Scope) CreatedAt() time.Time { return s.createdAt }

// Slot returns the slot the scope's guards register through.
func (s *Scope) Slot() *host.Slot { return s.slot }

// Host returns the currently installed host.
func (s *Scope) Host() ports.Host { return s.slot.Current() }

// Logger returns the scope logger, carrying scope and name fields.
func (s *Scope) Logger() logrus.FieldLogger { return s.logger }

// RegisterCleanup adds a release action. See Registry.Register.
func (s *Scope) RegisterCleanup(a Action) (unregister func()) {
	return s.registry.Register(a)
}

// Defer is RegisterCleanup for actions that cannot fail.
func (s *Scope) Defer(f func()) (unregister func()) {
	return s.registry.Register(Func(f))
}

// Own closes c when the scope is torn down.
func (s *Scope) Own(c io.Closer) (unregister func()) {
	return s.registry.Register(c.Close)
}

// Finally adds an action that runs only at Teardown, after every action
// added with RegisterCleanup. Flush never runs it. Finally actions run
// newest first among themselves.
func (s *Scope) Finally(a Action) (unregister func()) {
	return s.final.Register(a)
}

// Flush runs every pending RegisterCleanup action without ending the scope.
// Actions added with Finally stay pending.
func (s *Scope) Flush() { s.registry.Flush() }

// Pending returns the number of RegisterCleanup actions not yet run.
func (s *Scope) Pending() int { return s.registry.Pending() }

// TornDown reports whether Teardown has run.
func (s *Scope) TornDown() bool { return s.registry.TornDown() }

// Teardown releases everything registered with the scope. Only the first call
// has an effect.
func (s *Scope) Teardown() {
	s.teardownOnce.Do(func() {
		s.registry.Teardown()
		s.final.Teardown()
		observability.LiveScopes.Dec()
		s.logger.Debug("scope torn down")
		for _, fn := range s.onTeardown {
			fn(s)
		}
	})
}
