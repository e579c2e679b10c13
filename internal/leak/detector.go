// Package leak detects resources a scope leaves behind. A Window instruments
// the host slot for the lifetime of one scope and reports what is still
// outstanding when it closes.
package leak

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"widget-lifecycle/internal/core/ports"
	"widget-lifecycle/internal/logging"
	"widget-lifecycle/internal/observability"
)

// Options configures a Detector. Zero fields take the defaults.
type Options struct {
	// Classes to watch. Empty watches listeners, timers, heap growth and
	// object references.
	Classes []Category

	HighSeverityCount  int
	HeapThreshold      uint64
	HeapSampleInterval time.Duration
	ActivationCeiling  int

	// Sampler provides heap usage. Nil disables the heap class.
	Sampler ports.HeapSampler
	Logger  logrus.FieldLogger
	// OnReport is called synchronously for every emitted report.
	OnReport func(Report)
}

const (
	DefaultHighSeverityCount  = 5
	DefaultHeapThreshold      = 10 << 20
	DefaultHeapSampleInterval = 5 * time.Second
	DefaultActivationCeiling  = 100
)

func (o Options) withDefaults() Options {
	if len(o.Classes) == 0 {
		o.Classes = []Category{EventListeners, Timers, HeapGrowth, ObjectReferences}
	}
	if o.HighSeverityCount <= 0 {
		o.HighSeverityCount = DefaultHighSeverityCount
	}
	if o.HeapThreshold == 0 {
		o.HeapThreshold = DefaultHeapThreshold
	}
	if o.HeapSampleInterval <= 0 {
		o.HeapSampleInterval = DefaultHeapSampleInterval
	}
	if o.ActivationCeiling <= 0 {
		o.ActivationCeiling = DefaultActivationCeiling
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	return o
}

// Detector collects the reports of every Window it opens.
type Detector struct {
	opts    Options
	watched map[Category]bool

	mu          sync.Mutex
	reports     []Report
	unavailable map[Category]bool
}

// New creates a Detector.
func New(opts Options) *Detector {
	opts = opts.withDefaults()
	d := &Detector{
		opts:        opts,
		watched:     make(map[Category]bool),
		unavailable: make(map[Category]bool),
	}
	for _, c := range opts.Classes {
		d.watched[c] = true
	}
	return d
}

// Watches reports whether c is enabled and supported by the host.
func (d *Detector) Watches(c Category) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.watched[c] && !d.unavailable[c]
}

// disable turns class c off for good. The first call logs it.
func (d *Detector) disable(c Category, cause error) {
	d.mu.Lock()
	first := !d.unavailable[c]
	d.unavailable[c] = true
	d.mu.Unlock()
	if first {
		d.opts.Logger.WithError(cause).WithField("category", c).
			Info(ports.ErrInstrumentationUnavailable.Error())
	}
}

// Unavailable lists the classes disabled because the host lacks support.
func (d *Detector) Unavailable() []Category {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Category, 0, len(d.unavailable))
	for _, c := range d.opts.Classes {
		if d.unavailable[c] {
			out = append(out, c)
		}
	}
	return out
}

func (d *Detector) emit(r Report) {
	d.mu.Lock()
	d.reports = append(d.reports, r)
	d.mu.Unlock()

	observability.LeakReportsTotal.WithLabelValues(string(r.Category), string(r.Severity)).Inc()
	d.opts.Logger.WithFields(logrus.Fields{
		"scope":    r.ScopeID,
		"category": r.Category,
		"severity": r.Severity,
		"count":    r.Count,
	}).Warn(r.Description)
	if d.opts.OnReport != nil {
		d.opts.OnReport(r)
	}
}

// Reports returns a copy of every report emitted so far, oldest first.
func (d *Detector) Reports() []Report {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Report(nil), d.reports...)
}

// Summary aggregates Reports.
func (d *Detector) Summary() Summary {
	return summarize(d.Reports())
}

// ClearReports drops every collected report.
func (d *Detector) ClearReports() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reports = nil
}

// HasLeaks reports whether any report has been emitted since the last
// ClearReports.
func (d *Detector) HasLeaks() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reports) > 0
}
