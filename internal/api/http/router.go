package http

import (
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"widget-lifecycle/internal/core/service"
	"widget-lifecycle/internal/leak"
	"widget-lifecycle/internal/logging"
)

// Diagnostics is the lifecycle state exposed over HTTP.
type Diagnostics interface {
	Scopes() []service.ScopeInfo
	Memory() (service.MemoryStats, error)
	ForceSweep() int
}

// LeakSource provides leak reports.
type LeakSource interface {
	Reports() []leak.Report
	Summary() leak.Summary
}

var draining atomic.Bool

// SetDraining makes /healthz report 503 while the server shuts down.
func SetDraining(v bool) {
	draining.Store(v)
}

type handler struct {
	diag   Diagnostics
	leaks  LeakSource
	logger logrus.FieldLogger
}

// NewRouter builds the diagnostics router. leaks may be nil when leak
// detection is off.
func NewRouter(diag Diagnostics, leaks LeakSource, logger logrus.FieldLogger) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	h := &handler{diag: diag, leaks: leaks, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", healthHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/debug", func(r chi.Router) {
		r.Method(http.MethodGet, "/scopes", HandlerFunc(h.scopes))
		r.Method(http.MethodGet, "/leaks", HandlerFunc(h.leakReports))
		r.Method(http.MethodGet, "/memory", HandlerFunc(h.memory))
		r.Method(http.MethodPost, "/gc", HandlerFunc(h.forceGC))
	})
	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	if draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) scopes(w http.ResponseWriter, _ *http.Request) error {
	writeSuccess(w, http.StatusOK, h.diag.Scopes())
	return nil
}

type leaksResponse struct {
	Summary leak.Summary  `json:"summary"`
	Reports []leak.Report `json:"reports"`
}

func (h *handler) leakReports(w http.ResponseWriter, _ *http.Request) error {
	if h.leaks == nil {
		return NotFound("leak detection is disabled")
	}
	reports := h.leaks.Reports()
	if reports == nil {
		reports = []leak.Report{}
	}
	writeSuccess(w, http.StatusOK, leaksResponse{Summary: h.leaks.Summary(), Reports: reports})
	return nil
}

func (h *handler) memory(w http.ResponseWriter, _ *http.Request) error {
	st, err := h.diag.Memory()
	if err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, st)
	return nil
}

type gcResponse struct {
	Removed int `json:"removed"`
}

func (h *handler) forceGC(w http.ResponseWriter, r *http.Request) error {
	n := h.diag.ForceSweep()
	h.logger.WithFields(logrus.Fields{
		"removed":    n,
		"request_id": middleware.GetReqID(r.Context()),
	}).Info("force gc requested")
	writeSuccess(w, http.StatusOK, gcResponse{Removed: n})
	return nil
}

func recoverMiddleware(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithField("panic", rec).Error("handler panicked")
					writeError(w, Internal("panic recovered"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
