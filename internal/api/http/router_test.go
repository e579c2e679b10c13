package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"widget-lifecycle/internal/core/ports"
	"widget-lifecycle/internal/core/service"
	"widget-lifecycle/internal/leak"
)

// MockDiagnostics is a mock implementation of Diagnostics
type MockDiagnostics struct {
	mock.Mock
}

func (m *MockDiagnostics) Scopes() []service.ScopeInfo {
	return m.Called().Get(0).([]service.ScopeInfo)
}

func (m *MockDiagnostics) Memory() (service.MemoryStats, error) {
	args := m.Called()
	return args.Get(0).(service.MemoryStats), args.Error(1)
}

func (m *MockDiagnostics) ForceSweep() int {
	return m.Called().Int(0)
}

type staticLeaks []leak.Report

func (s staticLeaks) Reports() []leak.Report { return s }
func (s staticLeaks) Summary() leak.Summary {
	return leak.Summary{Total: len(s)}
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func TestHealth(t *testing.T) {
	h := NewRouter(new(MockDiagnostics), nil, nil)

	rec := do(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	SetDraining(true)
	defer SetDraining(false)
	rec = do(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestScopes(t *testing.T) {
	diag := new(MockDiagnostics)
	diag.On("Scopes").Return([]service.ScopeInfo{{ID: "a", Name: "quiz", ActiveTimers: 2}})
	h := NewRouter(diag, nil, nil)

	rec := do(t, h, http.MethodGet, "/debug/scopes")
	require.Equal(t, http.StatusOK, rec.Code)
	scopes := decode[[]service.ScopeInfo](t, rec)
	require.Len(t, scopes, 1)
	assert.Equal(t, "quiz", scopes[0].Name)
	assert.Equal(t, 2, scopes[0].ActiveTimers)
	diag.AssertExpectations(t)
}

func TestLeaks(t *testing.T) {
	h := NewRouter(new(MockDiagnostics), nil, nil)
	rec := do(t, h, http.MethodGet, "/debug/leaks")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h = NewRouter(new(MockDiagnostics), staticLeaks{{
		ScopeID:   "s",
		Category:  leak.Timers,
		Severity:  leak.Medium,
		Count:     1,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}}, nil)
	rec = do(t, h, http.MethodGet, "/debug/leaks")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[leaksResponse](t, rec)
	assert.Equal(t, 1, got.Summary.Total)
	require.Len(t, got.Reports, 1)
	assert.Equal(t, leak.Timers, got.Reports[0].Category)
}

func TestMemory(t *testing.T) {
	diag := new(MockDiagnostics)
	diag.On("Memory").Return(service.MemoryStats{HeapUsed: 10, HeapLimit: 100, Percentage: 10}, nil).Once()
	diag.On("Memory").Return(service.MemoryStats{}, errors.Wrap(ports.ErrUnavailable, "no sampler"))
	h := NewRouter(diag, nil, nil)

	rec := do(t, h, http.MethodGet, "/debug/memory")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10.0, decode[service.MemoryStats](t, rec).Percentage)

	rec = do(t, h, http.MethodGet, "/debug/memory")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeUnavailable)
}

func TestForceGC(t *testing.T) {
	diag := new(MockDiagnostics)
	diag.On("ForceSweep").Return(3)
	h := NewRouter(diag, nil, nil)

	rec := do(t, h, http.MethodGet, "/debug/gc")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, h, http.MethodPost, "/debug/gc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[gcResponse](t, rec).Removed)
	diag.AssertNumberOfCalls(t, "ForceSweep", 1)
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewRouter(new(MockDiagnostics), nil, nil)
	rec := do(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lifecycle_live_scopes")
}

func TestRecoverMiddleware(t *testing.T) {
	diag := new(MockDiagnostics)
	diag.On("Scopes").Run(func(mock.Arguments) { panic("boom") }).Return([]service.ScopeInfo(nil))
	h := NewRouter(diag, nil, nil)

	rec := do(t, h, http.MethodGet, "/debug/scopes")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeInternalError)
}
