package http

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"widget-lifecycle/internal/core/ports"
)

// AppError is an error rendered to the client.
type AppError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeNotFound      = "NOT_FOUND"
	CodeUnavailable   = "UNAVAILABLE"
	CodeInternalError = "INTERNAL_ERROR"
)

func (e *AppError) Error() string { return e.Code + ": " + e.Message }

func NotFound(msg string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: msg}
}

func Unavailable(msg string) *AppError {
	return &AppError{Status: http.StatusServiceUnavailable, Code: CodeUnavailable, Message: msg}
}

func Internal(msg string) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Code: CodeInternalError, Message: msg}
}

// FromError maps an error to the AppError sent to the client.
func FromError(err error) *AppError {
	var app *AppError
	if errors.As(err, &app) {
		return app
	}
	if ports.IsKind(err, ports.ErrUnavailable) {
		return Unavailable(err.Error())
	}
	return Internal("unexpected error")
}

type successEnvelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Err *AppError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successEnvelope{Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	app := FromError(err)
	writeJSON(w, app.Status, errorEnvelope{Err: app})
}

// HandlerFunc is an HTTP handler that reports failures by returning them.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

func (h HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h(w, r); err != nil {
		writeError(w, err)
	}
}
