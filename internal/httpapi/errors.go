package httpapi

import (
	"encoding/json"
	"net/http"

	"aegisd/internal/graph"
	"aegisd/internal/router"
	"aegisd/internal/sched"
	"aegisd/internal/supervisor"
	"aegisd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// routeErrorStatus maps routing failures to HTTP status codes.
func routeErrorStatus(err error) int {
	switch {
	case router.IsNoBackend(err):
		return http.StatusNotFound
	case router.IsBackendUnavailable(err):
		return http.StatusBadGateway
	case sched.IsTimeout(err):
		return http.StatusGatewayTimeout
	case sched.IsAllocation(err):
		IncrementBackpressure("memory")
		return http.StatusTooManyRequests
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// serviceErrorStatus maps registration failures to HTTP status codes.
func serviceErrorStatus(err error) int {
	switch {
	case supervisor.IsNotFound(err):
		return http.StatusNotFound
	case graph.IsCycle(err):
		return http.StatusConflict
	case supervisor.IsInvalid(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
