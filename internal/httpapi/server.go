package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aegisd/internal/events"
	"aegisd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Models() []types.Model
	Services() []types.ServiceStatus
	Service(id string) (types.ServiceStatus, error)
	RegisterService(desc types.ServiceDescriptor) error
	DeregisterService(id string) error
	ResetService(id string) error
	Route(ctx context.Context, req types.RouteRequest) (*types.RouteResponse, error)
	Status() types.StatusResponse
	Activity(ctx context.Context, limit int) []events.Event
	Ready() bool
}

// NewMux builds the router. hub may be nil to disable the websocket stream.
func NewMux(svc Service, hub *Hub) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)

	r.Get("/models", handleModels(svc))
	r.Get("/status", handleStatus(svc))
	r.Get("/activity", handleActivity(svc))
	r.Post("/route", handleRoute(svc))

	r.Route("/services", func(r chi.Router) {
		r.Get("/", handleListServices(svc))
		r.Post("/", handleRegisterService(svc))
		r.Get("/{id}", handleGetService(svc))
		r.Delete("/{id}", handleDeregisterService(svc))
		r.Post("/{id}/reset", handleResetService(svc))
	})

	if hub != nil {
		r.Get("/events", hub.ServeHTTP)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("booting"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// handleModels godoc
// @Summary List inference backends
// @Produce json
// @Success 200 {object} types.ModelsResponse
// @Router /models [get]
func handleModels(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.Models()})
	}
}

// handleStatus godoc
// @Summary Full supervisor status
// @Produce json
// @Success 200 {object} types.StatusResponse
// @Router /status [get]
func handleStatus(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

// handleActivity godoc
// @Summary Recent supervisor events, newest first
// @Produce json
// @Param limit query int false "maximum entries"
// @Success 200 {array} events.Event
// @Router /activity [get]
func handleActivity(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		out := svc.Activity(r.Context(), limit)
		if out == nil {
			out = []events.Event{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleRoute godoc
// @Summary Route a request to the best available backend
// @Accept json
// @Produce json
// @Param request body types.RouteRequest true "routing request"
// @Success 200 {object} types.RouteResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 404 {object} types.ErrorResponse
// @Failure 502 {object} types.ErrorResponse
// @Failure 504 {object} types.ErrorResponse
// @Router /route [post]
func handleRoute(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeJSON[types.RouteRequest](w, r)
		if !ok {
			return
		}
		if strings.TrimSpace(req.Capability) == "" {
			writeJSONError(w, http.StatusBadRequest, "capability is required")
			return
		}

		start := time.Now()
		// Join server base context with request context so shutdown cancels
		// in-flight work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		resp, err := svc.Route(ctx, req)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := routeErrorStatus(err)
			writeJSONError(w, status, err.Error())
			logRequest(r, "route", status, time.Since(start), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		logRequest(r, "route", http.StatusOK, time.Since(start), nil)
	}
}

// handleListServices godoc
// @Summary List registered services with health
// @Produce json
// @Success 200 {object} types.ServicesResponse
// @Router /services [get]
func handleListServices(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ServicesResponse{Services: svc.Services()})
	}
}

// handleRegisterService godoc
// @Summary Register a service with the supervisor
// @Accept json
// @Produce json
// @Param descriptor body types.ServiceDescriptor true "service descriptor"
// @Success 201 {object} types.ServiceStatus
// @Failure 400 {object} types.ErrorResponse
// @Failure 409 {object} types.ErrorResponse
// @Router /services [post]
func handleRegisterService(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		desc, ok := decodeJSON[types.ServiceDescriptor](w, r)
		if !ok {
			return
		}
		if err := svc.RegisterService(desc); err != nil {
			writeJSONError(w, serviceErrorStatus(err), err.Error())
			return
		}
		status, err := svc.Service(desc.ID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, status)
	}
}

// handleGetService godoc
// @Summary One service's descriptor and health
// @Produce json
// @Param id path string true "service id"
// @Success 200 {object} types.ServiceStatus
// @Failure 404 {object} types.ErrorResponse
// @Router /services/{id} [get]
func handleGetService(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := svc.Service(chi.URLParam(r, "id"))
		if err != nil {
			writeJSONError(w, serviceErrorStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// handleDeregisterService godoc
// @Summary Remove a service from supervision
// @Param id path string true "service id"
// @Success 204
// @Failure 404 {object} types.ErrorResponse
// @Router /services/{id} [delete]
func handleDeregisterService(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeregisterService(chi.URLParam(r, "id")); err != nil {
			writeJSONError(w, serviceErrorStatus(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleResetService godoc
// @Summary Clear a failed service's restart budget
// @Param id path string true "service id"
// @Success 204
// @Failure 404 {object} types.ErrorResponse
// @Router /services/{id}/reset [post]
func handleResetService(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ResetService(chi.URLParam(r, "id")); err != nil {
			writeJSONError(w, serviceErrorStatus(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeJSON enforces the content type and body limit, then decodes into T.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return v, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return v, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && status == http.StatusOK {
		// Headers are gone; nothing sensible left to do.
		return
	}
}
