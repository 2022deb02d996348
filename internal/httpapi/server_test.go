package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aegisd/internal/events"
	"aegisd/internal/graph"
	"aegisd/internal/router"
	"aegisd/internal/sched"
	"aegisd/internal/supervisor"
	"aegisd/pkg/types"
)

// fakeService implements Service with canned responses for handler tests.
type fakeService struct {
	models      []types.Model
	services    []types.ServiceStatus
	routeResp   *types.RouteResponse
	routeErr    error
	registerErr error
	deregErr    error
	resetErr    error
	activity    []events.Event
	ready       bool

	lastRoute    types.RouteRequest
	deregistered []string
}

func (f *fakeService) Models() []types.Model           { return f.models }
func (f *fakeService) Services() []types.ServiceStatus { return f.services }
func (f *fakeService) Service(id string) (types.ServiceStatus, error) {
	for _, s := range f.services {
		if s.Descriptor.ID == id {
			return s, nil
		}
	}
	return types.ServiceStatus{}, supervisor.ErrNotFound(id)
}
func (f *fakeService) RegisterService(desc types.ServiceDescriptor) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.services = append(f.services, types.ServiceStatus{Descriptor: desc})
	return nil
}
func (f *fakeService) DeregisterService(id string) error {
	if f.deregErr != nil {
		return f.deregErr
	}
	f.deregistered = append(f.deregistered, id)
	return nil
}
func (f *fakeService) ResetService(id string) error { return f.resetErr }
func (f *fakeService) Route(ctx context.Context, req types.RouteRequest) (*types.RouteResponse, error) {
	f.lastRoute = req
	if f.routeErr != nil {
		return nil, f.routeErr
	}
	return f.routeResp, nil
}
func (f *fakeService) Status() types.StatusResponse {
	return types.StatusResponse{Services: f.services, Ledger: types.LedgerStatus{BudgetMB: 16384}}
}
func (f *fakeService) Activity(ctx context.Context, limit int) []events.Event {
	if limit > 0 && limit < len(f.activity) {
		return f.activity[:limit]
	}
	return f.activity
}
func (f *fakeService) Ready() bool { return f.ready }

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestModelsEndpoint(t *testing.T) {
	svc := &fakeService{models: []types.Model{{ID: "llama-8b", Locality: types.LocalityLocal}}}
	h := NewMux(svc, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/models", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out types.ModelsResponse
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Models) != 1 || out.Models[0].ID != "llama-8b" {
		t.Fatalf("unexpected models: %+v", out.Models)
	}
}

func TestStatusEndpoint(t *testing.T) {
	h := NewMux(&fakeService{}, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var out types.StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Ledger.BudgetMB != 16384 {
		t.Fatalf("unexpected ledger: %+v", out.Ledger)
	}
}

func TestRouteSuccess(t *testing.T) {
	svc := &fakeService{routeResp: &types.RouteResponse{
		RequestID:   "req-1",
		BackendUsed: "cloud-gpt",
		Cost:        2,
		Result:      "ok",
	}}
	h := NewMux(svc, nil)

	rr := postJSON(t, h, "/route", `{"capability":"chat","payload":"hi","priority":5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out types.RouteResponse
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.BackendUsed != "cloud-gpt" || out.Result != "ok" {
		t.Fatalf("unexpected response: %+v", out)
	}
	if svc.lastRoute.Capability != "chat" || svc.lastRoute.Priority != 5 {
		t.Fatalf("request not decoded: %+v", svc.lastRoute)
	}
}

func TestRouteValidation(t *testing.T) {
	h := NewMux(&fakeService{}, nil)

	// missing capability
	rr := postJSON(t, h, "/route", `{"payload":"hi"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing capability: status=%d", rr.Code)
	}
	// malformed body
	rr = postJSON(t, h, "/route", `{nope`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad JSON: status=%d", rr.Code)
	}
	// wrong content type
	req := httptest.NewRequest(http.MethodPost, "/route", strings.NewReader(`{"capability":"chat"}`))
	req.Header.Set("Content-Type", "text/plain")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("wrong content type: status=%d", rr.Code)
	}
}

func TestRouteErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"no backend", router.ErrNoBackend("chat"), http.StatusNotFound},
		{"exhausted", router.ErrBackendUnavailable("chat", nil), http.StatusBadGateway},
		{"timeout", sched.ErrTimeout("acquire", "llama-8b"), http.StatusGatewayTimeout},
		{"memory", sched.ErrAllocation("llama-8b", 8192, 4096), http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		h := NewMux(&fakeService{routeErr: tc.err}, nil)
		rr := postJSON(t, h, "/route", `{"capability":"chat"}`)
		if rr.Code != tc.want {
			t.Fatalf("%s: status=%d want %d body=%s", tc.name, rr.Code, tc.want, rr.Body.String())
		}
		var out types.ErrorResponse
		if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if out.Code != tc.want || out.Error == "" {
			t.Fatalf("%s: unexpected error payload: %+v", tc.name, out)
		}
	}
}

func TestRegisterService(t *testing.T) {
	h := NewMux(&fakeService{}, nil)
	rr := postJSON(t, h, "/services", `{"id":"vectordb","health_url":"http://127.0.0.1:6333/healthz"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out types.ServiceStatus
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Descriptor.ID != "vectordb" {
		t.Fatalf("unexpected status: %+v", out)
	}
}

func TestRegisterServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", supervisor.ErrInvalid("id required"), http.StatusBadRequest},
		{"cycle", graph.ErrCycle("app", "db"), http.StatusConflict},
	}
	for _, tc := range cases {
		h := NewMux(&fakeService{registerErr: tc.err}, nil)
		rr := postJSON(t, h, "/services", `{"id":"app"}`)
		if rr.Code != tc.want {
			t.Fatalf("%s: status=%d want %d", tc.name, rr.Code, tc.want)
		}
	}
}

func TestGetServiceNotFound(t *testing.T) {
	h := NewMux(&fakeService{}, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/services/ghost", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestDeregisterService(t *testing.T) {
	svc := &fakeService{}
	h := NewMux(svc, nil)
	req := httptest.NewRequest(http.MethodDelete, "/services/vectordb", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rr.Code)
	}
	if len(svc.deregistered) != 1 || svc.deregistered[0] != "vectordb" {
		t.Fatalf("deregistered=%v", svc.deregistered)
	}

	h = NewMux(&fakeService{deregErr: supervisor.ErrNotFound("ghost")}, nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/services/ghost", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing service: status=%d", rr.Code)
	}
}

func TestResetService(t *testing.T) {
	h := NewMux(&fakeService{}, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/services/llama-8b/reset", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rr.Code)
	}

	h = NewMux(&fakeService{resetErr: supervisor.ErrNotFound("ghost")}, nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/services/ghost/reset", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing service: status=%d", rr.Code)
	}
}

func TestActivityEndpoint(t *testing.T) {
	svc := &fakeService{activity: []events.Event{
		{Name: events.ServiceRestart, Subject: "vectordb", At: time.Now()},
		{Name: events.AllocGranted, Subject: "llama-8b", At: time.Now()},
	}}
	h := NewMux(svc, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/activity?limit=1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var out []events.Event
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].Name != events.ServiceRestart {
		t.Fatalf("unexpected activity: %+v", out)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/activity?limit=nope", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: status=%d", rr.Code)
	}
}

func TestActivityEmptyIsArray(t *testing.T) {
	h := NewMux(&fakeService{}, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/activity", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Fatalf("expected empty array, got %q", got)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	svc := &fakeService{}
	h := NewMux(svc, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable || !bytes.Contains(rr.Body.Bytes(), []byte("booting")) {
		t.Fatalf("readyz before boot: status=%d body=%s", rr.Code, rr.Body.String())
	}

	svc.ready = true
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz after boot: status=%d", rr.Code)
	}
}
