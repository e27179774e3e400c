package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"qms/kiosk-service/internal/backend"
	"qms/kiosk-service/internal/catalog"
	"qms/kiosk-service/internal/clock"
	"qms/kiosk-service/internal/models"
	"qms/kiosk-service/internal/notify"
	"qms/kiosk-service/internal/ticket"
)

type fakeBackend struct {
	listFn          func(ctx context.Context) ([]models.Service, error)
	createServiceFn func(ctx context.Context, name string) (models.Service, error)
	deleteServiceFn func(ctx context.Context, id models.ID) error
	createTicketFn  func(ctx context.Context, serviceID models.ID) (models.Ticket, error)
	getTicketFn     func(ctx context.Context, id models.ID) (models.Ticket, error)
	cancelTicketFn  func(ctx context.Context, id models.ID) error
}

var errNotStubbed = &backend.StatusError{Method: "GET", Path: "/", StatusCode: http.StatusInternalServerError}

func (f fakeBackend) ListServices(ctx context.Context) ([]models.Service, error) {
	if f.listFn == nil {
		return nil, errNotStubbed
	}
	return f.listFn(ctx)
}

func (f fakeBackend) CreateService(ctx context.Context, name string) (models.Service, error) {
	if f.createServiceFn == nil {
		return models.Service{}, errNotStubbed
	}
	return f.createServiceFn(ctx, name)
}

func (f fakeBackend) DeleteService(ctx context.Context, id models.ID) error {
	if f.deleteServiceFn == nil {
		return errNotStubbed
	}
	return f.deleteServiceFn(ctx, id)
}

func (f fakeBackend) CreateTicket(ctx context.Context, serviceID models.ID) (models.Ticket, error) {
	if f.createTicketFn == nil {
		return models.Ticket{}, errNotStubbed
	}
	return f.createTicketFn(ctx, serviceID)
}

func (f fakeBackend) GetTicket(ctx context.Context, id models.ID) (models.Ticket, error) {
	if f.getTicketFn == nil {
		return models.Ticket{}, errNotStubbed
	}
	return f.getTicketFn(ctx, id)
}

func (f fakeBackend) CancelTicket(ctx context.Context, id models.ID) error {
	if f.cancelTicketFn == nil {
		return errNotStubbed
	}
	return f.cancelTicketFn(ctx, id)
}

func newTestHandler(fb fakeBackend) http.Handler {
	notifier := notify.Logger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	clk := clock.Fake(time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC))
	h := NewHandler(
		ticket.NewController(fb, notifier, clk),
		catalog.New(fb, notifier),
		notifier,
		Options{PublicURL: "https://kiosk.example.com/"},
	)
	return h.Routes()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	handler := newTestHandler(fakeBackend{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestListServices(t *testing.T) {
	handler := newTestHandler(fakeBackend{
		listFn: func(context.Context) ([]models.Service, error) {
			return []models.Service{{ID: "1", Name: "Teller"}}, nil
		},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/services", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var services []models.Service
	if err := json.NewDecoder(rec.Body).Decode(&services); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(services) != 1 || services[0].Name != "Teller" {
		t.Fatalf("unexpected services %+v", services)
	}
}

func TestListServicesBackendDown(t *testing.T) {
	handler := newTestHandler(fakeBackend{
		listFn: func(context.Context) ([]models.Service, error) {
			return nil, backend.ErrTransport
		},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/services", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != "backend_unavailable" {
		t.Fatalf("unexpected code %q", resp.Error.Code)
	}
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestCreateTicketRedirectsToTicketView(t *testing.T) {
	var got models.ID
	handler := newTestHandler(fakeBackend{
		createTicketFn: func(_ context.Context, serviceID models.ID) (models.Ticket, error) {
			got = serviceID
			return models.Ticket{ID: "42", TicketNumber: "A042"}, nil
		},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postForm("/visitor/tickets", url.Values{"service_id": {"3"}}))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/ticket?ticketId=42" {
		t.Fatalf("unexpected location %q", loc)
	}
	if got != "3" {
		t.Fatalf("expected service 3, got %q", got)
	}
}

func TestCreateTicketJSON(t *testing.T) {
	handler := newTestHandler(fakeBackend{
		createTicketFn: func(_ context.Context, serviceID models.ID) (models.Ticket, error) {
			if serviceID != "7" {
				t.Errorf("expected numeric id decoded as 7, got %q", serviceID)
			}
			return models.Ticket{ID: "1", TicketNumber: "B001"}, nil
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/visitor/tickets", bytes.NewBufferString(`{"service_id":7}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created models.Ticket
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.TicketNumber != "B001" {
		t.Fatalf("unexpected ticket %+v", created)
	}
}

func TestCreateTicketWithoutSelection(t *testing.T) {
	called := false
	handler := newTestHandler(fakeBackend{
		createTicketFn: func(context.Context, models.ID) (models.Ticket, error) {
			called = true
			return models.Ticket{}, nil
		},
	})
	req := postForm("/visitor/tickets", url.Values{})
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if called {
		t.Fatal("backend called without a selection")
	}
	resp := decodeError(t, rec)
	if resp.RequestID != "req-1" || resp.Error.Message != "Please select a service first." {
		t.Fatalf("unexpected error %+v", resp)
	}
}

func TestCreateTicketBackendFailureStaysOnSelection(t *testing.T) {
	handler := newTestHandler(fakeBackend{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postForm("/visitor/tickets", url.Values{"service_id": {"3"}}))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/visitor" {
		t.Fatalf("unexpected location %q", loc)
	}
}

func TestCreateTicketJSONBackendFailureReturnsEnvelope(t *testing.T) {
	handler := newTestHandler(fakeBackend{
		createTicketFn: func(context.Context, models.ID) (models.Ticket, error) {
			return models.Ticket{}, fmt.Errorf("%w: POST /tickets: connection refused", backend.ErrTransport)
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/visitor/tickets", bytes.NewBufferString(`{"service_id":"3"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", "req-9")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "" {
		t.Fatalf("unexpected redirect to %q", loc)
	}
	resp := decodeError(t, rec)
	if resp.RequestID != "req-9" || resp.Error.Code != "backend_unavailable" {
		t.Fatalf("unexpected error response %+v", resp)
	}
}

func TestCreateTicketConflictJSON(t *testing.T) {
	handler := newTestHandler(fakeBackend{
		createTicketFn: func(context.Context, models.ID) (models.Ticket, error) {
			return models.Ticket{}, &backend.StatusError{Method: http.MethodPost, Path: "/tickets", StatusCode: http.StatusConflict}
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/visitor/tickets", bytes.NewBufferString(`{"service_id":"3"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != "invalid_state" {
		t.Fatalf("unexpected error response %+v", resp)
	}
}

func TestTicketDetails(t *testing.T) {
	handler := newTestHandler(fakeBackend{
		getTicketFn: func(_ context.Context, id models.ID) (models.Ticket, error) {
			return models.Ticket{ID: id, TicketNumber: "A001", Status: models.StatusWaiting, EstimatedWaitTime: 0.4}, nil
		},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tickets/9", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var details ticket.Details
	if err := json.NewDecoder(rec.Body).Decode(&details); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if details.CountdownSeconds != 24 || details.WaitLabel != "1 min" || !details.CanCancel {
		t.Fatalf("unexpected details %+v", details)
	}
}

func TestTicketDetailsNotFound(t *testing.T) {
	handler := newTestHandler(fakeBackend{
		getTicketFn: func(context.Context, models.ID) (models.Ticket, error) {
			return models.Ticket{}, &backend.StatusError{Method: "GET", Path: "/tickets/9", StatusCode: http.StatusNotFound}
		},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tickets/9", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCancelTicket(t *testing.T) {
	tests := []struct {
		name     string
		cancelFn func(ctx context.Context, id models.ID) error
		want     string
	}{
		{"success goes to landing", func(context.Context, models.ID) error { return nil }, "/"},
		{"failure stays on ticket", nil, "/ticket?ticketId=5"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(fakeBackend{cancelTicketFn: tc.cancelFn})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ticket/cancel?ticketId=5", nil))
			if rec.Code != http.StatusSeeOther {
				t.Fatalf("expected 303, got %d", rec.Code)
			}
			if loc := rec.Header().Get("Location"); loc != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, loc)
			}
		})
	}
}

func TestAddServiceBlankNameAlerts(t *testing.T) {
	handler := newTestHandler(fakeBackend{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/services", bytes.NewBufferString(`{"name":"  "}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Message != "Please enter a service name." {
		t.Fatalf("unexpected message %q", resp.Error.Message)
	}
}

func TestAddServiceFailureAlerts(t *testing.T) {
	handler := newTestHandler(fakeBackend{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/services", bytes.NewBufferString(`{"name":"Loans"}`)))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Message != "Failed to add service." {
		t.Fatalf("unexpected message %q", resp.Error.Message)
	}
}

func TestAddService(t *testing.T) {
	handler := newTestHandler(fakeBackend{
		createServiceFn: func(_ context.Context, name string) (models.Service, error) {
			return models.Service{ID: "11", Name: name}, nil
		},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/services", bytes.NewBufferString(`{"name":" Loans "}`)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var service models.Service
	_ = json.NewDecoder(rec.Body).Decode(&service)
	if service.Name != "Loans" || service.ID != "11" {
		t.Fatalf("unexpected service %+v", service)
	}
}

func TestDeleteService(t *testing.T) {
	var deleted models.ID
	handler := newTestHandler(fakeBackend{
		deleteServiceFn: func(_ context.Context, id models.ID) error {
			deleted = id
			return nil
		},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/admin/services/11", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if deleted != "11" {
		t.Fatalf("expected 11 deleted, got %q", deleted)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/services/11", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestQRCode(t *testing.T) {
	handler := newTestHandler(fakeBackend{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/qr.png", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatal("body is not a PNG")
	}
}
