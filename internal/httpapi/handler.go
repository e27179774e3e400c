package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"qms/kiosk-service/internal/backend"
	"qms/kiosk-service/internal/catalog"
	"qms/kiosk-service/internal/models"
	"qms/kiosk-service/internal/notify"
	"qms/kiosk-service/internal/ticket"

	"github.com/google/uuid"
)

type Handler struct {
	tickets   *ticket.Controller
	catalog   *catalog.Catalog
	notifier  notify.Notifier
	realtime  http.Handler
	publicURL string
	staticDir string
}

type Options struct {
	PublicURL string
	StaticDir string
	// Realtime serves everything under /realtime/.
	Realtime http.Handler
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createTicketRequest struct {
	ServiceID models.ID `json:"service_id"`
}

type createServiceRequest struct {
	Name string `json:"name"`
}

func NewHandler(tickets *ticket.Controller, services *catalog.Catalog, notifier notify.Notifier, options Options) *Handler {
	return &Handler{
		tickets:   tickets,
		catalog:   services,
		notifier:  notifier,
		realtime:  options.Realtime,
		publicURL: strings.TrimRight(options.PublicURL, "/"),
		staticDir: options.StaticDir,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", expvar.Handler())
	mux.HandleFunc("/qr.png", h.handleQRCode)
	mux.HandleFunc("/api/services", h.handleServices)
	mux.HandleFunc("/api/tickets/", h.handleTicketDetails)
	mux.HandleFunc("/api/admin/services", h.handleAdminServices)
	mux.HandleFunc("/api/admin/services/", h.handleAdminService)
	mux.HandleFunc("/visitor/tickets", h.handleCreateTicket)
	mux.HandleFunc("/ticket/cancel", h.handleCancelTicket)
	if h.realtime != nil {
		mux.Handle("/realtime/", h.realtime)
	}
	if h.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(h.staticDir)))
	}
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// scope gives one request its own navigation target and a recorder that
// catches the alerts it must answer with.
func (h *Handler) scope() (*redirect, *notify.Recorder, notify.Notifier) {
	recorder := &notify.Recorder{}
	return &redirect{}, recorder, notify.Tee(h.notifier, recorder)
}

func (h *Handler) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	services, err := h.catalog.List(r.Context())
	if err != nil {
		status, code, message := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, message)
		return
	}
	writeJSON(w, http.StatusOK, services)
}

func (h *Handler) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	requestID := requestIDFromRequest(r)

	var req createTicketRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
	} else {
		req.ServiceID = models.ID(r.FormValue("service_id"))
	}

	nav, recorder, notifier := h.scope()
	created, err := h.tickets.WithNavigator(nav).WithNotifier(notifier).Create(r.Context(), req.ServiceID)
	if err != nil {
		if alerts := recorder.Alerts(); len(alerts) > 0 {
			writeError(w, requestID, http.StatusBadRequest, "invalid_request", alerts[0].Message)
			return
		}
		if wantsJSON(r) {
			status, code, message := mapError(err)
			writeError(w, requestID, status, code, message)
			return
		}
		http.Redirect(w, r, "/visitor", http.StatusSeeOther)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, created)
		return
	}
	http.Redirect(w, r, nav.location, http.StatusSeeOther)
}

func (h *Handler) handleTicketDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tickets/"), "/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	details, err := h.tickets.FetchDetails(r.Context(), models.ID(id))
	if err != nil {
		status, code, message := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, message)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) handleCancelTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := models.ID(strings.TrimSpace(r.FormValue("ticketId")))

	nav, _, notifier := h.scope()
	if err := h.tickets.WithNavigator(nav).WithNotifier(notifier).Cancel(r.Context(), id); err != nil {
		if id.Empty() {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, ticketLocation(id), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, nav.location, http.StatusSeeOther)
}

func (h *Handler) handleAdminServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	requestID := requestIDFromRequest(r)

	var req createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	_, recorder, notifier := h.scope()
	service, err := h.catalog.WithNotifier(notifier).Add(r.Context(), req.Name)
	if err != nil {
		writeAlert(w, requestID, err, recorder)
		return
	}
	writeJSON(w, http.StatusCreated, service)
}

func (h *Handler) handleAdminService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/services/"), "/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, recorder, notifier := h.scope()
	if err := h.catalog.WithNotifier(notifier).Delete(r.Context(), models.ID(id)); err != nil {
		writeAlert(w, requestIDFromRequest(r), err, recorder)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeAlert answers a failed admin action with the alert text the user
// should see.
func writeAlert(w http.ResponseWriter, requestID string, err error, recorder *notify.Recorder) {
	status, code, message := mapError(err)
	if alerts := recorder.Alerts(); len(alerts) > 0 {
		message = alerts[0].Message
	}
	writeError(w, requestID, status, code, message)
}

type redirect struct {
	location string
}

func (r *redirect) ShowTicket(id models.ID) { r.location = ticketLocation(id) }
func (r *redirect) ShowLanding()            { r.location = "/" }

func ticketLocation(id models.ID) string {
	return "/ticket?ticketId=" + url.QueryEscape(id.String())
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, ticket.ErrNoServiceSelected),
		errors.Is(err, ticket.ErrMissingTicketID),
		errors.Is(err, catalog.ErrEmptyServiceName),
		errors.Is(err, catalog.ErrMissingServiceID):
		return http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, backend.ErrConflict):
		return http.StatusConflict, "invalid_state", "ticket state does not allow this action"
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusBadGateway, "backend_rejected", "backend rejected the admin credential"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "backend_timeout", "backend did not answer in time"
	case errors.Is(err, backend.ErrTransport):
		return http.StatusBadGateway, "backend_unavailable", "backend unavailable"
	default:
		return http.StatusBadGateway, "backend_error", "backend request failed"
	}
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func requestIDFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); id != "" {
		return id
	}
	return uuid.NewString()
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
