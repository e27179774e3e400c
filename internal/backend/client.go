package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"qms/kiosk-service/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	adminKeyHeader  = "X-API-Key"
	requestIDHeader = "X-Request-ID"
)

type Options struct {
	BaseURL     string
	AdminAPIKey string
	Timeout     time.Duration
	// Transport defaults to an otelhttp-instrumented http.DefaultTransport.
	Transport http.RoundTripper
}

// Client speaks the queue backend's JSON-over-HTTP interface.
type Client struct {
	baseURL  string
	adminKey string
	http     *http.Client
}

func New(opts Options) *Client {
	transport := opts.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		adminKey: opts.AdminAPIKey,
		http:     &http.Client{Timeout: timeout, Transport: transport},
	}
}

type createServiceRequest struct {
	Name string `json:"name"`
}

type createTicketRequest struct {
	ServiceID models.ID `json:"service_id"`
}

func (c *Client) ListServices(ctx context.Context) ([]models.Service, error) {
	var services []models.Service
	if err := c.do(ctx, http.MethodGet, "/services", nil, false, &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (c *Client) CreateService(ctx context.Context, name string) (models.Service, error) {
	var service models.Service
	if err := c.do(ctx, http.MethodPost, "/services", createServiceRequest{Name: name}, true, &service); err != nil {
		return models.Service{}, err
	}
	return service, nil
}

func (c *Client) DeleteService(ctx context.Context, id models.ID) error {
	return c.do(ctx, http.MethodDelete, "/services/"+url.PathEscape(id.String()), nil, true, nil)
}

func (c *Client) CreateTicket(ctx context.Context, serviceID models.ID) (models.Ticket, error) {
	var ticket models.Ticket
	if err := c.do(ctx, http.MethodPost, "/tickets", createTicketRequest{ServiceID: serviceID}, false, &ticket); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (c *Client) GetTicket(ctx context.Context, id models.ID) (models.Ticket, error) {
	var ticket models.Ticket
	if err := c.do(ctx, http.MethodGet, "/tickets/"+url.PathEscape(id.String()), nil, false, &ticket); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (c *Client) CancelTicket(ctx context.Context, id models.ID) error {
	return c.do(ctx, http.MethodDelete, "/tickets/"+url.PathEscape(id.String()), nil, false, nil)
}

func (c *Client) QueueSnapshot(ctx context.Context) (models.QueueSnapshot, error) {
	var snapshot models.QueueSnapshot
	if err := c.do(ctx, http.MethodGet, "/queue", nil, false, &snapshot); err != nil {
		return models.QueueSnapshot{}, err
	}
	return snapshot, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}, admin bool, target interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set(adminKeyHeader, c.adminKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %s %s: read body: %v", ErrTransport, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code, message := parseErrorBody(raw)
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Code:       code,
			Message:    message,
		}
	}

	if target == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrDecode, method, path, err)
	}
	return nil
}

// parseErrorBody accepts {"error":"text"} as well as
// {"error":{"code":"...","message":"..."}}.
func parseErrorBody(raw []byte) (string, string) {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", strings.TrimSpace(string(raw))
	}
	if len(envelope.Error) == 0 {
		return "", envelope.Message
	}
	var text string
	if err := json.Unmarshal(envelope.Error, &text); err == nil {
		return "", text
	}
	var detail struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err == nil {
		return detail.Code, detail.Message
	}
	return "", envelope.Message
}
