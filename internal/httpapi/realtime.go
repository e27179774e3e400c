package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"qms/kiosk-service/internal/countdown"
	"qms/kiosk-service/internal/hub"
	"qms/kiosk-service/internal/models"
	"qms/kiosk-service/internal/queuestatus"
	"qms/kiosk-service/internal/ticket"
	"qms/kiosk-service/internal/view"

	"github.com/igm/sockjs-go/sockjs"
)

const (
	frameTicket    = "ticket"
	frameCountdown = "countdown"
)

type countdownFrame struct {
	TicketID  models.ID `json:"ticket_id"`
	Remaining int       `json:"remaining_seconds"`
	Clock     string    `json:"clock"`
	Display   string    `json:"display"`
	Expired   bool      `json:"expired"`
}

// MountViews registers the visitor and admin producers. Every mount polls
// on its own task, which stops when the view's last subscriber leaves.
func MountViews(h *hub.Hub, poller *queuestatus.Poller, window int, logger *slog.Logger) {
	h.Handle(hub.ViewVisitor, func(publish func([]byte)) func() {
		synchronizer := &view.Synchronizer{
			Visitor:   view.NewVisitorView(),
			OnVisitor: func(frame view.VisitorFrame) { publishFrame(logger, publish, hub.ViewVisitor, frame) },
		}
		return synchronizer.Mount(context.Background(), poller).Stop
	})
	h.Handle(hub.ViewAdmin, func(publish func([]byte)) func() {
		synchronizer := &view.Synchronizer{
			Admin:   view.NewAdminView(window),
			OnAdmin: func(frame view.AdminFrame) { publishFrame(logger, publish, hub.ViewAdmin, frame) },
		}
		return synchronizer.Mount(context.Background(), poller).Stop
	})
}

func publishFrame(logger *slog.Logger, publish func([]byte), kind string, frame any) {
	payload, err := hub.Encode(kind, frame, time.Now().UTC())
	if err != nil {
		logger.Error("encode frame", "view", kind, "error", err)
		return
	}
	publish(payload)
}

type realtime struct {
	hub     *hub.Hub
	tickets *ticket.Controller
	logger  *slog.Logger
}

// NewRealtime serves view subscriptions over SockJS under /realtime.
// Clients send {"action":"subscribe","view":"visitor"|"admin"} or
// {"action":"subscribe","view":"ticket","ticket_id":"..."}.
func NewRealtime(h *hub.Hub, tickets *ticket.Controller, logger *slog.Logger) http.Handler {
	rt := &realtime{hub: h, tickets: tickets, logger: logger}
	return sockjs.NewHandler("/realtime", sockjs.DefaultOptions, rt.serve)
}

func (rt *realtime) serve(session sockjs.Session) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := hub.NewClient(16)
	rt.hub.Register(client)
	defer rt.hub.Unregister(client)

	var timer *countdown.Timer
	stopTicket := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}
	defer stopTicket()

	go func() {
		for msg := range client.Send {
			_ = session.Send(string(msg))
		}
	}()

	for {
		msg, err := session.Recv()
		if err != nil {
			return
		}
		parsed, ok := hub.ParseSubscribe([]byte(msg))
		if !ok {
			continue
		}
		stopTicket()
		if parsed.Action == "unsubscribe" {
			rt.hub.Unsubscribe(client)
			continue
		}
		if parsed.View == hub.ViewTicket {
			rt.hub.Unsubscribe(client)
			timer = rt.mountTicket(ctx, client, models.ID(parsed.TicketID))
			continue
		}
		if err := rt.hub.Subscribe(client, parsed.View); err != nil {
			_ = session.Close(4004, "unknown view")
			return
		}
	}
}

// mountTicket loads the ticket and streams its countdown to the client. The
// details frame always goes out before the first countdown frame. The timer
// is nil when the ticket could not be loaded; the client then gets an
// unpopulated ticket frame.
func (rt *realtime) mountTicket(ctx context.Context, client *hub.Client, id models.ID) *countdown.Timer {
	var (
		mu      sync.Mutex
		ready   bool
		pending []countdown.State
	)
	sendCountdown := func(state countdown.State) {
		rt.send(client, frameCountdown, countdownFrame{
			TicketID:  id,
			Remaining: state.Remaining,
			Clock:     state.Clock(),
			Display:   state.Display(),
			Expired:   state.Expired(),
		})
	}

	details, timer, err := rt.tickets.Mount(ctx, id, func(state countdown.State) {
		mu.Lock()
		defer mu.Unlock()
		if !ready {
			pending = append(pending, state)
			return
		}
		sendCountdown(state)
	})
	if err != nil {
		rt.logger.Debug("ticket view not populated", "ticket_id", id, "error", err)
	}
	rt.send(client, frameTicket, details)

	mu.Lock()
	ready = true
	for _, state := range pending {
		sendCountdown(state)
	}
	mu.Unlock()
	return timer
}

func (rt *realtime) send(client *hub.Client, kind string, frame any) {
	payload, err := hub.Encode(kind, frame, time.Now().UTC())
	if err != nil {
		rt.logger.Error("encode frame", "view", kind, "error", err)
		return
	}
	select {
	case client.Send <- payload:
	default:
		rt.logger.Warn("drop message for client", "client_id", client.ID, "view", kind)
	}
}
