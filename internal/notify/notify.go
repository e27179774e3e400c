// Package notify carries user-facing failure reports from queue actions to
// whatever surface is showing them.
package notify

import (
	"context"
	"errors"
	"log/slog"
)

type Severity int

const (
	// SeverityLog is recorded for diagnostics only; the view stays as is.
	SeverityLog Severity = iota
	// SeverityAlert must be shown to the user and acknowledged.
	SeverityAlert
)

func (s Severity) String() string {
	if s == SeverityAlert {
		return "alert"
	}
	return "log"
}

const (
	ActionCreateTicket  = "create_ticket"
	ActionFetchTicket   = "fetch_ticket"
	ActionCancelTicket  = "cancel_ticket"
	ActionPollQueue     = "poll_queue"
	ActionListServices  = "list_services"
	ActionAddService    = "add_service"
	ActionDeleteService = "delete_service"
)

// policy decides how a failed action is surfaced. Visitor-side actions and
// background polling only log; administrator catalog edits alert.
var policy = map[string]Severity{
	ActionCreateTicket:  SeverityLog,
	ActionFetchTicket:   SeverityLog,
	ActionCancelTicket:  SeverityLog,
	ActionPollQueue:     SeverityLog,
	ActionListServices:  SeverityLog,
	ActionAddService:    SeverityAlert,
	ActionDeleteService: SeverityAlert,
}

type Notice struct {
	Action   string
	Severity Severity
	Message  string
	Err      error
}

func (n Notice) Alert() bool { return n.Severity == SeverityAlert }

type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// Failure builds the notice for an action whose backend call failed.
func Failure(action string, err error) Notice {
	severity, ok := policy[action]
	if !ok {
		severity = SeverityLog
	}
	return Notice{Action: action, Severity: severity, Message: failureMessage(action), Err: err}
}

// Invalid builds the notice for input rejected before any network call.
// Input problems always alert.
func Invalid(action, message string, err error) Notice {
	return Notice{Action: action, Severity: SeverityAlert, Message: message, Err: err}
}

func failureMessage(action string) string {
	switch action {
	case ActionCreateTicket:
		return "Could not create ticket."
	case ActionFetchTicket:
		return "Could not load ticket."
	case ActionCancelTicket:
		return "Could not cancel ticket."
	case ActionPollQueue:
		return "Could not refresh queue status."
	case ActionListServices:
		return "Could not load services."
	case ActionAddService:
		return "Failed to add service."
	case ActionDeleteService:
		return "Failed to delete service."
	default:
		return "Request failed."
	}
}

type Func func(ctx context.Context, notice Notice)

func (f Func) Notify(ctx context.Context, notice Notice) { f(ctx, notice) }

// Discard drops every notice.
func Discard() Notifier {
	return Func(func(context.Context, Notice) {})
}

type logNotifier struct {
	logger *slog.Logger
}

// Logger records every notice: alerts at warn, other failures at error.
func Logger(logger *slog.Logger) Notifier {
	return logNotifier{logger: logger}
}

func (l logNotifier) Notify(ctx context.Context, notice Notice) {
	attrs := []any{"action", notice.Action, "severity", notice.Severity.String()}
	if notice.Err != nil {
		attrs = append(attrs, "error", notice.Err)
	}
	switch {
	case errors.Is(notice.Err, context.Canceled):
		l.logger.DebugContext(ctx, notice.Message, attrs...)
	case notice.Alert():
		l.logger.WarnContext(ctx, notice.Message, attrs...)
	case notice.Err != nil:
		l.logger.ErrorContext(ctx, notice.Message, attrs...)
	default:
		l.logger.InfoContext(ctx, notice.Message, attrs...)
	}
}

type tee []Notifier

// Tee fans a notice out to every non-nil notifier in order.
func Tee(notifiers ...Notifier) Notifier {
	var out tee
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (t tee) Notify(ctx context.Context, notice Notice) {
	for _, n := range t {
		n.Notify(ctx, notice)
	}
}

// Recorder keeps notices in memory. Not safe for concurrent use.
type Recorder struct {
	Notices []Notice
}

func (r *Recorder) Notify(_ context.Context, notice Notice) {
	r.Notices = append(r.Notices, notice)
}

// Alerts returns the recorded notices that must be shown to the user.
func (r *Recorder) Alerts() []Notice {
	var alerts []Notice
	for _, n := range r.Notices {
		if n.Alert() {
			alerts = append(alerts, n)
		}
	}
	return alerts
}
