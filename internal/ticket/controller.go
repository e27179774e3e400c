package ticket

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"qms/kiosk-service/internal/clock"
	"qms/kiosk-service/internal/countdown"
	"qms/kiosk-service/internal/models"
	"qms/kiosk-service/internal/notify"
)

var (
	ErrNoServiceSelected = errors.New("no service selected")
	ErrMissingTicketID   = errors.New("missing ticket id")
)

type Backend interface {
	CreateTicket(ctx context.Context, serviceID models.ID) (models.Ticket, error)
	GetTicket(ctx context.Context, id models.ID) (models.Ticket, error)
	CancelTicket(ctx context.Context, id models.ID) error
}

// Navigator moves the surface that triggered an action to another view.
type Navigator interface {
	// ShowTicket opens the ticket detail view keyed by id.
	ShowTicket(id models.ID)
	// ShowLanding returns to the landing view, discarding the ticket.
	ShowLanding()
}

// Details is what the ticket detail view displays. The zero value is the
// unpopulated view.
type Details struct {
	TicketID         models.ID `json:"ticket_id"`
	TicketNumber     string    `json:"ticket_number"`
	ServiceName      string    `json:"service_name"`
	Status           string    `json:"status"`
	WaitMinutes      int       `json:"wait_minutes"`
	WaitLabel        string    `json:"wait_label"`
	CountdownSeconds int       `json:"countdown_seconds"`
	CanCancel        bool      `json:"can_cancel"`
	Populated        bool      `json:"populated"`
}

type Controller struct {
	backend  Backend
	notifier notify.Notifier
	clock    clock.Clock
	nav      Navigator
}

func NewController(backend Backend, notifier notify.Notifier, clk clock.Clock) *Controller {
	if clk == nil {
		clk = clock.Real()
	}
	if notifier == nil {
		notifier = notify.Discard()
	}
	return &Controller{backend: backend, notifier: notifier, clock: clk, nav: noNavigation{}}
}

// WithNavigator returns a copy of the controller that navigates nav.
func (c *Controller) WithNavigator(nav Navigator) *Controller {
	clone := *c
	if nav == nil {
		nav = noNavigation{}
	}
	clone.nav = nav
	return &clone
}

// WithNotifier returns a copy of the controller that reports to n.
func (c *Controller) WithNotifier(n notify.Notifier) *Controller {
	clone := *c
	if n == nil {
		n = notify.Discard()
	}
	clone.notifier = n
	return &clone
}

// Create requests a ticket for the selected service and opens its detail
// view. Without a selection nothing is sent to the backend.
func (c *Controller) Create(ctx context.Context, serviceID models.ID) (models.Ticket, error) {
	serviceID = models.ID(strings.TrimSpace(serviceID.String()))
	if serviceID.Empty() {
		c.notifier.Notify(ctx, notify.Invalid(notify.ActionCreateTicket, "Please select a service first.", ErrNoServiceSelected))
		return models.Ticket{}, ErrNoServiceSelected
	}

	ticket, err := c.backend.CreateTicket(ctx, serviceID)
	if err != nil {
		err = fmt.Errorf("create ticket for service %s: %w", serviceID, err)
		c.notifier.Notify(ctx, notify.Failure(notify.ActionCreateTicket, err))
		return models.Ticket{}, err
	}
	if ticket.ID.Empty() {
		err := fmt.Errorf("create ticket for service %s: backend returned no ticket id", serviceID)
		c.notifier.Notify(ctx, notify.Failure(notify.ActionCreateTicket, err))
		return models.Ticket{}, err
	}
	if ticket.ServiceID.Empty() {
		ticket.ServiceID = serviceID
	}

	c.nav.ShowTicket(ticket.ID)
	return ticket, nil
}

// FetchDetails reads the ticket. On failure the returned Details is the
// unpopulated zero value.
func (c *Controller) FetchDetails(ctx context.Context, id models.ID) (Details, error) {
	if id.Empty() {
		c.notifier.Notify(ctx, notify.Failure(notify.ActionFetchTicket, ErrMissingTicketID))
		return Details{}, ErrMissingTicketID
	}
	ticket, err := c.backend.GetTicket(ctx, id)
	if err != nil {
		err = fmt.Errorf("fetch ticket %s: %w", id, err)
		c.notifier.Notify(ctx, notify.Failure(notify.ActionFetchTicket, err))
		return Details{}, err
	}
	if ticket.ID.Empty() {
		ticket.ID = id
	}
	return detailsFor(ticket), nil
}

func detailsFor(ticket models.Ticket) Details {
	minutes := 0
	if ticket.EstimatedWaitTime > 0 {
		minutes = int(math.Ceil(ticket.EstimatedWaitTime))
	}
	return Details{
		TicketID:         ticket.ID,
		TicketNumber:     ticket.TicketNumber,
		ServiceName:      ticket.ServiceName,
		Status:           ticket.Status,
		WaitMinutes:      minutes,
		WaitLabel:        fmt.Sprintf("%d min", minutes),
		CountdownSeconds: countdown.SeedSeconds(ticket.EstimatedWaitTime),
		CanCancel:        models.CanCancel(ticket.Status),
		Populated:        true,
	}
}

// Mount loads the ticket view and starts its countdown. The caller owns the
// returned timer and must Stop it when the view goes away. The timer is nil
// when the ticket could not be loaded.
func (c *Controller) Mount(ctx context.Context, id models.ID, render func(countdown.State)) (Details, *countdown.Timer, error) {
	details, err := c.FetchDetails(ctx, id)
	if err != nil {
		return details, nil, err
	}
	return details, countdown.Start(c.clock, details.CountdownSeconds, render), nil
}

// Cancel asks the backend to cancel the ticket and leaves the ticket view on
// success. On failure the view stays where it is.
func (c *Controller) Cancel(ctx context.Context, id models.ID) error {
	if id.Empty() {
		c.notifier.Notify(ctx, notify.Failure(notify.ActionCancelTicket, ErrMissingTicketID))
		return ErrMissingTicketID
	}
	if err := c.backend.CancelTicket(ctx, id); err != nil {
		err = fmt.Errorf("cancel ticket %s: %w", id, err)
		c.notifier.Notify(ctx, notify.Failure(notify.ActionCancelTicket, err))
		return err
	}
	c.nav.ShowLanding()
	return nil
}

type noNavigation struct{}

func (noNavigation) ShowTicket(models.ID) {}
func (noNavigation) ShowLanding()         {}
