// Package catalog lists the services a visitor can queue for and lets an
// administrator add or remove them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"qms/kiosk-service/internal/models"
	"qms/kiosk-service/internal/notify"
)

var (
	ErrEmptyServiceName = errors.New("service name is required")
	ErrMissingServiceID = errors.New("missing service id")
)

type Backend interface {
	ListServices(ctx context.Context) ([]models.Service, error)
	CreateService(ctx context.Context, name string) (models.Service, error)
	DeleteService(ctx context.Context, id models.ID) error
}

type Catalog struct {
	backend  Backend
	notifier notify.Notifier
}

func New(backend Backend, notifier notify.Notifier) *Catalog {
	if notifier == nil {
		notifier = notify.Discard()
	}
	return &Catalog{backend: backend, notifier: notifier}
}

// WithNotifier returns a catalog sharing the backend that reports to n.
func (c *Catalog) WithNotifier(n notify.Notifier) *Catalog {
	return New(c.backend, n)
}

// List returns the services in backend order. On failure the list is empty.
func (c *Catalog) List(ctx context.Context) ([]models.Service, error) {
	services, err := c.backend.ListServices(ctx)
	if err != nil {
		err = fmt.Errorf("list services: %w", err)
		c.notifier.Notify(ctx, notify.Failure(notify.ActionListServices, err))
		return nil, err
	}
	if services == nil {
		services = []models.Service{}
	}
	return services, nil
}

// Add creates a service with the trimmed name. A blank name never reaches
// the backend.
func (c *Catalog) Add(ctx context.Context, name string) (models.Service, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		c.notifier.Notify(ctx, notify.Invalid(notify.ActionAddService, "Please enter a service name.", ErrEmptyServiceName))
		return models.Service{}, ErrEmptyServiceName
	}
	service, err := c.backend.CreateService(ctx, name)
	if err != nil {
		err = fmt.Errorf("add service %q: %w", name, err)
		c.notifier.Notify(ctx, notify.Failure(notify.ActionAddService, err))
		return models.Service{}, err
	}
	if service.Name == "" {
		service.Name = name
	}
	return service, nil
}

func (c *Catalog) Delete(ctx context.Context, id models.ID) error {
	if id.Empty() {
		c.notifier.Notify(ctx, notify.Invalid(notify.ActionDeleteService, "Please choose a service to delete.", ErrMissingServiceID))
		return ErrMissingServiceID
	}
	if err := c.backend.DeleteService(ctx, id); err != nil {
		err = fmt.Errorf("delete service %s: %w", id, err)
		c.notifier.Notify(ctx, notify.Failure(notify.ActionDeleteService, err))
		return err
	}
	return nil
}

// Selection is the visitor's current service choice on the landing view.
type Selection struct {
	mu       sync.RWMutex
	selected models.ID
}

// Select replaces the choice. An empty id clears it.
func (s *Selection) Select(id models.ID) {
	s.mu.Lock()
	s.selected = models.ID(strings.TrimSpace(id.String()))
	s.mu.Unlock()
}

func (s *Selection) Selected() models.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// CanSubmit reports whether a ticket request may be sent.
func (s *Selection) CanSubmit() bool {
	return !s.Selected().Empty()
}
