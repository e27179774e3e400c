// Package console is a terminal front end for the kiosk. It shows the same
// three views as the web surface: the visitor landing page with service
// selection, a ticket with its countdown, and the administrator dashboard.
package console

import (
	"context"
	"strings"

	"qms/kiosk-service/internal/catalog"
	"qms/kiosk-service/internal/countdown"
	"qms/kiosk-service/internal/models"
	"qms/kiosk-service/internal/notify"
	"qms/kiosk-service/internal/queuestatus"
	"qms/kiosk-service/internal/ticket"
	"qms/kiosk-service/internal/view"

	tea "github.com/charmbracelet/bubbletea"
)

type Screen string

const (
	ScreenVisitor Screen = "visitor"
	ScreenTicket  Screen = "ticket"
	ScreenAdmin   Screen = "admin"
)

func ParseScreen(raw string) (Screen, bool) {
	switch Screen(strings.ToLower(strings.TrimSpace(raw))) {
	case ScreenVisitor:
		return ScreenVisitor, true
	case ScreenTicket:
		return ScreenTicket, true
	case ScreenAdmin:
		return ScreenAdmin, true
	default:
		return "", false
	}
}

type Deps struct {
	Catalog  *catalog.Catalog
	Tickets  *ticket.Controller
	Poller   *queuestatus.Poller
	Notifier notify.Notifier
	Bridge   *Bridge
	Window   int
}

type servicesMsg struct {
	services []models.Service
}

type visitorFrameMsg struct {
	gen   uint64
	frame view.VisitorFrame
}

type adminFrameMsg struct {
	gen   uint64
	frame view.AdminFrame
}

type ticketLoadedMsg struct {
	gen     uint64
	details ticket.Details
	timer   *countdown.Timer
}

type countdownMsg struct {
	gen   uint64
	state countdown.State
}

// actionDoneMsg reports a user action: the alerts it raised and where it
// asked to navigate.
type actionDoneMsg struct {
	alerts []notify.Notice
	target *navigation
	reload bool
}

type navigation struct {
	screen Screen
	ticket models.ID
}

func (n *navigation) ShowTicket(id models.ID) { n.screen, n.ticket = ScreenTicket, id }
func (n *navigation) ShowLanding()            { n.screen = ScreenVisitor }

type Model struct {
	ctx    context.Context
	deps   Deps
	screen Screen
	gen    uint64

	task  *queuestatus.Task
	timer *countdown.Timer

	services []models.Service
	// cursor is -1 until the visitor picks a service.
	cursor    int
	selection catalog.Selection

	ticketID  models.ID
	details   ticket.Details
	countdown countdown.State
	loaded    bool

	visitor view.VisitorFrame
	admin   view.AdminFrame

	adding bool
	input  string
	alert  string
	width  int
}

func NewModel(ctx context.Context, deps Deps, screen Screen, ticketID models.ID) *Model {
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard()
	}
	if screen == ScreenTicket && ticketID.Empty() {
		screen = ScreenVisitor
	}
	return &Model{
		ctx:      ctx,
		deps:     deps,
		screen:   screen,
		ticketID: ticketID,
		cursor:   -1,
		visitor:  view.NewVisitorView().Frame(),
	}
}

func (m *Model) Init() tea.Cmd {
	return m.mount()
}

// Close stops whatever the current screen is running.
func (m *Model) Close() {
	m.unmount()
}

// mount starts the current screen's background work under a new
// generation; messages from earlier generations are ignored.
func (m *Model) mount() tea.Cmd {
	m.gen++
	gen, bridge := m.gen, m.deps.Bridge
	switch m.screen {
	case ScreenVisitor:
		synchronizer := &view.Synchronizer{
			Visitor:   view.NewVisitorView(),
			OnVisitor: func(frame view.VisitorFrame) { bridge.Send(visitorFrameMsg{gen: gen, frame: frame}) },
		}
		m.task = synchronizer.Mount(m.ctx, m.deps.Poller)
		return m.loadServices()
	case ScreenAdmin:
		synchronizer := &view.Synchronizer{
			Admin:   view.NewAdminView(m.deps.Window),
			OnAdmin: func(frame view.AdminFrame) { bridge.Send(adminFrameMsg{gen: gen, frame: frame}) },
		}
		m.task = synchronizer.Mount(m.ctx, m.deps.Poller)
		return m.loadServices()
	case ScreenTicket:
		return m.loadTicket(gen, m.ticketID)
	}
	return nil
}

func (m *Model) unmount() {
	if m.task != nil {
		m.task.Stop()
		m.task = nil
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Model) switchTo(screen Screen, ticketID models.ID) tea.Cmd {
	m.unmount()
	m.screen = screen
	m.ticketID = ticketID
	m.details = ticket.Details{}
	m.countdown = countdown.State{}
	m.loaded = false
	m.cursor = -1
	m.selection.Select("")
	m.adding = false
	m.input = ""
	m.admin = view.AdminFrame{}
	m.visitor = view.NewVisitorView().Frame()
	return m.mount()
}

func (m *Model) loadServices() tea.Cmd {
	ctx, services := m.ctx, m.deps.Catalog
	return func() tea.Msg {
		list, _ := services.List(ctx)
		return servicesMsg{services: list}
	}
}

func (m *Model) loadTicket(gen uint64, id models.ID) tea.Cmd {
	ctx, tickets, bridge := m.ctx, m.deps.Tickets, m.deps.Bridge
	return func() tea.Msg {
		details, timer, _ := tickets.Mount(ctx, id, func(state countdown.State) {
			bridge.Send(countdownMsg{gen: gen, state: state})
		})
		return ticketLoadedMsg{gen: gen, details: details, timer: timer}
	}
}

// act runs one user action with its own notice recorder and navigation
// target.
func (m *Model) act(reload bool, fn func(nav *navigation, notifier notify.Notifier)) tea.Cmd {
	base := m.deps.Notifier
	return func() tea.Msg {
		nav := &navigation{}
		recorder := &notify.Recorder{}
		fn(nav, notify.Tee(base, recorder))
		msg := actionDoneMsg{alerts: recorder.Alerts(), reload: reload}
		if nav.screen != "" {
			msg.target = nav
		}
		return msg
	}
}

func (m *Model) createTicket() tea.Cmd {
	ctx, tickets, serviceID := m.ctx, m.deps.Tickets, m.selection.Selected()
	return m.act(false, func(nav *navigation, notifier notify.Notifier) {
		_, _ = tickets.WithNavigator(nav).WithNotifier(notifier).Create(ctx, serviceID)
	})
}

func (m *Model) cancelTicket() tea.Cmd {
	ctx, tickets, id := m.ctx, m.deps.Tickets, m.ticketID
	return m.act(false, func(nav *navigation, notifier notify.Notifier) {
		_ = tickets.WithNavigator(nav).WithNotifier(notifier).Cancel(ctx, id)
	})
}

func (m *Model) addService(name string) tea.Cmd {
	ctx, services := m.ctx, m.deps.Catalog
	return m.act(true, func(_ *navigation, notifier notify.Notifier) {
		_, _ = services.WithNotifier(notifier).Add(ctx, name)
	})
}

func (m *Model) deleteService(id models.ID) tea.Cmd {
	ctx, services := m.ctx, m.deps.Catalog
	return m.act(true, func(_ *navigation, notifier notify.Notifier) {
		_ = services.WithNotifier(notifier).Delete(ctx, id)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case servicesMsg:
		m.services = msg.services
		if m.cursor >= len(m.services) {
			m.cursor = len(m.services) - 1
		}
		m.syncSelection()
		return m, nil
	case visitorFrameMsg:
		if msg.gen == m.gen && m.screen == ScreenVisitor {
			m.visitor = msg.frame
		}
		return m, nil
	case adminFrameMsg:
		if msg.gen == m.gen && m.screen == ScreenAdmin {
			m.admin = msg.frame
		}
		return m, nil
	case ticketLoadedMsg:
		if msg.gen != m.gen || m.screen != ScreenTicket {
			if msg.timer != nil {
				msg.timer.Stop()
			}
			return m, nil
		}
		m.details = msg.details
		m.timer = msg.timer
		m.loaded = true
		return m, nil
	case countdownMsg:
		if msg.gen == m.gen && m.screen == ScreenTicket {
			m.countdown = msg.state
		}
		return m, nil
	case actionDoneMsg:
		if len(msg.alerts) > 0 {
			m.alert = msg.alerts[0].Message
		}
		if msg.target != nil {
			return m, m.switchTo(msg.target.screen, msg.target.ticket)
		}
		if msg.reload {
			return m, m.loadServices()
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.unmount()
		return m, tea.Quit
	}
	// An alert blocks until acknowledged.
	if m.alert != "" {
		m.alert = ""
		return m, nil
	}
	if m.adding {
		return m.handleInput(msg)
	}

	switch msg.String() {
	case "q":
		m.unmount()
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.syncSelection()
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.services)-1 {
			m.cursor++
			m.syncSelection()
		}
		return m, nil
	}

	switch m.screen {
	case ScreenVisitor:
		switch msg.String() {
		case "enter":
			return m, m.createTicket()
		case "a":
			return m, m.switchTo(ScreenAdmin, "")
		}
	case ScreenTicket:
		switch msg.String() {
		case "c":
			if m.details.Populated && m.details.CanCancel {
				return m, m.cancelTicket()
			}
		case "esc", "b":
			return m, m.switchTo(ScreenVisitor, "")
		}
	case ScreenAdmin:
		switch msg.String() {
		case "n":
			m.adding = true
			m.input = ""
		case "d":
			if id := m.selection.Selected(); !id.Empty() {
				return m, m.deleteService(id)
			}
		case "esc", "v":
			return m, m.switchTo(ScreenVisitor, "")
		}
	}
	return m, nil
}

func (m *Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		name := m.input
		m.adding = false
		m.input = ""
		return m, m.addService(name)
	case tea.KeyEsc:
		m.adding = false
		m.input = ""
	case tea.KeyBackspace:
		if runes := []rune(m.input); len(runes) > 0 {
			m.input = string(runes[:len(runes)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		m.input += string(msg.Runes)
	}
	return m, nil
}

func (m *Model) syncSelection() {
	if m.cursor < 0 || m.cursor >= len(m.services) {
		m.selection.Select("")
		return
	}
	m.selection.Select(m.services[m.cursor].ID)
}
