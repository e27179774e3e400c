package console

import (
	"fmt"
	"strings"

	"qms/kiosk-service/internal/view"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	alertStyle    = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)
	countdownStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

func (m *Model) View() string {
	var b strings.Builder
	switch m.screen {
	case ScreenVisitor:
		m.renderVisitor(&b)
	case ScreenTicket:
		m.renderTicket(&b)
	case ScreenAdmin:
		m.renderAdmin(&b)
	}
	if m.alert != "" {
		b.WriteString("\n")
		b.WriteString(alertStyle.Render(m.alert))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("press any key"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *Model) renderVisitor(b *strings.Builder) {
	b.WriteString(titleStyle.Render("Take a ticket"))
	b.WriteString("\n")
	fmt.Fprintf(b, "%s %s\n\n", labelStyle.Render("Estimated wait:"), m.visitor.EstimatedWait)
	m.renderServices(b)
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ choose • enter take ticket • a admin • q quit"))
}

func (m *Model) renderServices(b *strings.Builder) {
	if len(m.services) == 0 {
		b.WriteString(labelStyle.Render("No services available."))
		b.WriteString("\n")
		return
	}
	for i, service := range m.services {
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + service.Name))
		} else {
			b.WriteString("  " + service.Name)
		}
		b.WriteString("\n")
	}
}

func (m *Model) renderTicket(b *strings.Builder) {
	b.WriteString(titleStyle.Render("Your ticket"))
	b.WriteString("\n")
	if !m.loaded {
		b.WriteString(labelStyle.Render("Loading..."))
		return
	}
	d := m.details
	fmt.Fprintf(b, "%s %s\n", labelStyle.Render("Number: "), d.TicketNumber)
	fmt.Fprintf(b, "%s %s\n", labelStyle.Render("Service:"), d.ServiceName)
	if d.Status != "" {
		fmt.Fprintf(b, "%s %s\n", labelStyle.Render("Status: "), d.Status)
	}
	fmt.Fprintf(b, "%s %s\n\n", labelStyle.Render("Wait:   "), d.WaitLabel)
	if d.Populated {
		b.WriteString(countdownStyle.Render(m.countdown.Display()))
		b.WriteString("\n\n")
	}
	help := "b back • q quit"
	if d.Populated && d.CanCancel {
		help = "c cancel ticket • " + help
	}
	b.WriteString(helpStyle.Render(help))
}

func (m *Model) renderAdmin(b *strings.Builder) {
	frame := m.admin
	b.WriteString(titleStyle.Render("Queue dashboard"))
	b.WriteString("\n")
	fmt.Fprintf(b, "%s %s   %s %s\n\n",
		labelStyle.Render("Total tickets:"), orDash(frame.TotalTickets),
		labelStyle.Render("Average wait:"), orDash(frame.AvgWaitTime))

	fmt.Fprintf(b, "%-10s %-20s %-10s %s\n", "Number", "Service", "Status", "Wait")
	for _, row := range frame.Rows {
		fmt.Fprintf(b, "%-10s %-20s %-10s %s\n", row.TicketNumber, row.ServiceName, row.Status, row.EstimatedWait)
	}

	b.WriteString("\n")
	fmt.Fprintf(b, "%s %s\n", labelStyle.Render("Average wait trend:"), Sparkline(frame.WaitSeries))
	for _, slice := range frame.Distribution {
		bar := lipgloss.NewStyle().Foreground(lipgloss.Color(slice.Color)).Render(strings.Repeat("█", slice.Count))
		fmt.Fprintf(b, "%-20s %s %d\n", slice.Label, bar, slice.Count)
	}

	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Services"))
	b.WriteString("\n")
	m.renderServices(b)
	if m.adding {
		fmt.Fprintf(b, "\n%s %s█\n", labelStyle.Render("New service name:"), m.input)
		b.WriteString(helpStyle.Render("enter save • esc discard"))
		return
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ choose • n new service • d delete • v visitor • q quit"))
}

// Sparkline draws one block per point scaled to the largest value.
func Sparkline(points []view.Point) string {
	if len(points) == 0 {
		return "-"
	}
	peak := 0.0
	for _, p := range points {
		peak = max(peak, p.AvgWait)
	}
	var b strings.Builder
	for _, p := range points {
		level := 0
		if peak > 0 && p.AvgWait > 0 {
			level = int(p.AvgWait / peak * float64(len(sparkBlocks)-1))
		}
		b.WriteRune(sparkBlocks[level])
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
