package view

import (
	"strconv"
	"time"

	"qms/kiosk-service/internal/models"
)

const DefaultWindow = 10

// palette cycles across distribution slices in label order.
var palette = []string{"#FF6384", "#36A2EB", "#FFCE56", "#4BC0C0"}

type Row struct {
	TicketNumber  string `json:"ticket_number"`
	ServiceName   string `json:"service_name"`
	Status        string `json:"status"`
	EstimatedWait string `json:"estimated_wait"`
}

type Point struct {
	At      time.Time `json:"at"`
	Label   string    `json:"label"`
	AvgWait float64   `json:"avg_wait"`
}

type Slice struct {
	Label string `json:"label"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

type AdminFrame struct {
	Rows         []Row   `json:"rows"`
	TotalTickets string  `json:"total_tickets"`
	AvgWaitTime  string  `json:"avg_wait_time"`
	WaitSeries   []Point `json:"wait_series"`
	Distribution []Slice `json:"distribution"`
}

// AdminView owns the ticket table, the two counters and both charts.
type AdminView struct {
	window       int
	rows         []Row
	total        string
	avg          string
	series       []Point
	distribution []Slice
}

// NewAdminView keeps at most window points in the wait series. A
// non-positive window uses DefaultWindow.
func NewAdminView(window int) *AdminView {
	if window <= 0 {
		window = DefaultWindow
	}
	return &AdminView{window: window}
}

// Render replaces the table, counters and distribution, and appends one
// point for at to the wait series.
func (v *AdminView) Render(snapshot models.QueueSnapshot, at time.Time) {
	rows := make([]Row, 0, len(snapshot.Tickets))
	for _, ticket := range snapshot.Tickets {
		rows = append(rows, Row{
			TicketNumber:  ticket.TicketNumber,
			ServiceName:   ticket.ServiceName,
			Status:        ticket.Status,
			EstimatedWait: formatNumber(ticket.EstimatedWaitTime),
		})
	}
	v.rows = rows
	v.total = strconv.Itoa(snapshot.Stats.TotalTickets)
	v.avg = formatNumber(snapshot.Stats.AvgWaitTime)

	v.series = append(v.series, Point{
		At:      at,
		Label:   at.Format("15:04:05"),
		AvgWait: snapshot.Stats.AvgWaitTime,
	})
	if over := len(v.series) - v.window; over > 0 {
		v.series = append([]Point(nil), v.series[over:]...)
	}

	v.distribution = Distribution(snapshot.Tickets)
}

// Distribution counts tickets per service name in order of first appearance.
func Distribution(tickets []models.Ticket) []Slice {
	index := make(map[string]int)
	slices := make([]Slice, 0)
	for _, ticket := range tickets {
		i, ok := index[ticket.ServiceName]
		if !ok {
			i = len(slices)
			index[ticket.ServiceName] = i
			slices = append(slices, Slice{Label: ticket.ServiceName, Color: palette[i%len(palette)]})
		}
		slices[i].Count++
	}
	return slices
}

func (v *AdminView) Frame() AdminFrame {
	return AdminFrame{
		Rows:         append([]Row{}, v.rows...),
		TotalTickets: v.total,
		AvgWaitTime:  v.avg,
		WaitSeries:   append([]Point{}, v.series...),
		Distribution: append([]Slice{}, v.distribution...),
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
