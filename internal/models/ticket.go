package models

type Service struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Ticket is the backend's view of one visitor's queue position. Status and
// EstimatedWaitTime (minutes) are owned by the backend and may change
// between reads.
type Ticket struct {
	ID                ID      `json:"id,omitempty"`
	ServiceID         ID      `json:"service_id,omitempty"`
	ServiceName       string  `json:"service_name,omitempty"`
	TicketNumber      string  `json:"ticket_number"`
	Status            string  `json:"status,omitempty"`
	EstimatedWaitTime float64 `json:"estimated_wait_time"`
	QueuePosition     int     `json:"queue_position,omitempty"`
}

type QueueStats struct {
	TotalTickets int     `json:"total_tickets"`
	AvgWaitTime  float64 `json:"avg_wait_time"`
}

type QueueSnapshot struct {
	Tickets []Ticket   `json:"tickets"`
	Stats   QueueStats `json:"stats"`
}

const (
	StatusWaiting   = "waiting"
	StatusCalled    = "called"
	StatusServed    = "served"
	StatusCancelled = "cancelled"
)

func IsTerminal(status string) bool {
	return status == StatusServed || status == StatusCancelled
}
