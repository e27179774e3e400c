package view

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"qms/kiosk-service/internal/clock"
	"qms/kiosk-service/internal/models"
	"qms/kiosk-service/internal/notify"
	"qms/kiosk-service/internal/queuestatus"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)

func exampleSnapshot() models.QueueSnapshot {
	return models.QueueSnapshot{
		Tickets: []models.Ticket{
			{TicketNumber: "A1", ServiceName: "Haircut", Status: "waiting", EstimatedWaitTime: 4.2},
			{TicketNumber: "A2", ServiceName: "Color", Status: "waiting", EstimatedWaitTime: 12.8},
		},
		Stats: models.QueueStats{TotalTickets: 2, AvgWaitTime: 8.5},
	}
}

func TestAdminRenderExample(t *testing.T) {
	v := NewAdminView(0)
	v.Render(exampleSnapshot(), epoch)
	frame := v.Frame()

	require.Equal(t, []Row{
		{TicketNumber: "A1", ServiceName: "Haircut", Status: "waiting", EstimatedWait: "4.2"},
		{TicketNumber: "A2", ServiceName: "Color", Status: "waiting", EstimatedWait: "12.8"},
	}, frame.Rows)
	require.Equal(t, "2", frame.TotalTickets)
	require.Equal(t, "8.5", frame.AvgWaitTime)
	require.Equal(t, []Slice{
		{Label: "Haircut", Count: 1, Color: palette[0]},
		{Label: "Color", Count: 1, Color: palette[1]},
	}, frame.Distribution)
	require.Equal(t, []Point{{At: epoch, Label: "08:00:00", AvgWait: 8.5}}, frame.WaitSeries)
}

func TestAdminRenderReplacesTable(t *testing.T) {
	v := NewAdminView(DefaultWindow)
	v.Render(exampleSnapshot(), epoch)
	v.Render(models.QueueSnapshot{
		Tickets: []models.Ticket{{TicketNumber: "B7", ServiceName: "Shave", Status: "called"}},
		Stats:   models.QueueStats{TotalTickets: 1},
	}, epoch.Add(5*time.Second))

	frame := v.Frame()
	require.Len(t, frame.Rows, 1)
	require.Equal(t, "B7", frame.Rows[0].TicketNumber)
	require.Equal(t, "0", frame.Rows[0].EstimatedWait)
	require.Equal(t, []Slice{{Label: "Shave", Count: 1, Color: palette[0]}}, frame.Distribution)
	require.Len(t, frame.WaitSeries, 2)
}

func TestWaitSeriesKeepsLastWindow(t *testing.T) {
	v := NewAdminView(10)
	for i := 1; i <= 11; i++ {
		snapshot := models.QueueSnapshot{Stats: models.QueueStats{AvgWaitTime: float64(i)}}
		v.Render(snapshot, epoch.Add(time.Duration(i)*5*time.Second))
		require.LessOrEqual(t, len(v.Frame().WaitSeries), 10)
	}

	series := v.Frame().WaitSeries
	require.Len(t, series, 10)
	for i, point := range series {
		require.Equal(t, float64(i+2), point.AvgWait)
	}
	require.Equal(t, "08:00:10", series[0].Label)
}

func TestDistributionSumsToTickets(t *testing.T) {
	names := []string{"Teller", "Loans", "Teller", "Cards", "Loans", "Teller", "Forex", "Payroll"}
	var tickets []models.Ticket
	present := map[string]bool{}
	for _, name := range names {
		tickets = append(tickets, models.Ticket{ServiceName: name})
		present[name] = true
	}

	slices := Distribution(tickets)
	sum := 0
	for _, s := range slices {
		sum += s.Count
		require.True(t, present[s.Label], s.Label)
	}
	require.Equal(t, len(tickets), sum)
	require.Equal(t, "Teller", slices[0].Label)
	require.Equal(t, 3, slices[0].Count)
	require.Len(t, slices, 5)
	require.Equal(t, palette[3], slices[3].Color)
	require.Equal(t, "Payroll", slices[4].Label)
	require.Equal(t, palette[0], slices[4].Color)
	require.Empty(t, Distribution(nil))
}

func TestFrameIsACopy(t *testing.T) {
	v := NewAdminView(3)
	v.Render(exampleSnapshot(), epoch)
	frame := v.Frame()
	frame.Rows[0].TicketNumber = "changed"
	frame.WaitSeries[0].AvgWait = -1

	again := v.Frame()
	require.Equal(t, "A1", again.Rows[0].TicketNumber)
	require.Equal(t, 8.5, again.WaitSeries[0].AvgWait)
}

func TestVisitorLabel(t *testing.T) {
	v := NewVisitorView()
	require.Equal(t, placeholderWait, v.Frame().EstimatedWait)

	v.Render(exampleSnapshot())
	require.Equal(t, "9 min", v.Frame().EstimatedWait)

	v.Render(models.QueueSnapshot{})
	require.Equal(t, "0 min", v.Frame().EstimatedWait)
	require.Equal(t, "1 min", WaitLabel(0.01))
	require.Equal(t, "3 min", WaitLabel(3))
}

type sequenceSource struct {
	replies chan reply
}

type reply struct {
	snapshot models.QueueSnapshot
	err      error
}

func (s *sequenceSource) QueueSnapshot(ctx context.Context) (models.QueueSnapshot, error) {
	select {
	case r := <-s.replies:
		return r.snapshot, r.err
	case <-ctx.Done():
		return models.QueueSnapshot{}, ctx.Err()
	}
}

func TestFailedPollLeavesViewsUnchanged(t *testing.T) {
	clk := clock.Fake(epoch)
	source := &sequenceSource{replies: make(chan reply, 1)}
	poller := queuestatus.New(source, queuestatus.Options{
		Interval: 5 * time.Second,
		Clock:    clk,
		Notifier: &notify.Recorder{},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	admins := make(chan AdminFrame, 4)
	visitors := make(chan VisitorFrame, 4)
	synchronizer := &Synchronizer{
		Visitor:   NewVisitorView(),
		Admin:     NewAdminView(DefaultWindow),
		OnVisitor: func(f VisitorFrame) { visitors <- f },
		OnAdmin:   func(f AdminFrame) { admins <- f },
	}
	task := synchronizer.Mount(context.Background(), poller)

	source.replies <- reply{snapshot: exampleSnapshot()}
	clk.Advance(5 * time.Second)
	before := waitFrame(t, admins)
	<-visitors

	source.replies <- reply{err: errors.New("connection refused")}
	clk.Advance(5 * time.Second)
	// Blocks until the failing poll has taken its reply.
	source.replies <- reply{err: errors.New("unused")}
	task.Stop()

	select {
	case f := <-admins:
		t.Fatalf("admin frame published after failed poll: %+v", f)
	default:
	}
	require.Equal(t, before, synchronizer.Admin.Frame())
	require.Equal(t, "9 min", synchronizer.Visitor.Frame().EstimatedWait)
}

func waitFrame(t *testing.T, frames chan AdminFrame) AdminFrame {
	t.Helper()
	select {
	case f := <-frames:
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame published")
		return AdminFrame{}
	}
}
