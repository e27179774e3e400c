// Package countdown runs the local once-per-second wait countdown shown on
// a ticket view. It is seeded once from the backend's estimate and never
// re-synchronized afterwards.
package countdown

import (
	"fmt"
	"math"
	"sync"
	"time"

	"qms/kiosk-service/internal/clock"
)

const TerminalMessage = "It's your turn!"

const tickInterval = time.Second

// MaxSeedSeconds caps a countdown at one day.
const MaxSeedSeconds = 24 * 60 * 60

// SeedSeconds converts an estimate in minutes to whole seconds, rounding up
// and capping at MaxSeedSeconds.
func SeedSeconds(minutes float64) int {
	if minutes <= 0 || math.IsNaN(minutes) {
		return 0
	}
	if minutes*60 >= MaxSeedSeconds {
		return MaxSeedSeconds
	}
	// Round away float noise first so 0.4*60 seeds 24, not 25.
	seconds := math.Round(minutes*60*1e6) / 1e6
	return int(math.Ceil(seconds))
}

type State struct {
	Remaining int `json:"remaining_seconds"`
}

func (s State) Expired() bool { return s.Remaining <= 0 }

// Clock formats the remaining time as mm:ss.
func (s State) Clock() string {
	remaining := s.Remaining
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf("%02d:%02d", remaining/60, remaining%60)
}

func (s State) Display() string {
	if s.Expired() {
		return TerminalMessage
	}
	return "Time remaining: " + s.Clock()
}

// Timer is a running countdown. Create one with Start.
type Timer struct {
	ticker *clock.Ticker
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Start renders the seed immediately and then once per tick, decrementing
// by one second each time. A zero seed renders the terminal state at once
// and never ticks. render is called from a single goroutine at a time.
func Start(clk clock.Clock, seconds int, render func(State)) *Timer {
	if seconds < 0 {
		seconds = 0
	}
	t := &Timer{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	render(State{Remaining: seconds})
	if seconds == 0 {
		close(t.done)
		return t
	}

	t.ticker = clk.NewTicker(tickInterval)
	go t.run(seconds, render)
	return t
}

func (t *Timer) run(remaining int, render func(State)) {
	defer close(t.done)
	defer t.ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-t.ticker.C:
		}
		// A tick and a stop can be ready together; the view may already be gone.
		select {
		case <-t.stop:
			return
		default:
		}
		remaining--
		render(State{Remaining: remaining})
		if remaining == 0 {
			return
		}
	}
}

// Stop tears the countdown down. Safe to call more than once and after the
// countdown finished on its own. No render happens after Stop returns.
func (t *Timer) Stop() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}

// Done is closed when the countdown reaches zero or is stopped.
func (t *Timer) Done() <-chan struct{} { return t.done }
