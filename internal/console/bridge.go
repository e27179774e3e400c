package console

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Bridge forwards messages from background tasks (poll loops, countdowns)
// into the bubbletea program in order. Send never blocks, so a task can be
// stopped from inside Update while it is delivering.
type Bridge struct {
	mu    sync.Mutex
	sink  func(tea.Msg)
	queue []tea.Msg
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewBridge() *Bridge {
	b := &Bridge{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go b.pump()
	return b
}

// SetProgram starts delivery. Messages sent earlier are held until then.
func (b *Bridge) SetProgram(program *tea.Program) {
	b.setSink(program.Send)
}

func (b *Bridge) setSink(sink func(tea.Msg)) {
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()
	b.signal()
}

func (b *Bridge) Send(msg tea.Msg) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	b.signal()
}

func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) pump() {
	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
		}
		for {
			b.mu.Lock()
			if b.sink == nil || len(b.queue) == 0 {
				b.mu.Unlock()
				break
			}
			msg, sink := b.queue[0], b.sink
			b.queue = b.queue[1:]
			b.mu.Unlock()
			sink(msg)
		}
	}
}
