// Package queuestatus polls the backend for the live queue snapshot and
// hands results to the views in issue order.
package queuestatus

import (
	"context"
	"expvar"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"qms/kiosk-service/internal/clock"
	"qms/kiosk-service/internal/models"
	"qms/kiosk-service/internal/notify"
)

const DefaultInterval = 5 * time.Second

var (
	pollsTotal  = expvar.NewInt("polls_total")
	pollsFailed = expvar.NewInt("polls_failed_total")
	pollsStale  = expvar.NewInt("polls_stale_total")
)

type Source interface {
	QueueSnapshot(ctx context.Context) (models.QueueSnapshot, error)
}

type Options struct {
	Interval time.Duration
	// Timeout bounds a single request. Zero leaves it to the source.
	Timeout  time.Duration
	Clock    clock.Clock
	Notifier notify.Notifier
	Logger   *slog.Logger
}

// Result is one successful snapshot. Seq grows with issue order, not
// arrival order.
type Result struct {
	Seq      uint64
	Snapshot models.QueueSnapshot
	At       time.Time
}

type Poller struct {
	source   Source
	interval time.Duration
	timeout  time.Duration
	clock    clock.Clock
	notifier notify.Notifier
	logger   *slog.Logger
	seq      atomic.Uint64
}

func New(source Source, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Logger(opts.Logger)
	}
	return &Poller{
		source:   source,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		clock:    opts.Clock,
		notifier: opts.Notifier,
		logger:   opts.Logger,
	}
}

func (p *Poller) Interval() time.Duration { return p.interval }

// Poll issues one snapshot request. A failure is reported through the
// notifier and returned; the caller keeps whatever it showed before.
func (p *Poller) Poll(ctx context.Context) (Result, error) {
	seq := p.seq.Add(1)
	pollsTotal.Add(1)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	snapshot, err := p.source.QueueSnapshot(ctx)
	if err != nil {
		pollsFailed.Add(1)
		err = fmt.Errorf("poll queue status: %w", err)
		p.notifier.Notify(ctx, notify.Failure(notify.ActionPollQueue, err))
		return Result{Seq: seq}, err
	}
	return Result{Seq: seq, Snapshot: snapshot, At: p.clock.Now()}, nil
}

// Task is a running poll loop. Create one with Start.
type Task struct {
	cancel context.CancelFunc
	ticker *clock.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	mu      sync.Mutex
	applied uint64
	ctx     context.Context
}

// Start polls once per interval, first after one interval has passed.
// Requests are not de-duplicated: a slow response does not hold back the
// next tick. apply receives successful results one at a time; a result
// issued before one already applied is dropped. Nothing is applied after
// Stop returns.
func (p *Poller) Start(ctx context.Context, apply func(Result)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		cancel: cancel,
		ticker: p.clock.NewTicker(p.interval),
		done:   make(chan struct{}),
		ctx:    ctx,
	}
	go t.loop(p, apply)
	return t
}

func (t *Task) loop(p *Poller, apply func(Result)) {
	defer close(t.done)
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-t.ticker.C:
		}
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			result, err := p.Poll(t.ctx)
			if err != nil {
				return
			}
			t.deliver(p.logger, result, apply)
		}()
	}
}

func (t *Task) deliver(logger *slog.Logger, result Result, apply func(Result)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx.Err() != nil {
		return
	}
	if result.Seq <= t.applied {
		pollsStale.Add(1)
		logger.Debug("dropping stale queue snapshot", "seq", result.Seq, "applied", t.applied)
		return
	}
	t.applied = result.Seq
	apply(result)
}

// Stop ends the loop, abandons requests in flight and waits for them to
// return. Safe to call more than once.
func (t *Task) Stop() {
	t.once.Do(func() {
		t.cancel()
		t.ticker.Stop()
	})
	<-t.done
	t.wg.Wait()
}
