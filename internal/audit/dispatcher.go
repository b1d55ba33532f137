package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher relays events to a sink from a single background goroutine.
// A nil *Dispatcher is valid and drops everything.
//
// Dropped events are counted per outcome key so a backlog of, say,
// serverError failures is visible separately from successes.
type Dispatcher struct {
	cfg   Config
	sink  Sink
	queue chan Event
	stop  chan struct{}
	idle  sync.WaitGroup

	closing  atomic.Bool
	stopOnce sync.Once

	dropMu  sync.Mutex
	dropped map[string]uint64
	total   atomic.Uint64
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		queue:   make(chan Event, cfg.BufferSize),
		stop:    make(chan struct{}),
		dropped: make(map[string]uint64),
	}
	d.idle.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.idle.Done()
	ctx := context.Background()

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(ctx, event)
		case <-d.stop:
			// Deliver what was queued before Close; later sends are refused.
			for n := len(d.queue); n > 0; n-- {
				d.sink.Emit(ctx, <-d.queue)
			}
			return
		}
	}
}

// Emit queues event. With DropIfFull a full buffer records a drop instead of
// blocking; otherwise Emit blocks until queued, ctx is done, or Close runs.
// An event that never reaches the queue is recorded as dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if d.closing.Load() {
		d.drop(event)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		default:
			d.drop(event)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.drop(event)
	case <-d.stop:
		d.drop(event)
	}
}

func (d *Dispatcher) drop(event Event) {
	d.total.Add(1)
	d.dropMu.Lock()
	d.dropped[event.OutcomeKey()]++
	d.dropMu.Unlock()
}

// Close stops the dispatcher after flushing queued events. Safe to call twice.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		d.idle.Wait()
	})
}

// Dropped returns how many events were dropped in total.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.total.Load()
}

// DroppedByOutcome returns a copy of the drop counts keyed by
// [Event.OutcomeKey].
func (d *Dispatcher) DroppedByOutcome() map[string]uint64 {
	out := map[string]uint64{}
	if d == nil {
		return out
	}
	d.dropMu.Lock()
	defer d.dropMu.Unlock()
	for k, v := range d.dropped {
		out[k] = v
	}
	return out
}
