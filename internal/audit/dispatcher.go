package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls how session lifecycle events are buffered on their way to
// the sink.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher decouples session operations from sink latency: Emit enqueues
// and returns, a single delivery goroutine drains toward the sink. With
// DropIfFull a full buffer sheds the event and counts it; otherwise Emit
// waits for space, the caller's context, or shutdown.
//
// A nil *Dispatcher is valid and inert. Disabled auditing is represented as
// nil everywhere in the module, so no call site branches on enablement.
type Dispatcher struct {
	sink   Sink
	events chan Event
	quit   chan struct{}
	block  bool

	dropped atomic.Uint64
	stopped atomic.Bool
	stop    sync.Once
	drained sync.WaitGroup
}

// NewDispatcher returns nil when auditing is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:   sink,
		events: make(chan Event, buffer),
		quit:   make(chan struct{}),
		block:  !cfg.DropIfFull,
	}
	d.drained.Add(1)
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer d.drained.Done()
	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		case <-d.quit:
			d.flush()
			return
		}
	}
}

// flush hands the remaining buffer to the sink so Close never discards
// events that were already accepted.
func (d *Dispatcher) flush() {
	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit enqueues one event. Events arriving without a timestamp are stamped
// here, so every sink sees a complete record regardless of the producer.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.stopped.Load() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if !d.block {
		select {
		case d.events <- event:
		case <-d.quit:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close stops intake, flushes whatever the buffer still holds, and waits
// for delivery to finish. Safe to call more than once and on nil.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stop.Do(func() {
		d.stopped.Store(true)
		close(d.quit)
		d.drained.Wait()
	})
}

// Dropped reports how many events were shed under backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
