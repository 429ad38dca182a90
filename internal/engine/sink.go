package engine

import (
	"sync"

	"go.uber.org/zap"

	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/permission"
	"github.com/aayushbajaj/trigcap/internal/timer"
)

// Sink receives engine notifications. Calls are made in order from a single
// dispatcher goroutine, never from the engine loop, so a slow sink delays
// only later notifications.
type Sink interface {
	// OnCaptureCompleted fires exactly once per completed capture, including
	// stopped timers.
	OnCaptureCompleted(rec capture.Record)
	// OnTimerConflict asks for a decision, answered through
	// Engine.ResolveConflict. Further timer triggers are ignored until then.
	OnTimerConflict(c timer.Conflict)
	// OnTimerAbandoned fires when a timer trigger timed out before its name
	// was confirmed with Return or Commit. No timer was started.
	OnTimerAbandoned(req capture.TimerRequest)
	OnSessionChanged(s capture.Snapshot)
	OnTimerChanged(s timer.Snapshot)
	OnMonitorDegraded(err error)
	OnPermissionChanged(s permission.State)
}

// NopSink ignores every notification. Embed it to implement part of Sink.
type NopSink struct{}

func (NopSink) OnCaptureCompleted(capture.Record) {}
func (NopSink) OnTimerConflict(timer.Conflict) {}
func (NopSink) OnTimerAbandoned(capture.TimerRequest) {}
func (NopSink) OnSessionChanged(capture.Snapshot) {}
func (NopSink) OnTimerChanged(timer.Snapshot) {}
func (NopSink) OnMonitorDegraded(error) {}
func (NopSink) OnPermissionChanged(permission.State) {}

// Fanout forwards every notification to each sink in order.
type Fanout []Sink

func (f Fanout) OnCaptureCompleted(rec capture.Record) {
	for _, s := range f {
		s.OnCaptureCompleted(rec)
	}
}

func (f Fanout) OnTimerConflict(c timer.Conflict) {
	for _, s := range f {
		s.OnTimerConflict(c)
	}
}

func (f Fanout) OnTimerAbandoned(req capture.TimerRequest) {
	for _, s := range f {
		s.OnTimerAbandoned(req)
	}
}

func (f Fanout) OnSessionChanged(snap capture.Snapshot) {
	for _, s := range f {
		s.OnSessionChanged(snap)
	}
}

func (f Fanout) OnTimerChanged(snap timer.Snapshot) {
	for _, s := range f {
		s.OnTimerChanged(snap)
	}
}

func (f Fanout) OnMonitorDegraded(err error) {
	for _, s := range f {
		s.OnMonitorDegraded(err)
	}
}

func (f Fanout) OnPermissionChanged(state permission.State) {
	for _, s := range f {
		s.OnPermissionChanged(state)
	}
}

// dispatcher is an unbounded FIFO between the engine loop and the sink.
type dispatcher struct {
	sink Sink
	log  *zap.Logger

	mu    sync.Mutex
	queue []func(Sink)
	wake  chan struct{}
}

func newDispatcher(sink Sink, log *zap.Logger) *dispatcher {
	if sink == nil {
		sink = NopSink{}
	}
	return &dispatcher{
		sink: sink,
		log:  log,
		wake: make(chan struct{}, 1),
	}
}

// post never blocks.
func (d *dispatcher) post(fn func(Sink)) {
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// run delivers notifications until stop is closed, then drains what is left.
func (d *dispatcher) run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			d.flush()
			return
		case <-d.wake:
			d.flush()
		}
	}
}

func (d *dispatcher) flush() {
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			d.call(fn)
		}
	}
}

func (d *dispatcher) call(fn func(Sink)) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("sink panicked", zap.Any("panic", r))
		}
	}()
	fn(d.sink)
}
