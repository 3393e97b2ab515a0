package notifier

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Sink receives events from the Dispatcher's worker. Unlike Notifier, a Sink
// may block and may fail.
type Sink interface {
	Publish(event Event) error
}

// DispatcherOptions contains the configuration for the Dispatcher
type DispatcherOptions struct {
	Sink   Sink
	Logger *zap.Logger
	// Buffer is the outbound queue size. Defaults to 64.
	Buffer int
}

// Dispatcher decouples the engines from event delivery: Notify enqueues onto
// a buffered channel and returns immediately, a single worker goroutine
// drains the queue into the Sink. If the queue is full the event is dropped
// with a warning, so a slow or down broker can never block a billing
// operation.
type Dispatcher struct {
	DispatcherOptions
	queue chan Event
	done  chan struct{}
}

var _ Notifier = &Dispatcher{}

// NewDispatcher returns a started Dispatcher
func NewDispatcher(option DispatcherOptions) (*Dispatcher, error) {
	if option.Sink == nil {
		return nil, fmt.Errorf("nil Sink is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.Buffer <= 0 {
		option.Buffer = 64
	}
	d := &Dispatcher{
		DispatcherOptions: option,
		queue:             make(chan Event, option.Buffer),
		done:              make(chan struct{}),
	}
	go d.run()
	return d, nil
}

// Notify implements Notifier. It never blocks the caller.
func (d *Dispatcher) Notify(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	select {
	case d.queue <- event:
	default:
		d.Logger.Warn("Notification queue is full, dropping event",
			zap.String("Kind", string(event.Kind)),
			zap.String("UserID", event.UserID),
		)
	}
}

func (d *Dispatcher) run() {
	for {
		select {
		case event := <-d.queue:
			if err := d.Sink.Publish(event); err != nil {
				d.Logger.Error("Unable to publish notification",
					zap.Error(err),
					zap.String("Kind", string(event.Kind)),
				)
				// fail through: notification delivery is best-effort
			}
		case <-d.done:
			return
		}
	}
}

// Close stops the worker. Events still queued are dropped.
func (d *Dispatcher) Close() {
	close(d.done)
}
