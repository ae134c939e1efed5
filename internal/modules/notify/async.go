// README: Buffered publisher; request paths enqueue events and one worker delivers them in order.
package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"carpool/internal/observability"
)

var (
	ErrQueueFull = errors.New("event queue full; event dropped")
	ErrClosed    = errors.New("publisher closed")
)

type queued struct {
	ctx context.Context
	e   Event
}

// Async hands events to a background worker. Publish never blocks; when the
// buffer is full the event is dropped and ErrQueueFull returned.
type Async struct {
	next  Publisher
	log   logrus.FieldLogger
	queue chan queued
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsync(next Publisher, buffer int, log logrus.FieldLogger) *Async {
	if buffer < 1 {
		buffer = 1
	}
	a := &Async{
		next:  next,
		log:   log,
		queue: make(chan queued, buffer),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Publish(ctx context.Context, e Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- queued{ctx: context.WithoutCancel(ctx), e: e}:
		return nil
	default:
		observability.EventsDroppedTotal.Inc()
		return ErrQueueFull
	}
}

// Close stops accepting events and waits until the queue has drained.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *Async) run() {
	defer close(a.done)
	for q := range a.queue {
		if err := a.next.Publish(q.ctx, q.e); err != nil {
			a.log.WithError(err).WithFields(logrus.Fields{"event": q.e.Type, "ride_id": q.e.RideID}).Warn("event delivery failed")
		}
	}
}
