package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/mozoqr/utils"
)

var (
	ErrQueueFull       = errors.New("event queue full")
	ErrPublisherClosed = errors.New("event publisher closed")
)

// Async queues events for a single background worker that delivers them to
// next in order. Publish never waits on next; a full queue drops the event.
type Async struct {
	next    Publisher
	timeout time.Duration
	queue   chan Event
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts the worker. Each delivery gets its own timeout since the
// caller's context usually ends with its request.
func NewAsync(next Publisher, size int, timeout time.Duration) *Async {
	if size < 1 {
		size = 1
	}
	a := &Async{
		next:    next,
		timeout: timeout,
		queue:   make(chan Event, size),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Publish(_ context.Context, event Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrPublisherClosed
	}
	select {
	case a.queue <- event:
		return nil
	default:
		return fmt.Errorf("%w: dropped %s", ErrQueueFull, event.Type)
	}
}

// Close stops accepting events and waits until the queue is drained or ctx
// is done.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) run() {
	defer close(a.done)
	for event := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Publish(ctx, event); err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"type":     event.Type,
				"order_id": event.OrderID,
			}).Warnf("Deliver event: %v", err)
		}
		cancel()
	}
}
