package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Bus distributes execution events to subscribers with filtering support.
//
// Publish must never block a run's control loop. Each subscriber owns a
// bounded queue; when a subscriber falls behind, the oldest queued event is
// dropped to make room for the new one. Other subscribers are unaffected.
//
// All methods are safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscription
	options     *busOptions
	closed      bool
}

// subscription represents a single subscriber with its queue and lifecycle.
type subscription struct {
	id      string
	ch      chan Event
	filter  Filter
	ctx     context.Context
	cancel  context.CancelFunc
	created time.Time
	dropped atomic.Int64
}

type busOptions struct {
	defaultBufferSize int
	errorHandler      ErrorHandler
}

// ErrorHandler is called when the bus drops an event for a slow subscriber.
type ErrorHandler func(err error, context map[string]any)

// Option is a functional option for configuring a Bus.
type Option func(*busOptions)

// WithDefaultBufferSize sets the queue size used when Subscribe is called
// with bufferSize 0. Default: 64 events.
func WithDefaultBufferSize(size int) Option {
	return func(opts *busOptions) {
		if size > 0 {
			opts.defaultBufferSize = size
		}
	}
}

// WithErrorHandler sets the handler invoked for dropped events.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(opts *busOptions) {
		if handler != nil {
			opts.errorHandler = handler
		}
	}
}

// NewBus creates a Bus with the given options.
func NewBus(opts ...Option) *Bus {
	options := &busOptions{
		defaultBufferSize: 64,
		errorHandler:      func(error, map[string]any) {},
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Bus{
		subscribers: make(map[string]*subscription),
		options:     options,
	}
}

// Publish sends an event to all matching subscribers without blocking.
// When a subscriber's queue is full, its oldest queued event is discarded
// and the new event enqueued in its place (drop-oldest policy).
func (b *Bus) Publish(event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("event bus is closed")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, sub := range b.subscribers {
		select {
		case <-sub.ctx.Done():
			continue
		default:
		}

		if !sub.filter.Matches(event) {
			continue
		}

		select {
		case sub.ch <- event:
		default:
			// Queue full: evict the oldest entry, then enqueue. The eviction
			// may race with the consumer draining the channel, in which case
			// the enqueue simply succeeds without a drop.
			select {
			case <-sub.ch:
				sub.dropped.Add(1)
				b.options.errorHandler(
					fmt.Errorf("dropped oldest event for slow subscriber"),
					map[string]any{
						"subscriber_id": sub.id,
						"event_type":    event.Type,
						"run_id":        event.RunID,
					},
				)
			default:
			}
			select {
			case sub.ch <- event:
			default:
			}
		}
	}

	return nil
}

// Subscribe creates a subscription with optional filtering. The returned
// cleanup function must be called to release the subscription; it closes the
// event channel.
func (b *Bus) Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bufferSize <= 0 {
		bufferSize = b.options.defaultBufferSize
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		id:      nextSubscriberID(),
		ch:      make(chan Event, bufferSize),
		filter:  filter,
		ctx:     subCtx,
		cancel:  cancel,
		created: time.Now(),
	}
	b.subscribers[sub.id] = sub

	cleanup := func() {
		b.unsubscribe(sub.id)
	}
	return sub.ch, cleanup
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subscribers[id]
	if !exists {
		return
	}
	sub.cancel()
	close(sub.ch)
	delete(b.subscribers, id)
}

// Close shuts down the bus and closes all subscriber channels. Idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for id, sub := range b.subscribers {
		sub.cancel()
		close(sub.ch)
		delete(b.subscribers, id)
	}
	return nil
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

var subscriberCounter atomic.Uint64

func nextSubscriberID() string {
	return fmt.Sprintf("sub-%d-%d", time.Now().UnixNano(), subscriberCounter.Add(1))
}
