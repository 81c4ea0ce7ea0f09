package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mediaprep/internal/logging"
	"mediaprep/internal/queue"
)

// Event describes one lifecycle transition of a queue item.
type Event struct {
	ItemID         int64
	Key            string
	PreviousStatus queue.Status
	NewStatus      queue.Status
	Step           string
	Err            string
	Timestamp      time.Time
}

// Subscriber receives lifecycle events. Implementations own their delivery
// semantics; delivery order across subscribers is unspecified.
type Subscriber interface {
	Notify(ctx context.Context, event Event)
}

const subscriberBuffer = 64

type subscription struct {
	events chan Event
	done   chan struct{}
}

// Bus fans lifecycle events out to attached subscribers. Each subscriber
// drains its own buffered channel on a dedicated goroutine; when a buffer
// fills, new events for that subscriber are dropped so a slow consumer can
// never stall the scheduler.
type Bus struct {
	mu      sync.Mutex
	nextID  int64
	subs    map[int64]*subscription
	dropped int64
	logger  *slog.Logger
	wg      sync.WaitGroup
	closed  bool
}

// NewBus builds an event bus. A nil logger disables drop diagnostics.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{
		subs:   make(map[int64]*subscription),
		logger: logger.With(logging.String(logging.FieldComponent, "notifications")),
	}
}

// Attach registers a subscriber and returns a handle for Detach.
func (b *Bus) Attach(subscriber Subscriber) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}

	b.nextID++
	id := b.nextID
	sub := &subscription{
		events: make(chan Event, subscriberBuffer),
		done:   make(chan struct{}),
	}
	b.subs[id] = sub

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case event, ok := <-sub.events:
				if !ok {
					return
				}
				subscriber.Notify(context.Background(), event)
			case <-sub.done:
				return
			}
		}
	}()
	return id
}

// Detach removes a subscriber. Buffered events for it are discarded.
func (b *Bus) Detach(id int64) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if ok {
		close(sub.done)
	}
}

// Publish delivers the event to every subscriber without blocking. Events
// that cannot be buffered are dropped and counted.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.events <- event:
		default:
			b.dropped++
			b.logger.Warn("event dropped",
				logging.Int64(logging.FieldItemID, event.ItemID),
				logging.String("status", string(event.NewStatus)))
		}
	}
}

// Dropped returns the count of events discarded due to full buffers.
func (b *Bus) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close detaches every subscriber and waits for their drain goroutines.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = map[int64]*subscription{}
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.done)
	}
	b.wg.Wait()
}
