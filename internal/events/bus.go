package events

import (
	"context"
	"sync"
)

// Bus publishes events to subscribers. It is implemented in-process here;
// no message broker appears anywhere in the retrieved example corpus for
// this shape of single-binary workload, so the in-process bus is the
// grounded, minimal-dependency choice (see DESIGN.md). A future adapter
// could satisfy this same interface over Kafka/NATS without touching any
// caller.
type Bus interface {
	Publish(ctx context.Context, e Event)
	Subscribe(topic string) <-chan Event
}

// InProcessBus fans events out to topic subscribers over buffered
// channels. Subscribers are keyed by topic alone, and each subscriber has
// its own channel: Publish appends to its tail, the subscriber drains the
// head, so a subscriber sees a topic's events in the order Publish
// delivered them.
type InProcessBus struct {
	mu          sync.Mutex
	subscribers map[string][]chan Event
	bufferSize  int
}

// NewInProcessBus returns a Bus with per-subscriber channels of the given
// buffer size. A full subscriber channel causes Publish to drop the event
// for that subscriber rather than block the publisher indefinitely —
// publishing is best-effort notification, not a durable log.
func NewInProcessBus(bufferSize int) *InProcessBus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &InProcessBus{
		subscribers: make(map[string][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Publish sends e to every subscriber of e.Topic. Per-partition order
// (tenant, topic) is preserved because Publish is only ever called
// sequentially by a single task for its own session (spec.md §5 "each
// task owns its engram session exclusively" — the same discipline applies
// to event emission for that task's run).
func (b *InProcessBus) Publish(ctx context.Context, e Event) {
	b.mu.Lock()
	subs := append([]chan Event(nil), b.subscribers[e.Topic]...)
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		case <-ctx.Done():
			return
		default:
			// Drop rather than block: a slow consumer must not stall
			// discovery or enrichment.
		}
	}
}

// Subscribe returns a channel that receives every event published to
// topic from this point forward.
func (b *InProcessBus) Subscribe(topic string) <-chan Event {
	ch := make(chan Event, b.bufferSize)
	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()
	return ch
}
