package events

import (
	"context"
	"sync"

	"github.com/astrikos/mapstream/internal/metrics"
)

// Event is a catalog-change notification fanned out to every connected
// session, carrying the outbound event name and its payload.
type Event struct {
	Name string
	Data interface{}
}

type Subscriber struct {
	ID      string
	Channel chan Event
}

// Broker fans catalog-change events out to all connected sessions.
// Subscription-scoped data never passes through it; pollers deliver on
// the owning connection only.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string]*Subscriber),
	}
}

func (b *Broker) Subscribe(id string) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ID:      id,
		Channel: make(chan Event, 100),
	}
	b.subscribers[id] = sub
	return sub
}

func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, exists := b.subscribers[id]; exists {
		close(sub.Channel)
		delete(b.subscribers, id)
	}
}

func (b *Broker) Publish(ctx context.Context, event Event) {
	metrics.BroadcastsTotal.WithLabelValues(event.Name).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub.Channel <- event:
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
