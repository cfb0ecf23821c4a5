package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFanOut(t *testing.T) {
	broker := NewBroker()

	first := broker.Subscribe("session-1")
	second := broker.Subscribe("session-2")
	assert.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(context.Background(), Event{Name: "available-sources", Data: []string{"traffic-1"}})

	for _, sub := range []*Subscriber{first, second} {
		select {
		case event := <-sub.Channel:
			assert.Equal(t, "available-sources", event.Name)
		default:
			t.Fatalf("subscriber %s received nothing", sub.ID)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	broker := NewBroker()

	sub := broker.Subscribe("session-1")
	broker.Unsubscribe("session-1")
	assert.Equal(t, 0, broker.SubscriberCount())

	_, open := <-sub.Channel
	assert.False(t, open)

	// repeated unsubscribe is a no-op
	broker.Unsubscribe("session-1")
}

func TestPublishDropsWhenFull(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe("session-1")

	ctx := context.Background()
	for i := 0; i < 150; i++ {
		broker.Publish(ctx, Event{Name: "available-projects"})
	}

	// buffer is 100; the rest were dropped, publisher never blocked
	require.Equal(t, 100, len(sub.Channel))
}
