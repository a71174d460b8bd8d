package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// publishTimeout bounds how long Publish will block on a single slow
// subscriber before dropping the event for that subscriber. This is what
// keeps event emission from stalling the pipeline beyond a bounded
// interval (spec.md §4.6).
const publishTimeout = 250 * time.Millisecond

const subscriberBuffer = 64

// Bus is an in-process publish/subscribe registry keyed by channel name,
// grounded on ConnectionManager's channel-subscription map but carrying
// typed Events over Go channels instead of raw WebSocket frames —
// ConnectionManager wraps a Bus to fan events out to network clients.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Event
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]map[string]chan Event)}
}

// Subscribe registers a new subscriber on channel and returns its event
// stream and an Unsubscribe function. Callers must call Unsubscribe when
// done to release the buffered channel.
func (b *Bus) Subscribe(channel string) (<-chan Event, func()) {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[string]chan Event)
	}
	b.subscribers[channel][id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subscribers[channel]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.subscribers, channel)
			}
		}
		close(ch)
	}
	return ch, unsubscribe
}

// Publish fans event out to every subscriber of channel. Ordering is FIFO
// per channel since Publish holds the read lock for the full fan-out; a
// slow subscriber is skipped after publishTimeout rather than blocking
// the rest of the pipeline.
func (b *Bus) Publish(channel string, event Event) {
	b.mu.RLock()
	subs := make([]chan Event, 0, len(b.subscribers[channel]))
	for _, ch := range b.subscribers[channel] {
		subs = append(subs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		case <-time.After(publishTimeout):
		}
	}
}

// SubscriberCount reports how many subscribers are attached to channel.
func (b *Bus) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[channel])
}
