// internal/hub/events.go
package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType names a hub notification.
type EventType string

const (
	EventStarted  EventType = "disturbance_started"
	EventStopped  EventType = "disturbance_stopped"
	EventRestored EventType = "disturbance_restored"
	EventRise     EventType = "pressure_rise"
)

// Event is one hub notification. Fields not meaningful for a type are zero.
type Event struct {
	ID      uuid.UUID
	Type    EventType
	Channel int
	At      time.Time

	// started / rise
	From float64
	To   float64

	// started
	Rate     float64 // units per second
	Duration time.Duration

	// stopped / restored: the setpoint put back
	Target float64
}

func newEvent(t EventType, channel int) Event {
	return Event{ID: uuid.New(), Type: t, Channel: channel, At: time.Now()}
}

// Bus fans events out to any number of subscribers.
// Delivery is synchronous and in subscription order.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
	ids  []int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) (cancel func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.ids = append(b.ids, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			for i, v := range b.ids {
				if v == id {
					b.ids = append(b.ids[:i], b.ids[i+1:]...)
					break
				}
			}
		})
	}
}

// SubscribeChan delivers events into a buffered channel.
// Events are dropped when the buffer is full so a slow reader never stalls the hub.
func (b *Bus) SubscribeChan(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	cancel := b.Subscribe(func(e Event) {
		select {
		case ch <- e:
		default:
		}
	})
	return ch, cancel
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.ids))
	for _, id := range b.ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
