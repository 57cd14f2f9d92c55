// Package notify broadcasts engine state updates to in-process subscribers.
package notify

import (
	"sync"

	"github.com/google/uuid"

	"github.com/osa030/shufflebox/internal/app/engine"
	"github.com/osa030/shufflebox/internal/app/telemetry"
	"github.com/osa030/shufflebox/internal/domain/song"
)

// Update is a snapshot of the engine pushed to subscribers after every
// state change.
type Update struct {
	Playback engine.Playback
	Current  song.Song
	Upcoming []song.Song
	Pool     []song.Song
	Revision uint64
	Drift    telemetry.Stats
}

// subscription holds one subscriber's delivery channel.
type subscription struct {
	id string
	ch chan Update
}

// Broadcaster fans updates out to subscribers. Slow subscribers drop
// updates rather than block the engine.
type Broadcaster struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe registers a subscriber and returns its ID and delivery channel.
// The channel is buffered; only the most recent updates matter, so a full
// buffer sheds the oldest pending delivery.
func (b *Broadcaster) Subscribe() (string, <-chan Update) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	sub := &subscription{
		id: id,
		ch: make(chan Update, 8),
	}
	b.subscriptions[id] = sub
	return id, sub.ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscriptions[subscriptionID]; ok {
		delete(b.subscriptions, subscriptionID)
		close(sub.ch)
	}
}

// Broadcast delivers an update to every subscriber without blocking.
func (b *Broadcaster) Broadcast(update Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscriptions {
		select {
		case sub.ch <- update:
		default:
			// Shed the oldest pending update to make room for the newest.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- update:
			default:
			}
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// Close removes all subscriptions and closes their channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscriptions {
		delete(b.subscriptions, id)
		close(sub.ch)
	}
}
