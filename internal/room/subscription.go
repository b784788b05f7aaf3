// internal/room/subscription.go
package room

// EventType tags a room-set change pushed to subscribers.
type EventType string

const (
	EventRoomCreated EventType = "room_created"
	EventRoomStarted EventType = "room_started"
	EventRoomClosed  EventType = "room_closed"
)

// Event is a room-set change: a room appeared, started its game, or was
// closed. The embedded view is the room's state at the moment of the change.
type Event struct {
	Type EventType `json:"type"`
	Room View      `json:"room"`
}

// Subscription is one listener's change feed. C is bounded; a subscriber
// that stops draining loses events rather than blocking registry operations.
type Subscription struct {
	C chan Event
}

const subscriptionBuffer = 16

// Subscribe registers a change-feed listener. The caller must Unsubscribe
// when done or the subscription leaks.
func (r *Registry) Subscribe() *Subscription {
	sub := &Subscription{C: make(chan Event, subscriptionBuffer)}
	r.subMu.Lock()
	r.subs[sub] = struct{}{}
	r.subMu.Unlock()
	return sub
}

// Unsubscribe removes a listener and closes its channel. Safe to call once
// per subscription.
func (r *Registry) Unsubscribe(sub *Subscription) {
	r.subMu.Lock()
	_, ok := r.subs[sub]
	delete(r.subs, sub)
	r.subMu.Unlock()
	if ok {
		close(sub.C)
	}
}

// notify fans an event out to all subscribers. Private rooms are not part of
// the public listing, so their changes are not broadcast. Sends never block:
// a full subscriber channel drops the event.
func (r *Registry) notify(ev Event) {
	if ev.Room.Private {
		return
	}
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for sub := range r.subs {
		select {
		case sub.C <- ev:
		default:
			r.log.WithField("event", ev.Type).Warn("subscriber channel full, dropping room event")
		}
	}
}
