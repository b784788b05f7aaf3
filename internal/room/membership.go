// internal/room/membership.go
package room

import (
	"sync"

	"github.com/google/uuid"
)

// memberSet is the seat set for a single room. Its own mutex keeps per-room
// membership operations serialized without touching unrelated rooms.
type memberSet struct {
	mu       sync.Mutex
	capacity int
	members  map[uuid.UUID]struct{}
}

// Tracker maintains, per room, the set of seated participant identifiers.
// The capacity check and seat insertion happen as one atomic step under the
// room's set lock, so two concurrent joins can never both win the last seat.
type Tracker struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*memberSet

	// onEmpty, if set, is called (outside all tracker locks) when a remove
	// leaves a room with zero members, so the registry can apply its
	// empty-room disposal policy.
	onEmpty func(roomID uuid.UUID)
}

// NewTracker returns an empty membership tracker.
func NewTracker() *Tracker {
	return &Tracker{rooms: make(map[uuid.UUID]*memberSet)}
}

// SetOnEmpty installs the empty-room callback. Must be called before the
// tracker is shared across goroutines.
func (t *Tracker) SetOnEmpty(fn func(roomID uuid.UUID)) {
	t.onEmpty = fn
}

// Register creates an empty seat set for a room with the given capacity.
// Registering an already-known room is a no-op.
func (t *Tracker) Register(roomID uuid.UUID, capacity int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.rooms[roomID]; exists {
		return
	}
	t.rooms[roomID] = &memberSet{
		capacity: capacity,
		members:  make(map[uuid.UUID]struct{}),
	}
}

// Unregister drops a room's seat set entirely. Used when the registry closes
// a room; removing an unknown room is a no-op.
func (t *Tracker) Unregister(roomID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rooms, roomID)
}

func (t *Tracker) set(roomID uuid.UUID) (*memberSet, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.rooms[roomID]
	return s, ok
}

// Add seats a participant. Returns the new seat count on success,
// ErrRoomFull when the room is at capacity, ErrAlreadyMember when the
// participant already holds a seat (callers should treat that as success),
// and ErrNotFound for an unregistered room.
func (t *Tracker) Add(roomID, participantID uuid.UUID) (int, error) {
	s, ok := t.set(roomID)
	if !ok {
		return 0, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seated := s.members[participantID]; seated {
		return len(s.members), ErrAlreadyMember
	}
	if len(s.members) >= s.capacity {
		return len(s.members), ErrRoomFull
	}
	s.members[participantID] = struct{}{}
	return len(s.members), nil
}

// Remove unseats a participant. Absent participants and unknown rooms are
// no-ops, so a second remove has no further effect. When the seat count
// transitions to zero the onEmpty callback fires after all locks are
// released.
func (t *Tracker) Remove(roomID, participantID uuid.UUID) {
	s, ok := t.set(roomID)
	if !ok {
		return
	}

	s.mu.Lock()
	_, seated := s.members[participantID]
	if seated {
		delete(s.members, participantID)
	}
	emptied := seated && len(s.members) == 0
	s.mu.Unlock()

	if emptied && t.onEmpty != nil {
		t.onEmpty(roomID)
	}
}

// Size returns the current seat count, zero for unknown rooms.
func (t *Tracker) Size(roomID uuid.UUID) int {
	s, ok := t.set(roomID)
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// Contains reports whether the participant holds a seat in the room.
func (t *Tracker) Contains(roomID, participantID uuid.UUID) bool {
	s, ok := t.set(roomID)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, seated := s.members[participantID]
	return seated
}

// Members returns a copy of the room's seated participants.
func (t *Tracker) Members(roomID uuid.UUID) []uuid.UUID {
	s, ok := t.set(roomID)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, 0, len(s.members))
	for id := range s.members {
		out = append(out, id)
	}
	return out
}
