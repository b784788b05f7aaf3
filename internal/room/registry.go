// internal/room/registry.go
package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Registry is the single authoritative owner of all Room records. It holds
// the id and code indexes behind a registry-wide lock and delegates seat
// accounting to a Membership Tracker; per-room state changes serialize on the
// room's own mutex so unrelated rooms never block each other.
//
// A Registry is constructed explicitly and passed by reference to the
// request-handling layer; there is no package-level instance.
type Registry struct {
	log    *logrus.Logger
	hasher Hasher

	mu     sync.RWMutex
	byID   map[uuid.UUID]*Room
	byCode map[string]*Room

	members *Tracker

	subMu sync.Mutex
	subs  map[*Subscription]struct{}
}

// Stats is the aggregate read over the active-room set.
type Stats struct {
	ActiveRooms  int             `json:"activeRoomCount"`
	TotalPlayers int             `json:"totalPlayerCount"`
	ByVariant    map[Variant]int `json:"byVariant"`
}

// NewRegistry constructs an empty registry. The hasher is used to store and
// verify room passwords; plaintext never survives CreateRoom.
func NewRegistry(logger *logrus.Logger, hasher Hasher) *Registry {
	r := &Registry{
		log:     logger,
		hasher:  hasher,
		byID:    make(map[uuid.UUID]*Room),
		byCode:  make(map[string]*Room),
		members: NewTracker(),
		subs:    make(map[*Subscription]struct{}),
	}
	// Empty-room disposal: last leaver closes the room and releases its code.
	r.members.SetOnEmpty(func(roomID uuid.UUID) {
		if err := r.CloseRoom(roomID); err != nil {
			r.log.WithField("room_id", roomID).Warnf("empty-room close failed: %v", err)
		}
	})
	return r
}

// Members exposes the registry's membership tracker for read-side
// collaborators (e.g. seat listings in the HTTP layer).
func (r *Registry) Members(roomID uuid.UUID) []uuid.UUID {
	return r.members.Members(roomID)
}

func validateSpec(spec Spec) error {
	if n := len(spec.Name); n < 1 || n > 50 {
		return &ValidationError{Field: "name", Reason: "must be 1-50 characters"}
	}
	if !spec.Variant.Valid() {
		return &ValidationError{Field: "variant", Reason: fmt.Sprintf("unknown variant %q", spec.Variant)}
	}
	st := spec.Stakes
	if st.SmallBlind <= 0 || st.BigBlind <= 0 || st.MinBuyIn <= 0 || st.MaxBuyIn <= 0 {
		return &ValidationError{Field: "stakes", Reason: "all values must be positive"}
	}
	if st.SmallBlind > st.BigBlind {
		return &ValidationError{Field: "stakes", Reason: "smallBlind must not exceed bigBlind"}
	}
	if st.MinBuyIn > st.MaxBuyIn {
		return &ValidationError{Field: "stakes", Reason: "minBuyIn must not exceed maxBuyIn"}
	}
	if spec.MaxPlayers < 2 || spec.MaxPlayers > 10 {
		return &ValidationError{Field: "maxPlayers", Reason: "must be between 2 and 10"}
	}
	return nil
}

// CreateRoom validates the spec, merges custom rules over the variant
// defaults, hashes the password if one was supplied, assigns a unique code
// and inserts the room atomically into both indexes with the host seated as
// the first member. On return the room is immediately visible to
// GetRoomByCode and, if public, to ListPublicRooms.
func (r *Registry) CreateRoom(spec Spec, hostID uuid.UUID) (View, error) {
	if err := validateSpec(spec); err != nil {
		return View{}, err
	}

	rules, err := MergeRules(spec.Variant, spec.CustomRules)
	if err != nil {
		return View{}, &ValidationError{Field: "customRules", Reason: err.Error()}
	}

	var passwordHash string
	if spec.Password != "" {
		passwordHash, err = r.hasher.Hash(spec.Password)
		if err != nil {
			return View{}, fmt.Errorf("hash room password: %w", err)
		}
	}

	now := time.Now()
	rm := &Room{
		ID:           uuid.New(),
		Name:         spec.Name,
		Variant:      spec.Variant,
		Stakes:       spec.Stakes,
		MaxPlayers:   spec.MaxPlayers,
		Private:      spec.Private,
		HostID:       hostID,
		Rules:        rules,
		CreatedAt:    now,
		passwordHash: passwordHash,
		status:       StatusWaiting,
		lastActive:   now,
	}

	// Seat the host before the room becomes visible. The set exists only in
	// the tracker until the index insert below commits.
	r.members.Register(rm.ID, rm.MaxPlayers)
	if _, err := r.members.Add(rm.ID, hostID); err != nil {
		r.members.Unregister(rm.ID)
		return View{}, fmt.Errorf("seat host: %w", err)
	}

	// Code generation and the dual-index insert commit under the same write
	// lock, so two concurrent creates can never share a code.
	r.mu.Lock()
	code, err := generateCode(len(r.byCode), func(c string) bool {
		_, taken := r.byCode[c]
		return taken
	})
	if err != nil {
		r.mu.Unlock()
		r.members.Unregister(rm.ID)
		if errors.Is(err, ErrCodeSpaceExhausted) {
			r.log.Error("room code space exhausted; active-room capacity alarm")
		}
		return View{}, err
	}
	rm.Code = code
	r.byID[rm.ID] = rm
	r.byCode[code] = rm
	r.mu.Unlock()

	view := r.snapshot(rm)
	r.log.WithFields(logrus.Fields{
		"room_id": rm.ID,
		"code":    rm.Code,
		"variant": rm.Variant,
		"host_id": hostID,
	}).Info("room created")
	r.notify(Event{Type: EventRoomCreated, Room: view})
	return view, nil
}

// GetRoom returns the room with the given id, or ErrNotFound.
func (r *Registry) GetRoom(id uuid.UUID) (View, error) {
	r.mu.RLock()
	rm, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return View{}, ErrNotFound
	}
	return r.snapshot(rm), nil
}

// GetRoomByCode returns the active room with the given code, normalizing
// case before matching, or ErrNotFound.
func (r *Registry) GetRoomByCode(code string) (View, error) {
	r.mu.RLock()
	rm, ok := r.byCode[NormalizeCode(code)]
	r.mu.RUnlock()
	if !ok {
		return View{}, ErrNotFound
	}
	return r.snapshot(rm), nil
}

// JoinRoom seats a participant in the room with the given code. Typed
// failures: ErrNotFound (no active room), ErrWrongPassword, ErrRoomFull,
// ErrAlreadyStarted (mid-game joins are rejected by policy). A join for a
// participant already seated succeeds idempotently. A failed join leaves
// membership unchanged.
func (r *Registry) JoinRoom(code string, participantID uuid.UUID, password string) (View, error) {
	r.mu.RLock()
	rm, ok := r.byCode[NormalizeCode(code)]
	r.mu.RUnlock()
	if !ok {
		return View{}, ErrNotFound
	}

	// passwordHash is immutable after creation, so the (CPU-heavy) compare
	// runs outside any lock.
	if rm.HasPassword() {
		match, err := r.hasher.Compare(password, rm.passwordHash)
		if err != nil {
			return View{}, fmt.Errorf("verify room password: %w", err)
		}
		if !match {
			return View{}, ErrWrongPassword
		}
	}

	// The status check and the seat insertion must not admit an interleaved
	// close or start, so both happen under the room lock.
	rm.mu.Lock()
	switch rm.status {
	case StatusClosed:
		rm.mu.Unlock()
		return View{}, ErrNotFound
	case StatusPlaying:
		rm.mu.Unlock()
		return View{}, ErrAlreadyStarted
	}

	size, err := r.members.Add(rm.ID, participantID)
	if err != nil && !errors.Is(err, ErrAlreadyMember) {
		rm.mu.Unlock()
		return View{}, err
	}
	rm.touchUnsafe(time.Now())
	view := rm.viewUnsafe(size)
	rm.mu.Unlock()

	if !errors.Is(err, ErrAlreadyMember) {
		r.log.WithFields(logrus.Fields{
			"room_id":        rm.ID,
			"participant_id": participantID,
			"players":        size,
		}).Info("participant joined")
	}
	return view, nil
}

// LeaveRoom unseats a participant. Unknown rooms and absent participants are
// no-ops. When the last participant leaves, the empty-room policy closes the
// room and releases its code.
func (r *Registry) LeaveRoom(id, participantID uuid.UUID) {
	r.mu.RLock()
	rm, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	rm.mu.Lock()
	rm.touchUnsafe(time.Now())
	rm.mu.Unlock()

	r.members.Remove(id, participantID)
}

// ListPublicRooms returns a consistent snapshot of all non-private, active
// rooms annotated with current seat counts. References are copied under a
// single read lock; the registry is never locked for the snapshot's
// lifetime, and no room appears twice or is skipped within one snapshot.
func (r *Registry) ListPublicRooms() []View {
	r.mu.RLock()
	candidates := make([]*Room, 0, len(r.byID))
	for _, rm := range r.byID {
		if !rm.Private {
			candidates = append(candidates, rm)
		}
	}
	r.mu.RUnlock()

	views := make([]View, 0, len(candidates))
	for _, rm := range candidates {
		view := r.snapshot(rm)
		if view.Status == StatusClosed {
			continue
		}
		views = append(views, view)
	}
	return views
}

// Stats computes aggregate counts over the same snapshot discipline as
// ListPublicRooms.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.byID))
	for _, rm := range r.byID {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	stats := Stats{ByVariant: make(map[Variant]int)}
	for _, rm := range rooms {
		view := r.snapshot(rm)
		if view.Status == StatusClosed {
			continue
		}
		stats.ActiveRooms++
		stats.TotalPlayers += view.PlayerCount
		stats.ByVariant[rm.Variant]++
	}
	return stats
}

// StartGame records the external game engine's waiting -> playing
// transition. Returns ErrAlreadyStarted if the room is already playing and
// ErrClosed if it reached its terminal state.
func (r *Registry) StartGame(id uuid.UUID) error {
	r.mu.RLock()
	rm, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	rm.mu.Lock()
	switch rm.status {
	case StatusPlaying:
		rm.mu.Unlock()
		return ErrAlreadyStarted
	case StatusClosed:
		rm.mu.Unlock()
		return ErrClosed
	}
	rm.status = StatusPlaying
	rm.touchUnsafe(time.Now())
	view := rm.viewUnsafe(r.members.Size(rm.ID))
	rm.mu.Unlock()

	r.log.WithFields(logrus.Fields{"room_id": id, "code": rm.Code}).Info("game started")
	r.notify(Event{Type: EventRoomStarted, Room: view})
	return nil
}

// EndGame records the external game engine's end-of-game signal. The room is
// short-lived: game end closes it and releases the code.
func (r *Registry) EndGame(id uuid.UUID) error {
	return r.CloseRoom(id)
}

// CloseRoom transitions the room to its terminal state and removes it from
// both indexes, making the code immediately reusable by the next create.
// Closing an unknown or already-closed room is a no-op.
func (r *Registry) CloseRoom(id uuid.UUID) error {
	r.mu.Lock()
	rm, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return nil
	}

	rm.mu.Lock()
	if rm.status == StatusClosed {
		rm.mu.Unlock()
		r.mu.Unlock()
		return nil
	}
	rm.status = StatusClosed
	view := rm.viewUnsafe(0)
	rm.mu.Unlock()

	delete(r.byID, id)
	delete(r.byCode, rm.Code)
	r.mu.Unlock()

	r.members.Unregister(id)

	r.log.WithFields(logrus.Fields{"room_id": id, "code": rm.Code}).Info("room closed")
	r.notify(Event{Type: EventRoomClosed, Room: view})
	return nil
}

// snapshot renders a room's public view with a live seat count.
func (r *Registry) snapshot(rm *Room) View {
	count := r.members.Size(rm.ID)
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.viewUnsafe(count)
}

// StartJanitor runs the idle-eviction policy until ctx is cancelled: every
// interval, waiting rooms whose last activity is older than idleTTL are
// closed. Rooms mid-game are never evicted; game end is the engine's call.
func (r *Registry) StartJanitor(ctx context.Context, interval, idleTTL time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.SweepIdle(idleTTL); n > 0 {
					r.log.Infof("janitor closed %d idle room(s)", n)
				}
			}
		}
	}()
}

// SweepIdle closes waiting rooms idle longer than ttl and returns how many
// were closed.
func (r *Registry) SweepIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.byID))
	for _, rm := range r.byID {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	closed := 0
	for _, rm := range rooms {
		rm.mu.Lock()
		idle := rm.status == StatusWaiting && rm.lastActive.Before(cutoff)
		rm.mu.Unlock()
		if !idle {
			continue
		}
		if err := r.CloseRoom(rm.ID); err == nil {
			closed++
		}
	}
	return closed
}
