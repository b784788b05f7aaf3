// internal/room/room.go
package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a room's lifecycle state. Transitions only move forward:
// waiting -> playing -> closed, with closed terminal. A waiting room may be
// closed directly when it empties out or is evicted for idleness.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusClosed  Status = "closed"
)

// Variant enumerates the supported game types a room can run.
type Variant string

const (
	VariantTexasHoldem   Variant = "texas_holdem"
	VariantOmaha         Variant = "omaha"
	VariantOmahaHiLo     Variant = "omaha_hi_lo"
	VariantSevenCardStud Variant = "seven_card_stud"
)

// Valid reports whether v is one of the supported variants.
func (v Variant) Valid() bool {
	switch v {
	case VariantTexasHoldem, VariantOmaha, VariantOmahaHiLo, VariantSevenCardStud:
		return true
	}
	return false
}

// Stakes holds the economic parameters of a room. All values are in chips.
type Stakes struct {
	SmallBlind int `json:"smallBlind"`
	BigBlind   int `json:"bigBlind"`
	MinBuyIn   int `json:"minBuyIn"`
	MaxBuyIn   int `json:"maxBuyIn"`
}

// Spec is the validated input to Registry.CreateRoom, shaped by the HTTP
// layer. The registry re-checks only the invariants it depends on.
type Spec struct {
	Name        string                 `json:"name"`
	Variant     Variant                `json:"variant"`
	Stakes      Stakes                 `json:"stakes"`
	MaxPlayers  int                    `json:"maxPlayers"`
	Private     bool                   `json:"isPrivate"`
	Password    string                 `json:"password,omitempty"`
	CustomRules map[string]interface{} `json:"customRules,omitempty"`
}

// Room is one configured game table. Immutable fields (everything above the
// mutex) are set once at creation and read without locking; status and
// activity tracking are guarded by mu. Membership lives in the Tracker, not
// on the room record.
type Room struct {
	ID         uuid.UUID
	Code       string
	Name       string
	Variant    Variant
	Stakes     Stakes
	MaxPlayers int
	Private    bool
	HostID     uuid.UUID
	Rules      RuleSet
	CreatedAt  time.Time

	// passwordHash is the argon2id-encoded hash, empty when the room has no
	// password. Never exposed through views.
	passwordHash string

	mu         sync.Mutex
	status     Status
	lastActive time.Time
}

// HasPassword reports whether the room was created with a password.
func (rm *Room) HasPassword() bool {
	return rm.passwordHash != ""
}

// Status returns the room's current lifecycle state.
func (rm *Room) Status() Status {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.status
}

// touchUnsafe records activity for idle-eviction purposes. Assumes mu is held.
func (rm *Room) touchUnsafe(now time.Time) {
	rm.lastActive = now
}

// View is the public rendering of a Room: the password hash is hidden behind
// a hasPassword boolean and playerCount is derived from the Membership
// Tracker rather than stored redundantly on the record.
type View struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Variant     Variant   `json:"variant"`
	Stakes      Stakes    `json:"stakes"`
	MaxPlayers  int       `json:"maxPlayers"`
	Private     bool      `json:"isPrivate"`
	HasPassword bool      `json:"hasPassword"`
	HostID      uuid.UUID `json:"hostId"`
	Rules       RuleSet   `json:"rules"`
	Status      Status    `json:"status"`
	PlayerCount int       `json:"playerCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// viewUnsafe renders the public view. Assumes rm.mu is held by the caller
// (status is the only mutable field it reads).
func (rm *Room) viewUnsafe(playerCount int) View {
	return View{
		ID:          rm.ID,
		Code:        rm.Code,
		Name:        rm.Name,
		Variant:     rm.Variant,
		Stakes:      rm.Stakes,
		MaxPlayers:  rm.MaxPlayers,
		Private:     rm.Private,
		HasPassword: rm.HasPassword(),
		HostID:      rm.HostID,
		Rules:       rm.Rules,
		Status:      rm.status,
		PlayerCount: playerCount,
		CreatedAt:   rm.CreatedAt,
	}
}

// Hasher abstracts password hashing so the registry never holds plaintext
// and tests can substitute a cheap implementation.
type Hasher interface {
	// Hash returns an encoded, self-describing hash of password.
	Hash(password string) (string, error)
	// Compare reports whether password matches the encoded hash.
	Compare(password, encoded string) (bool, error)
}
