// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/cardroom-dev/cardroom/internal/events"
	"github.com/cardroom-dev/cardroom/internal/room"
)

// CreateRoomHandler builds a room from the posted spec with the caller as
// host. The registry re-validates the invariants it depends on; anything
// else malformed fails JSON decoding here.
func (s *Server) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	hostID, err := s.resolveIdentity(w, r)
	if err != nil {
		http.Error(w, "identity resolution failed", http.StatusInternalServerError)
		return
	}

	var spec room.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad room spec payload"})
		return
	}

	view, err := s.Registry.CreateRoom(spec, hostID)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.Events.TryPublish(r.Context(), events.RoomEventRecord{
		RoomID:      view.ID,
		Code:        view.Code,
		EventType:   "created",
		ActorID:     hostID,
		Variant:     string(view.Variant),
		PlayerCount: view.PlayerCount,
	})
	writeJSON(w, http.StatusOK, view)
}

type joinRoomRequest struct {
	Code     string `json:"code"`
	Password string `json:"password,omitempty"`
}

// JoinRoomHandler seats the caller in the room with the posted code.
func (s *Server) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	participantID, err := s.resolveIdentity(w, r)
	if err != nil {
		http.Error(w, "identity resolution failed", http.StatusInternalServerError)
		return
	}

	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad join payload"})
		return
	}

	view, err := s.Registry.JoinRoom(req.Code, participantID, req.Password)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.Events.TryPublish(r.Context(), events.RoomEventRecord{
		RoomID:      view.ID,
		Code:        view.Code,
		EventType:   "joined",
		ActorID:     participantID,
		Variant:     string(view.Variant),
		PlayerCount: view.PlayerCount,
	})
	writeJSON(w, http.StatusOK, view)
}

type leaveRoomRequest struct {
	RoomID uuid.UUID `json:"roomId"`
}

// LeaveRoomHandler unseats the caller. Leaving a room you're not in (or one
// that no longer exists) is a no-op, matching the registry's idempotence.
func (s *Server) LeaveRoomHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	participantID, err := s.resolveIdentity(w, r)
	if err != nil {
		http.Error(w, "identity resolution failed", http.StatusInternalServerError)
		return
	}

	var req leaveRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad leave payload"})
		return
	}

	s.Registry.LeaveRoom(req.RoomID, participantID)

	s.Events.TryPublish(r.Context(), events.RoomEventRecord{
		RoomID:    req.RoomID,
		EventType: "left",
		ActorID:   participantID,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetRoomHandler looks a room up by ?id= or ?code=. Code lookup is
// case-insensitive.
func (s *Server) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	if code := r.URL.Query().Get("code"); code != "" {
		view, err := s.Registry.GetRoomByCode(code)
		if err != nil {
			s.writeRegistryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	idStr := r.URL.Query().Get("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing or malformed id/code"})
		return
	}
	view, err := s.Registry.GetRoom(id)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListRoomsHandler returns the public room listing.
func (s *Server) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.ListPublicRooms())
}

// StatsHandler returns aggregate counts over the active-room set.
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.Stats())
}

type roomIDRequest struct {
	RoomID uuid.UUID `json:"roomId"`
}

// CloseRoomHandler closes a room. Only the host may close a room explicitly;
// the empty-room policy and the game engine close rooms without going
// through here.
func (s *Server) CloseRoomHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	callerID, err := s.resolveIdentity(w, r)
	if err != nil {
		http.Error(w, "identity resolution failed", http.StatusInternalServerError)
		return
	}

	var req roomIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad close payload"})
		return
	}

	view, err := s.Registry.GetRoom(req.RoomID)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	if view.HostID != callerID {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "only the host may close a room"})
		return
	}

	if err := s.Registry.CloseRoom(req.RoomID); err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.Events.TryPublish(r.Context(), events.RoomEventRecord{
		RoomID:    view.ID,
		Code:      view.Code,
		EventType: "closed",
		ActorID:   callerID,
		Variant:   string(view.Variant),
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// StartGameHandler records the game-start signal for a room. The decision
// belongs to the game-engine collaborator; this endpoint is its surface.
func (s *Server) StartGameHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	callerID, err := s.resolveIdentity(w, r)
	if err != nil {
		http.Error(w, "identity resolution failed", http.StatusInternalServerError)
		return
	}

	var req roomIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad start payload"})
		return
	}

	view, err := s.Registry.GetRoom(req.RoomID)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	if view.HostID != callerID {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "only the host may start the game"})
		return
	}

	if err := s.Registry.StartGame(req.RoomID); err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.Events.TryPublish(r.Context(), events.RoomEventRecord{
		RoomID:    view.ID,
		Code:      view.Code,
		EventType: "started",
		ActorID:   callerID,
		Variant:   string(view.Variant),
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// presetsResponse is the static read-only configuration the create form is
// built from.
type presetsResponse struct {
	Variants      []room.Variant      `json:"variants"`
	StakesPresets []room.StakesPreset `json:"stakesPresets"`
	DefaultRules  map[room.Variant]room.RuleSet `json:"defaultRules"`
}

// PresetsHandler exposes variants, stakes presets and per-variant default
// rule sets.
func (s *Server) PresetsHandler(w http.ResponseWriter, r *http.Request) {
	resp := presetsResponse{
		Variants:      room.Variants(),
		StakesPresets: room.StakesPresets(),
		DefaultRules:  make(map[room.Variant]room.RuleSet),
	}
	for _, v := range resp.Variants {
		resp.DefaultRules[v] = room.DefaultRules(v)
	}
	writeJSON(w, http.StatusOK, resp)
}
