// internal/handlers/server.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cardroom-dev/cardroom/internal/auth"
	"github.com/cardroom-dev/cardroom/internal/events"
	"github.com/cardroom-dev/cardroom/internal/room"
)

// sessionCookieName carries the signed participant identity between requests.
const sessionCookieName = "session_token"

// Custom WebSocket close codes used by the watch handler. These give clients
// a more specific reason than the standard codes.
const (
	BadSubprotocolError = 3000 // client connected with an unsupported subprotocol
)

// Server bundles the registry with its collaborators for the HTTP layer.
// The registry instance is owned by main and passed in; handlers never reach
// for globals.
type Server struct {
	Log      *logrus.Logger
	Registry *room.Registry
	Issuer   *auth.TokenIssuer
	Events   *events.Publisher
}

// NewServer wires the request layer. events may be nil when no queue is
// configured; publishing then becomes a no-op.
func NewServer(logger *logrus.Logger, registry *room.Registry, issuer *auth.TokenIssuer, publisher *events.Publisher) *Server {
	return &Server{
		Log:      logger,
		Registry: registry,
		Issuer:   issuer,
		Events:   publisher,
	}
}

// resolveIdentity returns the participant id from the session cookie,
// minting an ephemeral identity (and setting the cookie) when the request
// carries none. The registry trusts whatever identity this layer hands it.
func (s *Server) resolveIdentity(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if id, err := s.Issuer.Verify(cookie.Value); err == nil {
			return id, nil
		}
		// Fall through: an expired or malformed token gets replaced.
	}

	id := uuid.New()
	token, err := s.Issuer.Issue(id)
	if err != nil {
		return uuid.Nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

// writeJSON renders v as a JSON response body.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeRegistryError maps the registry's typed failures onto HTTP statuses.
func (s *Server) writeRegistryError(w http.ResponseWriter, err error) {
	var verr *room.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error()})
	case errors.Is(err, room.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, room.ErrWrongPassword):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, room.ErrRoomFull), errors.Is(err, room.ErrAlreadyStarted), errors.Is(err, room.ErrClosed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, room.ErrCodeSpaceExhausted):
		// Capacity alarm: surfaced loudly, never swallowed.
		s.Log.Errorf("registry capacity alarm: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		s.Log.Errorf("unexpected registry error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
